package coordinator

import (
	"sync"
	"time"
)

// debouncer runs fn once, cooldown after the first call of a burst. Calls
// made while a run is pending are absorbed by it.
type debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	fn       func()
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(cooldown time.Duration, fn func()) *debouncer {
	return &debouncer{cooldown: cooldown, fn: fn}
}

func (d *debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(d.cooldown, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped {
		d.fn()
	}
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
