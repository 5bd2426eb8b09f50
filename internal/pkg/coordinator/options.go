package coordinator

import "time"

// WithDeadline bounds a whole fetch cycle, retries included.
func WithDeadline(d time.Duration) func(*Coordinator) {
	return func(c *Coordinator) {
		if d > 0 {
			c.deadline = d
		}
	}
}

func WithCooldown(d time.Duration) func(*Coordinator) {
	return func(c *Coordinator) {
		c.cooldown = d
	}
}

// WithObserver is called after every fetch with its duration and error.
func WithObserver(fn func(time.Duration, error)) func(*Coordinator) {
	return func(c *Coordinator) {
		c.observe = fn
	}
}
