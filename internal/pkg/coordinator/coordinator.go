// Package coordinator owns the poll timeline: it fetches snapshots through
// the transport, keeps the latest one and serves decoded values from it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/internal/pkg/plugin"
)

// ErrUpdateFailed is the single condition a failed cycle reports.
var ErrUpdateFailed = errors.New("update failed")

// Client is the device API the coordinator polls.
type Client interface {
	ReadRealtime(ctx context.Context) (model.Payload, error)
	ReadSetData(ctx context.Context) (any, error)
	WriteRegisters(ctx context.Context, payload model.WritePayload) error
}

const (
	defaultDeadline = 100 * time.Second
	defaultCooldown = 1500 * time.Millisecond
)

type Coordinator struct {
	client   Client
	plugin   plugin.Plugin
	deadline time.Duration
	cooldown time.Duration
	observe  func(time.Duration, error)
	logger   *zap.Logger

	// timeline serialises fetches and writes.
	timeline sync.Mutex

	mu        sync.RWMutex
	snapshot  *model.Snapshot
	listeners []func(*model.Snapshot)

	debounce *debouncer
}

func New(client Client, p plugin.Plugin, options ...func(*Coordinator)) *Coordinator {
	c := &Coordinator{
		client:   client,
		plugin:   p,
		deadline: defaultDeadline,
		cooldown: defaultCooldown,
		logger:   zap.L(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.debounce = newDebouncer(c.cooldown, c.debouncedRefresh)
	return c
}

func (c *Coordinator) Plugin() plugin.Plugin {
	return c.plugin
}

// Subscribe registers fn to receive every published snapshot. fn runs on the
// poll timeline and must not call Refresh or WriteRegister.
func (c *Coordinator) Subscribe(fn func(*model.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the latest published snapshot, nil before the first one.
func (c *Coordinator) Snapshot() *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Coordinator) Identity() model.Identity {
	return c.plugin.Identity()
}

// Get decodes d against the latest snapshot.
func (c *Coordinator) Get(d *model.Descriptor) model.Value {
	return c.plugin.Decode(d, c.Snapshot())
}

func (c *Coordinator) Descriptor(key string) (*model.Descriptor, bool) {
	return c.plugin.Descriptor(key)
}

// Readings decodes every descriptor of the device model.
func (c *Coordinator) Readings() []model.Reading {
	snap := c.Snapshot()
	descriptors := c.plugin.Descriptors()
	readings := make([]model.Reading, 0, len(descriptors))
	for _, d := range descriptors {
		readings = append(readings, model.Reading{Descriptor: d, Value: c.plugin.Decode(d, snap)})
	}
	return readings
}

// Refresh runs one fetch cycle and publishes the result.
func (c *Coordinator) Refresh(ctx context.Context) (*model.Snapshot, error) {
	c.timeline.Lock()
	defer c.timeline.Unlock()
	return c.refresh(ctx, true)
}

// RequestRefresh schedules a trailing refresh; requests arriving within the
// cooldown collapse into it.
func (c *Coordinator) RequestRefresh() {
	c.debounce.Call()
}

func (c *Coordinator) debouncedRefresh() {
	if _, err := c.Refresh(context.Background()); err != nil {
		c.logger.Warn("requested refresh failed", zap.Error(err))
	}
}

func (c *Coordinator) refresh(ctx context.Context, publish bool) (*model.Snapshot, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	snap, err := c.fetch(ctx)
	if c.observe != nil {
		c.observe(time.Since(start), err)
	}
	if err != nil {
		c.logger.Error("fetching data failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	if !snap.Empty() || !c.plugin.Identified() {
		c.plugin.Initialize(snap)
	}

	c.mu.Lock()
	c.snapshot = snap
	listeners := append([]func(*model.Snapshot){}, c.listeners...)
	c.mu.Unlock()

	if publish {
		for _, fn := range listeners {
			fn(snap)
		}
	}
	return snap, nil
}

// fetch reads the realtime payload and, for models with writable registers,
// the set data. A failed read becomes an empty container; only an expired
// deadline or a panic fails the cycle.
func (c *Coordinator) fetch(ctx context.Context) (snap *model.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()

	realtime, err := c.client.ReadRealtime(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("realtime read failed", zap.Error(err))
		realtime = nil
	}

	var set any
	if c.plugin.SupportsSetData() {
		set, err = c.client.ReadSetData(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("received no set data", zap.Error(err))
			set = nil
		}
	}

	return model.NewSnapshot(realtime, set), nil
}

// WriteRegister writes value to the register behind d. Unless force is set
// the current value is read first and an unchanged value is not written;
// afterwards the device is read again and the new snapshot published.
// Buttons are always forced.
func (c *Coordinator) WriteRegister(ctx context.Context, d *model.Descriptor, value float64, force bool) error {
	payload, ok := c.plugin.MapPayload(d, value)
	if !ok {
		c.logger.Debug("no write mapping", zap.String("key", keyOf(d)), zap.Float64("value", value))
		return nil
	}
	if d.Kind == model.KindButton {
		force = true
	}

	c.timeline.Lock()
	defer c.timeline.Unlock()

	if !force {
		snap, err := c.refresh(ctx, false)
		if err != nil {
			return err
		}
		if current := c.plugin.Decode(d, snap); current.Equal(model.Float(value)) {
			c.logger.Debug("value unchanged, skipping write", zap.String("key", d.Key), zap.Stringer("value", current))
			return nil
		}
	}

	if err := c.client.WriteRegisters(ctx, payload); err != nil {
		return fmt.Errorf("write %s: %w", d.Key, err)
	}
	c.logger.Info("register written", zap.String("key", d.Key), zap.Int("register", d.Register), zap.Float64("value", value))

	if force {
		c.RequestRefresh()
		return nil
	}
	_, err := c.refresh(ctx, true)
	return err
}

// Close cancels a pending requested refresh.
func (c *Coordinator) Close() {
	c.debounce.Stop()
}

func keyOf(d *model.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.Key
}
