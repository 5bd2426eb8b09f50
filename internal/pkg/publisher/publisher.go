package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

// Sink receives decoded values after every successful poll.
type Sink interface {
	Write(ctx context.Context, records []model.Record) error
	RegisterDevice(ctx context.Context, device model.Device, descriptors []*model.Descriptor) error
}

type Publisher struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	sensors sync.Map
	devices sync.Map
	now     func() time.Time
	logger  *zap.Logger
}

func New() *Publisher {
	return &Publisher{
		sinks:  make(map[string]Sink),
		now:    time.Now,
		logger: zap.L(),
	}
}

func (p *Publisher) RegisterSink(name string, s Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sinks[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	p.sinks[name] = s
	return nil
}

// Identifier is the device identifier sinks key their data by.
func Identifier(id model.Identity) string {
	return model.Slugify(id.Identifier())
}

// Publish hands every changed reading to the registered sinks. The device is
// registered with each sink until that sink accepts it. Sink failures are
// logged and do not stop the other sinks.
func (p *Publisher) Publish(ctx context.Context, id model.Identity, readings []model.Reading) error {
	identifier := Identifier(id)
	descriptors := make([]*model.Descriptor, 0, len(readings))
	for _, r := range readings {
		descriptors = append(descriptors, r.Descriptor)
	}
	p.registerDevice(ctx, id, descriptors)

	now := p.now()
	records := make([]model.Record, 0, len(readings))
	for _, r := range readings {
		d := r.Descriptor
		if d.Kind == model.KindButton {
			continue
		}
		record := model.Record{
			Identifier:  identifier,
			Key:         d.Key,
			Slug:        d.Slug(),
			Name:        d.Name,
			Value:       r.Value,
			Unit:        d.Unit,
			DeviceClass: d.DeviceClass,
			StateClass:  d.StateClass,
			Timestamp:   now,
		}
		if r.Value.Available() {
			if label, ok := d.Option(int(r.Value.Int64())); ok {
				record.Label = label
			}
		}
		if !p.shouldUpdate(identifier, record.Slug, record.Value.String()) {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, s := range p.sinks {
		if err := s.Write(ctx, records); err != nil {
			p.logger.Error("failed to publish data", zap.Error(err), zap.String("publisher", name))
			continue
		}
		p.logger.Debug("updated sensors", zap.Int("count", len(records)), zap.String("publisher", name))
	}
	return nil
}

// registerDevice registers the device with every sink that has not yet
// accepted it. A sink that fails is tried again on the next publish.
func (p *Publisher) registerDevice(ctx context.Context, id model.Identity, descriptors []*model.Descriptor) {
	device := model.DeviceFromIdentity(id)
	device.ID = Identifier(id)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, s := range p.sinks {
		key := name + "/" + device.ID
		if _, ok := p.devices.Load(key); ok {
			continue
		}
		if err := s.RegisterDevice(ctx, device, descriptors); err != nil {
			p.logger.Error("failed to register device", zap.Error(err), zap.String("publisher", name))
			continue
		}
		p.devices.Store(key, struct{}{})
		p.logger.Debug("registered device", zap.String("device", device.SerialNumber), zap.String("publisher", name))
	}
}

func (p *Publisher) shouldUpdate(identifier, slug, newValue string) bool {
	key := identifier + "_" + slug
	oldValue, exists := p.sensors.Load(key)
	if exists && strings.EqualFold(newValue, oldValue.(string)) {
		return false
	}
	if !exists {
		p.logger.Info("configured sensor", zap.String("device", identifier), zap.String("sensor", slug), zap.String("value", newValue))
	}
	p.sensors.Store(key, newValue)
	return true
}
