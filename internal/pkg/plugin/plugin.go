// Package plugin holds one device model per supported hardware family. The
// set is closed: Plugin has an unexported method and only the constructors in
// this package produce implementations.
package plugin

import (
	"math"
	"strconv"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/decoder"
	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

// Plugin is the capability every device model offers the coordinator.
type Plugin interface {
	Name() string
	// Initialize applies the snapshot's raw payload, or the detection-time
	// payload when the snapshot has none.
	Initialize(snap *model.Snapshot)
	Identified() bool
	Identity() model.Identity
	Descriptors() []*model.Descriptor
	Descriptor(key string) (*model.Descriptor, bool)
	Decode(d *model.Descriptor, snap *model.Snapshot) model.Value
	// MapPayload translates value into the setReg payload for d. It returns
	// false when d cannot be written or value is out of range.
	MapPayload(d *model.Descriptor, value float64) (model.WritePayload, bool)
	SupportsSetData() bool

	sealed()
}

// Options carries configuration every device model may need.
type Options struct {
	// Registration is the shared-secret token, used as serial of last resort.
	Registration string
	// DeviceSerial is an operator supplied serial that takes precedence.
	DeviceSerial string
}

// base implements the shared lifecycle; families differ in descriptor table,
// fixed device type and model naming.
type base struct {
	mu sync.RWMutex

	name         string
	registration string
	supportsSet  bool
	descriptors  []*model.Descriptor
	byKey        map[string]*model.Descriptor
	modelName    func(model.Identity) string
	identity     model.Identity
	identified   bool
	initial      model.Payload
	last         model.Payload
	logger       *zap.Logger
}

func newBase(name string, table []*model.Descriptor, deviceType model.DeviceType, opts Options) *base {
	visible := lo.Filter(table, func(d *model.Descriptor, _ int) bool {
		return deviceType.Matches(d.AllowedTypes)
	})
	return &base{
		name:         name,
		registration: opts.Registration,
		descriptors:  visible,
		byKey: lo.SliceToMap(visible, func(d *model.Descriptor) (string, *model.Descriptor) {
			return d.Key, d
		}),
		identity: model.Identity{
			DeviceSerial: opts.DeviceSerial,
			DeviceType:   deviceType,
		},
		logger: zap.L(),
	}
}

func (b *base) sealed() {}

func (b *base) Name() string {
	return b.name
}

func (b *base) SupportsSetData() bool {
	return b.supportsSet
}

func (b *base) Descriptors() []*model.Descriptor {
	return b.descriptors
}

func (b *base) Descriptor(key string) (*model.Descriptor, bool) {
	d, ok := b.byKey[key]
	return d, ok
}

func (b *base) Identified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identified
}

func (b *base) Identity() model.Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity.Clone()
}

func (b *base) Initialize(snap *model.Snapshot) {
	switch {
	case !snap.Empty():
		b.applyPayload(snap.RawRealtime)
	case b.initial != nil:
		b.applyPayload(b.initial)
	}
}

// applyPayload merges identity fields from p. Reapplying the same payload
// changes nothing.
func (b *base) applyPayload(p model.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = p
	info := p.Information()

	observed := model.Identity{
		InfoSerial:   info.String(2),
		DeviceSerial: p.Serial(),
	}
	if rt, ok := p.RuntimeType(); ok {
		observed.RuntimeType = &rt
	}
	b.identity.Merge(observed)

	b.identity.Merge(model.Identity{
		SerialNumber: lo.CoalesceOrEmpty(
			b.identity.DeviceSerial,
			b.identity.InfoSerial,
			p.Serial(),
			b.registration,
		),
		HardwareVersion: info.String(3),
		FirmwareVersion: lo.CoalesceOrEmpty(p.Version(), info.String(4)),
	})
	if b.modelName != nil {
		b.identity.Merge(model.Identity{ModelName: b.modelName(b.identity)})
	}

	if !b.identified {
		b.logger.Info("device identified",
			zap.String("plugin", b.name),
			zap.String("serial", b.identity.SerialNumber),
			zap.String("model", b.identity.ModelName),
			zap.Stringer("device_type", b.identity.DeviceType),
		)
	}
	b.identified = true
}

func (b *base) Decode(d *model.Descriptor, snap *model.Snapshot) model.Value {
	b.mu.RLock()
	cached := b.last
	b.mu.RUnlock()
	return decoder.Decode(d, snap, cached)
}

func (b *base) MapPayload(d *model.Descriptor, value float64) (model.WritePayload, bool) {
	if d == nil || !d.Kind.Writable() {
		return nil, false
	}
	if _, ok := b.byKey[d.Key]; !ok {
		return nil, false
	}
	var raw int64
	switch d.Kind {
	case model.KindButton:
		raw = int64(d.PressValue)
	case model.KindSelect:
		code := int(value)
		if float64(code) != value {
			return nil, false
		}
		if _, ok := d.Option(code); !ok {
			return nil, false
		}
		raw = int64(code)
	case model.KindNumber:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, false
		}
		if d.Limits != nil && (value < d.Limits.Min || value > d.Limits.Max) {
			return nil, false
		}
		raw = int64(math.Round(value / d.Scale()))
	}
	return model.WritePayload{{Reg: d.Register, Val: strconv.FormatInt(raw, 10)}}, true
}

var (
	_ Plugin = (*InverterG4)(nil)
	_ Plugin = (*ChargerG1)(nil)
	_ Plugin = (*ChargerG2)(nil)
)
