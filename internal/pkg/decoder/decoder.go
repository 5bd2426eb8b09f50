// Package decoder turns raw register values into scaled measurements.
//
// Decoding is total: a missing register, a value that does not convert or a
// derivation that cannot resolve its second register all produce
// model.Unavailable rather than an error.
package decoder

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

// Decode resolves d against snap, falling back to cached when snap lacks the
// container d reads from. Neither input is modified.
func Decode(d *model.Descriptor, snap *model.Snapshot, cached model.Payload) model.Value {
	if d == nil {
		return model.Unavailable()
	}
	r := resolver{snap: snap, cached: cached}

	raw, ok := r.primary(d)
	if !ok {
		return model.Unavailable()
	}

	if d.Signed16 {
		i, err := model.ToInt(raw)
		if err != nil {
			return model.Unavailable()
		}
		raw = Signed16(i)
	}

	f, err := model.ToFloat(raw)
	if err != nil {
		return model.Unavailable()
	}
	value := f * d.Scale()

	if d.Derive != nil {
		value, ok = d.Derive(value, d, r)
		if !ok {
			return model.Unavailable()
		}
	}

	if d.InvertSign {
		value *= -1
	}

	return Finalize(value, d.Precision)
}

// Signed16 reinterprets a raw 16-bit register as two's complement.
func Signed16(raw int64) int64 {
	if raw >= 0x8000 {
		return raw - 0x10000
	}
	return raw
}

// Finalize applies precision. Rounding is half away from zero on the
// shortest decimal form of the value, so 12.345 rounds to 12.35. Without a
// precision an integral value becomes an integer.
func Finalize(value float64, precision *int) model.Value {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return model.Unavailable()
	}
	if precision != nil {
		rounded, _ := decimal.NewFromFloat(value).Round(int32(*precision)).Float64()
		return model.Float(rounded)
	}
	if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
		return model.Int(int64(value))
	}
	return model.Float(value)
}

type resolver struct {
	snap   *model.Snapshot
	cached model.Payload
}

func (r resolver) primary(d *model.Descriptor) (any, bool) {
	if d.Source == model.SourcePayload {
		return r.field(d.Field)
	}
	if d.Index < 0 {
		return nil, false
	}
	container := r.snap.Container(d.Source)
	if container == nil {
		container = cachedContainer(r.cached, d.Source)
	}
	return container.Get(d.Index)
}

// Lookup implements model.Resolver. Unlike the primary lookup it tries both
// the live container and the cached payload, so a derivation still resolves
// when the live snapshot is partial.
func (r resolver) Lookup(src model.Source, index int) (any, bool) {
	if v, ok := r.snap.Container(src).Get(index); ok {
		return v, true
	}
	if r.snap != nil {
		if v, ok := cachedContainer(r.snap.RawRealtime, src).Get(index); ok {
			return v, true
		}
	}
	return cachedContainer(r.cached, src).Get(index)
}

func (r resolver) field(name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	if r.snap != nil {
		if v, ok := r.snap.RawRealtime.Field(name); ok {
			return v, true
		}
	}
	return r.cached.Field(name)
}

func cachedContainer(p model.Payload, src model.Source) model.Registers {
	if p == nil {
		return nil
	}
	switch src {
	case model.SourceData:
		return p.Data()
	case model.SourceInfo:
		return p.Information()
	}
	return nil
}
