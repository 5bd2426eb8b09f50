package decoder

import "github.com/anicoll/solax-http-integration/internal/pkg/model"

// Product multiplies the primary value by a second register scaled by factor.
// PV string power is voltage times current read from another index.
func Product(src model.Source, index int, factor float64) model.DeriveFunc {
	return func(primary float64, _ *model.Descriptor, r model.Resolver) (float64, bool) {
		second, ok := scaled(r, src, index, factor)
		if !ok {
			return 0, false
		}
		return primary * second, true
	}
}

// HighWord adds the register at index as the upper 16 bits of a 32-bit
// counter whose lower word is the primary register. Both words share the
// descriptor's factor.
func HighWord(src model.Source, index int) model.DeriveFunc {
	return func(primary float64, d *model.Descriptor, r model.Resolver) (float64, bool) {
		high, ok := scaled(r, src, index, d.Scale())
		if !ok {
			return 0, false
		}
		return high*65536 + primary, true
	}
}

func scaled(r model.Resolver, src model.Source, index int, factor float64) (float64, bool) {
	raw, ok := r.Lookup(src, index)
	if !ok {
		return 0, false
	}
	f, err := model.ToFloat(raw)
	if err != nil {
		return 0, false
	}
	return f * factor, true
}
