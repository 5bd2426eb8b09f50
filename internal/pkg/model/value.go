package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a decoded measurement. The zero Value is unavailable.
type Value struct {
	number    float64
	integral  bool
	available bool
}

func Unavailable() Value {
	return Value{}
}

func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{number: f, available: true}
}

func Int(i int64) Value {
	return Value{number: float64(i), integral: true, available: true}
}

func (v Value) Available() bool {
	return v.available
}

// IsInt reports whether the value was normalised to an integer.
func (v Value) IsInt() bool {
	return v.available && v.integral
}

func (v Value) Float64() float64 {
	return v.number
}

// Int64 returns the value truncated towards zero.
func (v Value) Int64() int64 {
	return int64(v.number)
}

// Equal compares numerically, so Int(10) equals Float(10).
func (v Value) Equal(o Value) bool {
	if !v.available || !o.available {
		return v.available == o.available
	}
	return v.number == o.number
}

// Ptr returns nil for an unavailable value.
func (v Value) Ptr() *float64 {
	if !v.available {
		return nil
	}
	f := v.number
	return &f
}

func (v Value) String() string {
	switch {
	case !v.available:
		return "unavailable"
	case v.integral:
		return strconv.FormatInt(int64(v.number), 10)
	default:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.available {
		return []byte("null"), nil
	}
	return []byte(v.String()), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var n *json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == nil {
		*v = Unavailable()
		return nil
	}
	if i, err := n.Int64(); err == nil {
		*v = Int(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*v = Float(f)
	return nil
}
