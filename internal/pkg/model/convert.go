package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var errEmpty = errors.New("empty register value")

// ToFloat converts a raw register value to a float.
func ToFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errEmpty
	case json.Number:
		return v.Float64()
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, errEmpty
		}
		return cast.ToFloat64E(strings.TrimSpace(v))
	}
	return cast.ToFloat64E(raw)
}

// ToInt converts a raw register value to an integer, truncating fractional
// numbers.
func ToInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errEmpty
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return int64(math.Trunc(f)), nil
	case float64:
		return int64(math.Trunc(v)), nil
	case float32:
		return int64(math.Trunc(float64(v))), nil
	case string:
		return parseInt(v)
	}
	return cast.ToInt64E(raw)
}

// parseInt reads s as a decimal number. Leading zeros do not make it octal.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Trunc(f)), nil
}
