package model

import "strings"

// Source names the raw container a descriptor reads from.
type Source string

func (s Source) String() string {
	return string(s)
}

const (
	SourceData    Source = "data"    // realtime Data array
	SourceInfo    Source = "info"    // realtime Information array
	SourceSet     Source = "set"     // ReadSetData array
	SourcePayload Source = "payload" // top-level field of the realtime payload
)

// Kind is how the host exposes a descriptor.
type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	KindSensor Kind = "sensor"
	KindNumber Kind = "number"
	KindSelect Kind = "select"
	KindButton Kind = "button"
)

// Writable reports whether descriptors of this kind map to a write payload.
func (k Kind) Writable() bool {
	return k == KindNumber || k == KindSelect || k == KindButton
}

// DeviceType is the hardware bitmask resolved during detection.
type DeviceType uint32

const (
	X1 DeviceType = 1 << iota // single phase
	X3                        // three phase
	Pow7
	Pow11
	Pow22
	V10 // charger generation 1
	V11 // charger generation 1.1
	V20 // charger generation 2
)

var deviceTypeNames = []struct {
	flag DeviceType
	name string
}{
	{X1, "X1"},
	{X3, "X3"},
	{Pow7, "7kW"},
	{Pow11, "11kW"},
	{Pow22, "22kW"},
	{V10, "V1.0"},
	{V11, "V1.1"},
	{V20, "V2.0"},
}

// Has reports whether any of the bits in f are set.
func (t DeviceType) Has(f DeviceType) bool {
	return t&f != 0
}

func (t DeviceType) String() string {
	if t == 0 {
		return "unknown"
	}
	parts := make([]string, 0, len(deviceTypeNames))
	for _, n := range deviceTypeNames {
		if t.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

var deviceTypeGroups = []DeviceType{
	X1 | X3,
	Pow7 | Pow11 | Pow22,
	V10 | V11 | V20,
}

// Matches reports whether t satisfies allowed: for every group (phase, power
// class, generation) that allowed names, t must carry one of its bits.
func (t DeviceType) Matches(allowed DeviceType) bool {
	for _, g := range deviceTypeGroups {
		if want := allowed & g; want != 0 && t&want == 0 {
			return false
		}
	}
	return true
}

func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
