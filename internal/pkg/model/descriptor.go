package model

import (
	"strings"

	"github.com/gosimple/slug"
)

// Resolver looks up a second register while a derived value is computed. It
// searches the live snapshot first and the cached payload second.
type Resolver interface {
	Lookup(src Source, index int) (any, bool)
}

// DeriveFunc computes the final value from the already scaled primary value.
// Returning false marks the value unavailable.
type DeriveFunc func(primary float64, d *Descriptor, r Resolver) (float64, bool)

// Limits bounds a writable number.
type Limits struct {
	Min float64
	Max float64
}

// Descriptor is the static description of one measurement or control point.
// Descriptor tables are built once per device family and never mutated.
type Descriptor struct {
	Key  string
	Name string
	Kind Kind

	Source Source
	// Index is the register position within Source. Negative means none.
	Index int
	// Field names the top-level payload value for SourcePayload.
	Field string

	// Factor scales the raw value. Zero is treated as 1.
	Factor     float64
	Signed16   bool
	InvertSign bool
	// Precision rounds to the given decimal digits when set.
	Precision *int
	Derive    DeriveFunc

	// Opaque host metadata.
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string

	// AllowedTypes restricts the descriptor to devices carrying one of these
	// bits in every group it names. Zero applies to every device.
	AllowedTypes DeviceType

	// Write side.
	Register   int
	Limits     *Limits
	Options    map[int]string
	PressValue int
}

// Digits is a helper for Descriptor.Precision literals.
func Digits(n int) *int {
	return &n
}

// Scale returns the effective factor.
func (d *Descriptor) Scale() float64 {
	if d.Factor == 0 {
		return 1
	}
	return d.Factor
}

// Option returns the label for a select or status code.
func (d *Descriptor) Option(code int) (string, bool) {
	label, ok := d.Options[code]
	return label, ok
}

// Slug is the entity name sinks publish the descriptor under.
func (d *Descriptor) Slug() string {
	return Slugify(d.Name)
}

// Slugify lower-cases s and joins its words with underscores.
func Slugify(s string) string {
	return strings.ReplaceAll(slug.Make(s), "-", "_")
}

// Reading pairs a descriptor with its decoded value.
type Reading struct {
	Descriptor *Descriptor
	Value      Value
}

// WriteItem is one register assignment sent to the setReg endpoint.
type WriteItem struct {
	Reg int    `json:"reg"`
	Val string `json:"val"`
}

// WritePayload is the Data array of a setReg request.
type WritePayload []WriteItem
