package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Registers is the canonical form of a raw container: register index to raw
// value. Raw JSON arrays and objects keyed by "0", "1", ... both normalise to
// it, so lookups never branch on representation.
type Registers map[int]any

// NormalizeRegisters converts a decoded JSON container into Registers.
// Anything that is neither an array nor an object yields nil.
func NormalizeRegisters(raw any) Registers {
	switch c := raw.(type) {
	case Registers:
		return c
	case []any:
		regs := make(Registers, len(c))
		for i, v := range c {
			regs[i] = v
		}
		return regs
	case map[string]any:
		regs := make(Registers, len(c))
		for k, v := range c {
			idx, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil {
				continue
			}
			regs[idx] = v
		}
		return regs
	case map[int]any:
		return Registers(c)
	}
	return nil
}

// Get returns the raw value at index. A present but null register is reported
// as missing.
func (r Registers) Get(index int) (any, bool) {
	if r == nil || index < 0 {
		return nil, false
	}
	v, ok := r[index]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the register rendered as text, or "" when missing.
func (r Registers) String(index int) string {
	v, ok := r.Get(index)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Payload is the untouched realtime response object.
type Payload map[string]any

// RuntimeType returns the numeric "type" field.
func (p Payload) RuntimeType() (int, bool) {
	raw, ok := p["type"]
	if !ok || raw == nil {
		return 0, false
	}
	i, err := ToInt(raw)
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// RawType returns the "type" field as text for diagnostics.
func (p Payload) RawType() string {
	return p.text("type")
}

func (p Payload) Serial() string {
	return p.text("sn")
}

func (p Payload) Version() string {
	return p.text("ver")
}

func (p Payload) Data() Registers {
	return NormalizeRegisters(p["Data"])
}

func (p Payload) Information() Registers {
	return NormalizeRegisters(p["Information"])
}

// Field returns a top-level value.
func (p Payload) Field(name string) (any, bool) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (p Payload) text(key string) string {
	v, ok := p.Field(key)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Snapshot is the result of one read cycle. It is never modified after
// NewSnapshot returns; the next poll replaces it wholesale.
type Snapshot struct {
	Data        Registers
	Information Registers
	SetData     Registers
	RawRealtime Payload
	RawSet      any
	FetchedAt   time.Time
}

// NewSnapshot normalises a realtime payload and an optional set-data response.
// A nil realtime payload produces empty Data and Information containers.
func NewSnapshot(realtime Payload, set any) *Snapshot {
	snap := &Snapshot{
		Data:        Registers{},
		Information: Registers{},
		SetData:     NormalizeRegisters(set),
		RawRealtime: realtime,
		RawSet:      set,
		FetchedAt:   time.Now(),
	}
	if snap.SetData == nil {
		snap.SetData = Registers{}
	}
	if realtime != nil {
		if d := realtime.Data(); d != nil {
			snap.Data = d
		}
		if info := realtime.Information(); info != nil {
			snap.Information = info
		}
	}
	return snap
}

// Container returns the registers for src, nil when the snapshot has none.
func (s *Snapshot) Container(src Source) Registers {
	if s == nil {
		return nil
	}
	switch src {
	case SourceData:
		return s.Data
	case SourceInfo:
		return s.Information
	case SourceSet:
		return s.SetData
	}
	return nil
}

// Empty reports whether the realtime read produced nothing.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.RawRealtime) == 0
}
