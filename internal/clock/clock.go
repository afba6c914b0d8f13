// Package clock implements the per-device vector clock that orders case
// versions causally. Devices never share wall-clock time; each device only
// increments its own counter, and comparing two clocks yields a partial
// order (Before/After/Equal) or a true conflict (Concurrent).
package clock

import (
	"encoding/json"
	"errors"
	"maps"
)

// ErrInvalidClockFormat reports a serialized clock that cannot be decoded
// into device→counter pairs. The affected batch entry is rejected
// individually; the rest of the batch proceeds.
var ErrInvalidClockFormat = errors.New("invalid clock format")

// Ordering is the result of comparing two vector clocks.
type Ordering int

const (
	// Before means every counter of the receiver is <= the other clock's
	// (missing entries count as 0) and at least one is strictly less.
	Before Ordering = iota
	// After is the symmetric case: the receiver causally dominates.
	After
	// Equal means all counters match.
	Equal
	// Concurrent means neither clock dominates the other.
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case Equal:
		return "equal"
	default:
		return "concurrent"
	}
}

// VectorClock maps a device identifier to a monotonically non-decreasing
// counter. The zero-length clock is the identity ("empty") clock.
type VectorClock map[string]uint64

// New returns an empty clock.
func New() VectorClock {
	return VectorClock{}
}

// Default returns the clock assigned to records that arrive with an empty
// clock (pre-versioning clients, or brand-new records whose device never
// ticked): the server's own device identifier at counter 1. Every stored
// record therefore has a non-empty clock, which keeps later comparisons
// meaningful.
func Default(serverDeviceID string) VectorClock {
	return VectorClock{serverDeviceID: 1}
}

// Tick increments the counter for deviceID, creating the entry at 1 if it
// is absent.
func (vc VectorClock) Tick(deviceID string) {
	vc[deviceID]++
}

// IsEmpty reports whether the clock has no entries.
func (vc VectorClock) IsEmpty() bool {
	return len(vc) == 0
}

// Compare determines how vc relates to other. Comparison is pointwise over
// the union of device keys, with missing keys treated as 0. Exactly one of
// Before, After, Equal or Concurrent is returned for any pair of clocks.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	var vcGreater, otherGreater bool

	for device, n := range vc {
		if m := other[device]; n > m {
			vcGreater = true
		} else if n < m {
			otherGreater = true
		}
	}
	for device, m := range other {
		if _, ok := vc[device]; !ok && m > 0 {
			otherGreater = true
		}
	}

	switch {
	case vcGreater && otherGreater:
		return Concurrent
	case vcGreater:
		return After
	case otherGreater:
		return Before
	default:
		return Equal
	}
}

// Merge folds other into vc, keeping the pointwise maximum per device over
// the union of keys. Merge is commutative, associative and idempotent:
// merging a clock with itself, or with a clock it already dominates, is a
// no-op.
func (vc VectorClock) Merge(other VectorClock) {
	for device, m := range other {
		if m > vc[device] {
			vc[device] = m
		}
	}
}

// Clone returns an independent copy of the clock. Maps are reference
// types; callers that hand a clock across a reconciliation boundary must
// copy it first.
func (vc VectorClock) Clone() VectorClock {
	c := make(VectorClock, len(vc))
	maps.Copy(c, vc)
	return c
}

// MarshalJSON serializes the clock as an object mapping device identifiers
// to counters. The empty clock serializes as {}.
func (vc VectorClock) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]uint64(vc))
}

// Decode parses a serialized clock. An absent or empty form decodes to the
// empty clock; anything not decodable into device→counter pairs returns
// ErrInvalidClockFormat.
func Decode(data []byte) (VectorClock, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var m map[string]uint64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrInvalidClockFormat
	}
	if m == nil {
		return New(), nil
	}
	return VectorClock(m), nil
}

// Equal reports whether two clocks hold identical entries. Unlike Compare
// it treats a present zero counter and an absent entry as equal.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.Compare(other) == Equal
}
