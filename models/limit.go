package models

import (
	"encoding/json"
	"fmt"
)

// UnboundedSentinel is what an unbounded limit serializes to in API
// payloads. Clients must treat it as "not capped", never as a number.
const UnboundedSentinel = "unbounded"

// Limit is the effective cap for a single credit bucket. It is either a
// finite credit count or unbounded (contract-negotiated plans are not
// capped by this system). The tagged representation forces every caller
// to handle both cases explicitly instead of threading a nullable
// integer through comparisons.
type Limit struct {
	value     int
	unbounded bool
}

// FiniteLimit returns a limit capped at n credits.
func FiniteLimit(n int) Limit {
	return Limit{value: n}
}

// Unlimited returns an unbounded limit.
func Unlimited() Limit {
	return Limit{unbounded: true}
}

// IsUnbounded reports whether the limit is not capped.
func (l Limit) IsUnbounded() bool {
	return l.unbounded
}

// Value returns the finite cap. The second return value is false for an
// unbounded limit, in which case the cap is meaningless.
func (l Limit) Value() (int, bool) {
	if l.unbounded {
		return 0, false
	}
	return l.value, true
}

// Remaining returns max(0, limit-used) for a finite limit. For an
// unbounded limit it returns ok=false; there is no finite remainder.
func (l Limit) Remaining(used int) (int, bool) {
	if l.unbounded {
		return 0, false
	}
	rem := l.value - used
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

// PercentUsed returns used/limit as a whole percentage clamped to
// [0,100]. ok=false for unbounded limits.
func (l Limit) PercentUsed(used int) (int, bool) {
	if l.unbounded {
		return 0, false
	}
	if l.value == 0 {
		return 0, true
	}
	if used < 0 {
		used = 0
	}
	pct := used * 100 / l.value
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// MarshalJSON serializes a finite limit as a number and an unbounded
// limit as the sentinel string.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unbounded {
		return json.Marshal(UnboundedSentinel)
	}
	return json.Marshal(l.value)
}

// String implements fmt.Stringer for log lines.
func (l Limit) String() string {
	if l.unbounded {
		return UnboundedSentinel
	}
	return fmt.Sprintf("%d", l.value)
}
