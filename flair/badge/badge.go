// Parsing and encoding of the trade count carried in a participant's badge.
//
// A badge is either empty (no count tracked yet, arithmetic treats it as zero), the configured prefix followed
// by a non-negative integer, or anything else. Anything else is an opaque status (for example a manually
// assigned rank) which is never touched by arithmetic.
package badge

import (
	"strconv"
	"strings"
)

type Kind int

const (
	Absent Kind = iota
	Count
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Count:
		return "count"
	case Opaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Tagged trade count value. Only one of N (Count) or Status (Opaque) is meaningful, selected by Kind.
type Credit struct {
	Kind Kind
	N    int
	// Opaque status label, with any prefix removed
	Status string
	// Original badge text of an opaque value
	Raw string
}

func FromCount(n int) Credit {
	if n < 0 {
		n = 0
	}
	return Credit{Kind: Count, N: n}
}

// Parse decodes a raw badge value using the given prefix (eg, "i-").
func Parse(raw, prefix string) Credit {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credit{Kind: Absent}
	}
	digits, ok := strings.CutPrefix(raw, prefix)
	if !ok || digits == "" {
		return Credit{Kind: Opaque, Status: raw, Raw: raw}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Credit{Kind: Opaque, Status: digits, Raw: raw}
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		// out of range
		return Credit{Kind: Opaque, Status: digits, Raw: raw}
	}
	return Credit{Kind: Count, N: n}
}

// Numeric reports whether the value takes part in arithmetic and threshold checks.
func (c Credit) Numeric() bool {
	return c.Kind != Opaque
}

// Trade count for threshold checks. Absent counts as zero. Only meaningful when Numeric.
func (c Credit) Trades() int {
	if c.Kind == Count {
		return c.N
	}
	return 0
}

// Adjust returns the value moved by delta, floored at zero. Opaque values are returned unchanged, with ok false.
func (c Credit) Adjust(delta int) (Credit, bool) {
	if !c.Numeric() {
		return c, false
	}
	return FromCount(c.Trades() + delta), true
}

// Encode renders the value back into badge form. Absent encodes as the empty string.
func (c Credit) Encode(prefix string) string {
	switch c.Kind {
	case Count:
		return prefix + strconv.Itoa(c.N)
	case Opaque:
		return c.Raw
	default:
		return ""
	}
}

func (c Credit) String() string {
	switch c.Kind {
	case Count:
		return strconv.Itoa(c.N) + " trade(s)"
	case Opaque:
		return "status " + c.Status
	default:
		return "no trades"
	}
}
