package signal

import (
	"fmt"
	"strings"
)

// SelectionMask records which indicators take part in the overall signal.
// Missing entries count as unselected.
type SelectionMask map[IndicatorName]bool

// DefaultMask selects every indicator.
func DefaultMask() SelectionMask {
	m := make(SelectionMask, len(allIndicators))
	for _, n := range allIndicators {
		m[n] = true
	}
	return m
}

// EmptyMask deselects every indicator.
func EmptyMask() SelectionMask {
	m := make(SelectionMask, len(allIndicators))
	for _, n := range allIndicators {
		m[n] = false
	}
	return m
}

// Selected reports whether n is switched on.
func (m SelectionMask) Selected(n IndicatorName) bool {
	return m[n]
}

// Clone returns an independent copy.
func (m SelectionMask) Clone() SelectionMask {
	out := make(SelectionMask, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Toggle returns a copy of m with n flipped. The receiver is left untouched.
func (m SelectionMask) Toggle(n IndicatorName) SelectionMask {
	out := m.Clone()
	out[n] = !m[n]
	return out
}

// Names returns the selected indicators in canonical order.
func (m SelectionMask) Names() []IndicatorName {
	out := make([]IndicatorName, 0, len(m))
	for _, n := range allIndicators {
		if m[n] {
			out = append(out, n)
		}
	}
	return out
}

// String renders the mask in the same comma form ParseMask accepts.
func (m SelectionMask) String() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ",")
}

// ParseMask builds a mask from a comma separated list of indicator names.
// "all" selects everything and "none" selects nothing.
func ParseMask(raw string) (SelectionMask, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "all":
		return DefaultMask(), nil
	case "none":
		return EmptyMask(), nil
	}
	m := EmptyMask()
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, ok := ParseIndicator(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, strings.TrimSpace(part))
		}
		m[n] = true
	}
	return m, nil
}
