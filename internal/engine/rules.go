package engine

import (
	"fmt"
	"strings"
)

// VoltageClass selects the duration regime of a booking. Higher classes dry longer.
type VoltageClass int

const (
	VoltageLow VoltageClass = iota + 1
	VoltageHigh
)

// DefaultMinGapHalves is the minimum idle gap between phase1 and phase2 (2 days).
const DefaultMinGapHalves = 4

func (c VoltageClass) String() string {
	switch c {
	case VoltageLow:
		return "low"
	case VoltageHigh:
		return "high"
	}
	return fmt.Sprintf("voltage(%d)", int(c))
}

// Label is the nameplate rating shown to operators.
func (c VoltageClass) Label() string {
	switch c {
	case VoltageLow:
		return "110 kV"
	case VoltageHigh:
		return "220 kV"
	}
	return ""
}

func (c VoltageClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *VoltageClass) UnmarshalText(b []byte) error {
	parsed, err := ParseVoltageClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseVoltageClass accepts the canonical names produced by String.
func ParseVoltageClass(s string) (VoltageClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return VoltageLow, nil
	case "high":
		return VoltageHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrRuleNotFound, s)
}

// DurationRule fixes the phase lengths for one voltage class.
type DurationRule struct {
	Phase1Halves int `json:"phase1Halves" yaml:"phase1_halves"`
	Phase2Halves int `json:"phase2Halves" yaml:"phase2_halves"`
	GapDays      int `json:"gapDays" yaml:"gap_days"`
}

func (r DurationRule) Validate() error {
	if r.Phase1Halves < 1 || r.Phase2Halves < 1 {
		return fmt.Errorf("phase lengths must be at least one half day, got %d/%d", r.Phase1Halves, r.Phase2Halves)
	}
	if r.GapDays < 0 {
		return fmt.Errorf("gap days must not be negative, got %d", r.GapDays)
	}
	return nil
}

// RuleTable maps each voltage class to its duration rule.
type RuleTable map[VoltageClass]DurationRule

func DefaultRules() RuleTable {
	return RuleTable{
		VoltageLow:  {Phase1Halves: 4, Phase2Halves: 6, GapDays: 2},
		VoltageHigh: {Phase1Halves: 6, Phase2Halves: 8, GapDays: 2},
	}
}

// Strict returns the rule for c or ErrRuleNotFound.
func (t RuleTable) Strict(c VoltageClass) (DurationRule, error) {
	r, ok := t[c]
	if !ok {
		return DurationRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, c)
	}
	return r, nil
}

// Lookup returns the rule for c, falling back to the low-class rule so an unknown
// class never makes a furnace unbookable. The boolean is false on fallback.
func (t RuleTable) Lookup(c VoltageClass) (DurationRule, bool) {
	if r, ok := t[c]; ok {
		return r, true
	}
	if r, ok := t[VoltageLow]; ok {
		return r, false
	}
	return DefaultRules()[VoltageLow], false
}

// HighestClass returns the longest regime among classes, or VoltageLow when empty.
func HighestClass(classes ...VoltageClass) VoltageClass {
	out := VoltageLow
	for _, c := range classes {
		if c > out {
			out = c
		}
	}
	return out
}
