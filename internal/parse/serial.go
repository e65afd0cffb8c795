package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"furnace-scheduler/internal/engine"
)

// ErrUnknownVoltage is returned when a voltage label maps to no class.
var ErrUnknownVoltage = errors.New("unknown voltage")

// highVoltageKV is the nameplate rating from which a transformer dries on the high-class rules.
const highVoltageKV = 220

var (
	summaryRe = regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)\s*$`)
	kvRe      = regexp.MustCompile(`(\d{2,3})`)
)

// ParseVoltage maps a free-form rating such as "220 kV", "110" or "high" to a class.
func ParseVoltage(raw string) (engine.VoltageClass, error) {
	if m := kvRe.FindStringSubmatch(raw); m != nil {
		kv, err := strconv.Atoi(m[1])
		if err == nil {
			if kv >= highVoltageKV {
				return engine.VoltageHigh, nil
			}
			return engine.VoltageLow, nil
		}
	}
	switch Key(raw) {
	case "high", "cao":
		return engine.VoltageHigh, nil
	case "low", "thap":
		return engine.VoltageLow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVoltage, raw)
}

// ParseSerialSummary splits "T-101 (220 kV)" into a serial line.
// A summary without a rating yields a line with a zero voltage class.
func ParseSerialSummary(raw string) (engine.SerialLine, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return engine.SerialLine{}, fmt.Errorf("empty serial summary")
	}
	m := summaryRe.FindStringSubmatch(s)
	if m == nil {
		return engine.SerialLine{Serial: s}, nil
	}
	serial := strings.TrimSpace(m[1])
	if serial == "" {
		return engine.SerialLine{}, fmt.Errorf("serial summary %q has no serial", raw)
	}
	class, err := ParseVoltage(m[2])
	if err != nil {
		return engine.SerialLine{}, fmt.Errorf("serial %s: %w", serial, err)
	}
	return engine.SerialLine{Serial: serial, Voltage: class}, nil
}

// FormatSerialSummary is the inverse of ParseSerialSummary.
func FormatSerialSummary(l engine.SerialLine) string {
	if label := l.Voltage.Label(); label != "" {
		return fmt.Sprintf("%s (%s)", l.Serial, label)
	}
	return l.Serial
}
