package parse

import (
	"fmt"

	"furnace-scheduler/internal/engine"
)

var statusKeys = map[string]engine.Status{
	"kehoach":      engine.StatusPlanned,
	"planned":      engine.StatusPlanned,
	"dadangky":     engine.StatusRegistered,
	"registered":   engine.StatusRegistered,
	"dangthuchien": engine.StatusInProgress,
	"inprogress":   engine.StatusInProgress,
	"ketthuc":      engine.StatusDone,
	"done":         engine.StatusDone,
	"delay":        engine.StatusDelayed,
	"delayed":      engine.StatusDelayed,
}

// ParseStatus reads a status as operators wrote it in exported schedules,
// e.g. "Đã đăng ký" or "in_progress". An empty value is a fresh plan.
func ParseStatus(raw string) (engine.Status, error) {
	key := Key(raw)
	if key == "" {
		return engine.StatusPlanned, nil
	}
	if s, ok := statusKeys[key]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown status %q", raw)
}
