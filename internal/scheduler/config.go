package scheduler

import (
	"furnace-scheduler/config"
	"furnace-scheduler/internal/engine"
)

// RulesFromConfig turns the configured voltage rules into an engine rule table.
func RulesFromConfig(cfg config.SchedulingConfig) engine.RuleTable {
	return engine.RuleTable{
		engine.VoltageLow:  cfg.VoltageRules.Low,
		engine.VoltageHigh: cfg.VoltageRules.High,
	}
}

// FurnacesFromConfig converts the configured inventory, in configuration order.
func FurnacesFromConfig(cfg config.SchedulingConfig) []engine.FurnaceSpec {
	out := make([]engine.FurnaceSpec, 0, len(cfg.Furnaces))
	for _, f := range cfg.Furnaces {
		out = append(out, engine.FurnaceSpec{
			ID:                         f.ID,
			Name:                       f.Name,
			Lines:                      f.Lines,
			MinGapHalves:               f.MinGapHalves,
			AllowSundaySecondHalfStart: f.AllowSundaySecondHalfStart,
			Aliases:                    append([]string(nil), f.Aliases...),
		})
	}
	return out
}
