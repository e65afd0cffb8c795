package engine

import (
	"log"
)

// Engine computes timelines with a fixed rule table. It holds no booking state;
// every call works on the FurnaceSchedule it is given.
type Engine struct {
	rules  RuleTable
	logger *log.Logger
}

func New(rules RuleTable, logger *log.Logger) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{rules: rules, logger: logger}
}

func (e *Engine) Rules() RuleTable {
	return e.rules
}

// Rule returns the duration rule for c, logging when it has to fall back.
func (e *Engine) Rule(c VoltageClass) DurationRule {
	r, ok := e.rules.Lookup(c)
	if !ok {
		e.logger.Printf("no duration rule for %s, using %s rule", c, VoltageLow)
	}
	return r
}

// BuildFor builds a timeline on furnace f, applying the furnace's gap and Sunday policy.
func (e *Engine) BuildFor(f FurnaceSpec, start Date, class VoltageClass, opts BuildOptions) (Timeline, error) {
	if opts.MinGapHalves == 0 {
		opts.MinGapHalves = f.MinGapHalves
	}
	if f.AllowSundaySecondHalfStart {
		opts.AllowSundaySecondHalfStart = true
	}
	return Build(start, e.Rule(class), opts)
}

// Own builds b's timeline from its own start and class, with no anchors.
func (e *Engine) Own(f FurnaceSpec, b *Booking) (Timeline, error) {
	return e.BuildFor(f, b.StartDate, b.EffectiveClass(), BuildOptions{})
}
