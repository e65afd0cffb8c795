package engine

import "fmt"

type StageID string

const (
	Phase1 StageID = "phase1"
	Phase2 StageID = "phase2"
)

const (
	phase1Label = "Core assembly drying"
	phase2Label = "Pre-dispatch drying"
)

// Stage is one processing window of a booking.
type Stage struct {
	ID           StageID `json:"id"`
	Label        string  `json:"label"`
	Start        Date    `json:"start"`
	End          Date    `json:"end"`
	DurationDays int     `json:"durationDays"`
	StartHalf    Half    `json:"startHalf"`
}

// Window returns the stage's occupation. Every stage ends at the midpoint of its end day.
func (s Stage) Window() Window {
	return Window{
		Start: HalfDay{Day: s.Start, Half: s.StartHalf},
		End:   HalfDay{Day: s.End, Half: SecondHalf},
	}
}

// Timeline is the computed two-phase schedule of one booking. It is always
// replaced as a whole; callers never patch individual stages.
type Timeline struct {
	Start     Date     `json:"start"`
	End       Date     `json:"end"`
	Stages    [2]Stage `json:"stages"`
	GapStart  *Date    `json:"gapStart,omitempty"`
	GapEnd    *Date    `json:"gapEnd,omitempty"`
	GapDays   int      `json:"gapDays"`
	TotalDays int      `json:"totalDays"`
	StartHalf Half     `json:"startHalf"`
}

func (t Timeline) Phase1() Stage { return t.Stages[0] }
func (t Timeline) Phase2() Stage { return t.Stages[1] }

func (t Timeline) Windows() [2]Window {
	return [2]Window{t.Stages[0].Window(), t.Stages[1].Window()}
}

// Equal reports structural equality, following the gap pointers.
func (t Timeline) Equal(o Timeline) bool {
	return t.Start == o.Start &&
		t.End == o.End &&
		t.Stages == o.Stages &&
		sameDate(t.GapStart, o.GapStart) &&
		sameDate(t.GapEnd, o.GapEnd) &&
		t.GapDays == o.GapDays &&
		t.TotalDays == o.TotalDays &&
		t.StartHalf == o.StartHalf
}

// Shift moves every boundary by delta days. Durations are preserved.
func (t Timeline) Shift(delta int) Timeline {
	out := t
	out.Start = t.Start.AddDays(delta)
	out.End = t.End.AddDays(delta)
	for i := range out.Stages {
		out.Stages[i].Start = t.Stages[i].Start.AddDays(delta)
		out.Stages[i].End = t.Stages[i].End.AddDays(delta)
	}
	out.GapStart = shiftDate(t.GapStart, delta)
	out.GapEnd = shiftDate(t.GapEnd, delta)
	return out
}

// Clone returns a copy that shares no pointers with t.
func (t Timeline) Clone() Timeline {
	return t.Shift(0)
}

func sameDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func shiftDate(d *Date, delta int) *Date {
	if d == nil {
		return nil
	}
	moved := d.AddDays(delta)
	return &moved
}

// BuildOptions tune a single Build call. The zero value builds the default
// timeline: phase1 starts on the second half of the start day.
type BuildOptions struct {
	ForcedPhase2Start          *Date
	ForceExact                 bool
	AllowSundaySecondHalfStart bool
	AllowForcedWithinMinGap    bool
	FirstHalfStart             bool
	MinGapHalves               int
}

func (o BuildOptions) minGapDays() int {
	halves := o.MinGapHalves
	if halves <= 0 {
		halves = DefaultMinGapHalves
	}
	return (halves + 1) / 2
}

// Build computes the two-phase timeline of a booking starting on start.
func Build(start Date, rule DurationRule, opts BuildOptions) (Timeline, error) {
	if start.IsZero() {
		return Timeline{}, fmt.Errorf("%w: missing start date", ErrInvalidDate)
	}
	minGap := opts.minGapDays()

	p1Half := SecondHalf
	if opts.FirstHalfStart {
		p1Half = FirstHalf
	}
	p1Days := HalvesToDays(rule.Phase1Halves, p1Half)
	p2Days := HalvesToDays(rule.Phase2Halves, SecondHalf)

	p1Start := start
	if p1Half == SecondHalf && !opts.AllowSundaySecondHalfStart {
		p1Start = skipSunday(p1Start)
	}
	p1End := p1Start.AddDays(p1Days - 1)

	var p2Start Date
	if forced := opts.ForcedPhase2Start; forced != nil {
		if forced.IsZero() {
			return Timeline{}, fmt.Errorf("%w: empty forced phase2 start", ErrInvalidDate)
		}
		if forced.Before(start) || forced.Before(p1End) {
			return Timeline{}, fmt.Errorf("%w: phase2 forced to %s but phase1 runs %s..%s", ErrAnchorViolation, forced, p1Start, p1End)
		}
		p2Start = *forced
		if p2Start.DaysSince(p1End) < minGap && !opts.AllowForcedWithinMinGap {
			p2Start = p1End.AddDays(minGap)
		}
	} else {
		p2Start = p1End.AddDays(max(rule.GapDays, minGap))
	}
	if !opts.ForceExact && !opts.AllowSundaySecondHalfStart {
		p2Start = skipSunday(p2Start)
	}
	p2End := p2Start.AddDays(p2Days - 1)

	tl := Timeline{
		Start: p1Start,
		End:   p2End,
		Stages: [2]Stage{
			{ID: Phase1, Label: phase1Label, Start: p1Start, End: p1End, DurationDays: p1Days, StartHalf: p1Half},
			{ID: Phase2, Label: phase2Label, Start: p2Start, End: p2End, DurationDays: p2Days, StartHalf: SecondHalf},
		},
		GapDays:   max(rule.GapDays, minGap),
		StartHalf: p1Half,
	}

	visible := p2Start.DaysSince(p1End) - 1
	if visible > 0 {
		gapStart, gapEnd := p1End.AddDays(1), p2Start.AddDays(-1)
		tl.GapStart, tl.GapEnd = &gapStart, &gapEnd
	} else {
		visible = 0
	}
	tl.TotalDays = p1Days + visible + p2Days
	return tl, nil
}
