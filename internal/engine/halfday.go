package engine

import "fmt"

// Half marks whether a boundary sits at the start or the midpoint of its day.
type Half int

const (
	FirstHalf Half = iota
	SecondHalf
)

func (h Half) String() string {
	if h == SecondHalf {
		return "second"
	}
	return "first"
}

func (h Half) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Half) UnmarshalText(b []byte) error {
	switch string(b) {
	case "first", "":
		*h = FirstHalf
	case "second":
		*h = SecondHalf
	default:
		return fmt.Errorf("unknown half-day marker %q", string(b))
	}
	return nil
}

// HalfDay is a point on the calendar with half-day resolution.
type HalfDay struct {
	Day  Date
	Half Half
}

// Units counts half days since 1970-01-01; a second-half boundary is one unit after
// the first-half boundary of the same day.
func (h HalfDay) Units() int {
	return 2*h.Day.ordinal() + int(h.Half)
}

func (h HalfDay) Compare(o HalfDay) int {
	return cmpInt(h.Units(), o.Units())
}

func (h HalfDay) Before(o HalfDay) bool {
	return h.Units() < o.Units()
}

func (h HalfDay) AddHalves(n int) HalfDay {
	return halfDayFromUnits(h.Units() + n)
}

func (h HalfDay) String() string {
	return fmt.Sprintf("%s/%s", h.Day, h.Half)
}

func halfDayFromUnits(u int) HalfDay {
	day := u / 2
	if u%2 != 0 && u < 0 {
		day--
	}
	return HalfDay{Day: epoch.AddDays(day), Half: Half(u - 2*day)}
}

// HalvesToDays converts a phase length in half days to the number of calendar
// days it touches. A phase that starts mid-day spills into one extra day.
func HalvesToDays(halves int, start Half) int {
	if halves < 1 {
		return 1
	}
	days := (halves + 1) / 2
	if start == SecondHalf {
		days++
	}
	return max(1, days)
}

// Window is a half-open occupation interval [Start, End).
type Window struct {
	Start HalfDay
	End   HalfDay
}

// Contains reports whether the half-day slot starting at h lies inside w.
func (w Window) Contains(h HalfDay) bool {
	u := h.Units()
	return w.Start.Units() <= u && u < w.End.Units()
}

// Overlaps reports whether two windows intersect. Windows that only touch, such as
// a phase ending at midday and another starting at midday, do not overlap.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
