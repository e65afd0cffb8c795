package engine

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a serial line or of a whole booking.
type Status int

const (
	StatusPlanned Status = iota
	StatusRegistered
	StatusInProgress
	StatusDone
	StatusDelayed
)

var statusNames = map[Status]string{
	StatusPlanned:    "planned",
	StatusRegistered: "registered",
	StatusInProgress: "in_progress",
	StatusDone:       "done",
	StatusDelayed:    "delayed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Next is the following step of the normal flow. Done and Delayed have none.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPlanned, StatusRegistered, StatusInProgress:
		return s + 1, true
	}
	return s, false
}

// StatusEntry records one status transition.
type StatusEntry struct {
	Status Status    `json:"status"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// DeriveStatus folds line statuses into the booking status: any delayed line
// delays the booking, otherwise the most advanced line wins.
func DeriveStatus(lines []SerialLine) Status {
	out := StatusPlanned
	for _, l := range lines {
		if l.Status == StatusDelayed {
			return StatusDelayed
		}
		if l.Status > out {
			out = l.Status
		}
	}
	return out
}
