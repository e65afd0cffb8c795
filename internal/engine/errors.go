package engine

import "errors"

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrRuleNotFound    = errors.New("no duration rule for voltage class")
	ErrAnchorViolation = errors.New("anchor violates phase order")
	ErrUnavailable     = errors.New("furnace unavailable")
	ErrLineLimit       = errors.New("line limit exceeded")
)
