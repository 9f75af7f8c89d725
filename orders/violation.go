package orders

import (
	"errors"
	"fmt"
)

// ViolationKind classifies why an operation was refused.
type ViolationKind string

const (
	KindInsufficientBalance ViolationKind = "insufficient_balance"
	KindRestriction         ViolationKind = "restriction_violation"
	KindDuplicatePreorder   ViolationKind = "duplicate_preorder"
	KindInvalidTransition   ViolationKind = "invalid_transition"
	KindItemUnavailable     ViolationKind = "item_unavailable"
	KindPastDate            ViolationKind = "past_date"
	KindInvalidAmount       ViolationKind = "invalid_amount"
	KindForbidden           ViolationKind = "forbidden"
	KindNotFound            ViolationKind = "not_found"
)

// Violation is a typed refusal with a human-readable reason. It is a
// result, not a fault: callers branch on Kind without stack unwinding, and
// nothing was applied when one is returned.
type Violation struct {
	Kind   ViolationKind
	Reason string
}

func (v *Violation) Error() string {
	return v.Reason
}

func violationf(kind ViolationKind, format string, args ...any) *Violation {
	return &Violation{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsViolation unwraps a Violation from an error chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
