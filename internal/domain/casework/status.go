package casework

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusNew               Status = "new"
	StatusAllocated         Status = "allocated"
	StatusAccepted          Status = "accepted"
	StatusPendingAllocation Status = "pending_allocation"
	StatusInProgress        Status = "in_progress"
	StatusSubmitted         Status = "submitted"
	StatusQCPassed          Status = "qc_passed"
	StatusQCRejected        Status = "qc_rejected"
	StatusQCRework          Status = "qc_rework"
	StatusReported          Status = "reported"
	StatusInPaymentCycle    Status = "in_payment_cycle"
	StatusPaymentComplete   Status = "payment_complete"
	StatusCancelled         Status = "cancelled"
)

var allStatuses = []Status{
	StatusNew,
	StatusAllocated,
	StatusAccepted,
	StatusPendingAllocation,
	StatusInProgress,
	StatusSubmitted,
	StatusQCPassed,
	StatusQCRejected,
	StatusQCRework,
	StatusReported,
	StatusInPaymentCycle,
	StatusPaymentComplete,
	StatusCancelled,
}

// lifecycleRank orders statuses along the forward path. Statuses sharing a
// rank are alternatives at the same step.
var lifecycleRank = map[Status]int{
	StatusNew:               0,
	StatusPendingAllocation: 1,
	StatusAllocated:         2,
	StatusAccepted:          3,
	StatusInProgress:        4,
	StatusSubmitted:         5,
	StatusQCPassed:          6,
	StatusQCRejected:        6,
	StatusQCRework:          6,
	StatusReported:          7,
	StatusInPaymentCycle:    8,
	StatusPaymentComplete:   9,
	StatusCancelled:         9,
}

func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := lifecycleRank[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return candidate, nil
}

func (s Status) IsTerminal() bool {
	return s == StatusPaymentComplete || s == StatusCancelled
}

// AtOrAfter reports whether s is at least as far along the lifecycle as other.
func (s Status) AtOrAfter(other Status) bool {
	return lifecycleRank[s] >= lifecycleRank[other]
}

func (s Status) String() string { return string(s) }
