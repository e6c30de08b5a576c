package casework

import (
	"strings"
	"time"
)

// IsReworkPath reports whether the case is in a rework cycle. The qc_rework
// status is the signal the engine writes; qc_response is read as well so older
// rows that only carry the flag are treated the same way.
func IsReworkPath(c Case) bool {
	if c.Status == StatusQCRework {
		return true
	}
	return c.QCResponse != nil && strings.EqualFold(strings.TrimSpace(*c.QCResponse), QCResponseRework)
}

// ReasonRework marks allocation log rows opened on the rework path.
const ReasonRework = "rework"

// JoinReasons appends next to prev unless prev already carries it. Closing an
// allocation log keeps the reason it was opened with.
func JoinReasons(prev string, next string) string {
	prev = strings.TrimSpace(prev)
	next = strings.TrimSpace(next)
	switch {
	case next == "":
		return prev
	case prev == "":
		return next
	}
	for _, part := range strings.Split(prev, "; ") {
		if part == next {
			return prev
		}
	}
	return prev + "; " + next
}

// ReworkAnchor is the moment QC marked the case for rework, falling back to
// the last status change for rows without qc_rework_time.
func ReworkAnchor(c Case) time.Time {
	if at, ok := c.MetaTime(MetaQCReworkTime); ok {
		return at
	}
	return c.StatusUpdatedAt
}

func ReworkDeadline(c Case, p Policy) time.Time {
	return ReworkAnchor(c).Add(p.withDefaults().ReworkWindow)
}

func ReworkExpired(c Case, p Policy, now time.Time) bool {
	return c.Status == StatusQCRework && !now.Before(ReworkDeadline(c, p))
}

// AcceptanceExpired reports an allocation whose acceptance deadline has passed.
func AcceptanceExpired(c Case, now time.Time) bool {
	if c.Status != StatusAllocated || c.AcceptanceDeadline == nil {
		return false
	}
	if c.Assignee != nil && c.Assignee.IsDirectGig() {
		return false
	}
	return !now.Before(*c.AcceptanceDeadline)
}

func formatMetaTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
