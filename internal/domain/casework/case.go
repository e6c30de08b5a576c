package casework

import (
	"time"

	"github.com/shopspring/decimal"
)

const QCResponseRework = "Rework"

// Metadata keys stored on the case record.
const (
	MetaQCReworkTime             = "qc_rework_time"
	MetaReworkAcceptanceDeadline = "rework_acceptance_deadline"
)

type Case struct {
	ID                 string
	CaseNumber         string
	Status             Status
	Assignee           *Assignee
	AcceptanceDeadline *time.Time
	StatusUpdatedAt    time.Time
	TATHours           int
	DueAt              *time.Time
	VendorTATStartDate *time.Time
	QCResponse         *string
	IsPositive         *bool
	Metadata           map[string]any
	PayoutAmount       *decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MetaTime reads a timestamp stored in metadata.
func (c Case) MetaTime(key string) (time.Time, bool) {
	if c.Metadata == nil {
		return time.Time{}, false
	}
	switch v := c.Metadata[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

type AllocationDecision string

const (
	DecisionAllocated AllocationDecision = "allocated"
	DecisionAccepted  AllocationDecision = "accepted"
	DecisionRejected  AllocationDecision = "rejected"
	DecisionTimeout   AllocationDecision = "timeout"
	DecisionCancelled AllocationDecision = "cancelled"
)

type AllocationLog struct {
	ID                 string
	CaseID             string
	Assignee           Assignee
	AllocatedAt        time.Time
	AcceptedAt         *time.Time
	Decision           AllocationDecision
	DecisionAt         *time.Time
	ReallocationReason string
}

// IsOpen reports a log row still waiting for its terminal decision.
func (l AllocationLog) IsOpen() bool {
	return l.Decision == DecisionAllocated && l.DecisionAt == nil
}

type QCResult string

const (
	QCPass   QCResult = "pass"
	QCReject QCResult = "reject"
	QCRework QCResult = "rework"
)

type QCReview struct {
	ID                 string
	CaseID             string
	ReviewerID         string
	ReviewedAt         time.Time
	Result             QCResult
	Comments           string
	IssuesFound        []string
	ReworkInstructions string
	ReworkDeadline     *time.Time
}

type QCDetails struct {
	Comments           string
	IssuesFound        []string
	ReworkInstructions string
}
