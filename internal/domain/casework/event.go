package casework

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventAllocate          EventType = "allocate"
	EventAccept            EventType = "accept"
	EventReject            EventType = "reject"
	EventTimeout           EventType = "timeout"
	EventFirstAutosave     EventType = "first_autosave"
	EventSubmitFinal       EventType = "submit_final"
	EventQCDecide          EventType = "qc_decide"
	EventReworkReassign    EventType = "rework_reassign"
	EventReworkTimeout     EventType = "rework_timeout"
	EventReport            EventType = "report"
	EventEnterPaymentCycle EventType = "enter_payment_cycle"
	EventCompletePayment   EventType = "complete_payment"
	EventCancel            EventType = "cancel"
)

// SystemActor is recorded for events raised by the deadline monitor.
const SystemActor = "system:deadline-monitor"

// Event is a request to move a case. At is the instant the event is evaluated against.
type Event struct {
	Type         EventType
	Actor        string
	At           time.Time
	Assignee     *Assignee
	Reason       string
	QCResult     QCResult
	QC           QCDetails
	PayoutAmount *decimal.Decimal
}

func ParseQCResult(raw string) (QCResult, error) {
	switch QCResult(strings.ToLower(strings.TrimSpace(raw))) {
	case QCPass:
		return QCPass, nil
	case QCReject:
		return QCReject, nil
	case QCRework:
		return QCRework, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidQCResult, raw)
	}
}

// Patch lists the case fields written together with the status change.
type Patch struct {
	Assignee                *Assignee
	ClearAssignee           bool
	AcceptanceDeadline      *time.Time
	ClearAcceptanceDeadline bool
	QCResponse              *string
	ClearQCResponse         bool
	Metadata                map[string]any
	PayoutAmount            *decimal.Decimal
}

type EffectKind string

const (
	EffectOpenAllocationLog  EffectKind = "open_allocation_log"
	EffectCloseAllocationLog EffectKind = "close_allocation_log"
	EffectRecordQCReview     EffectKind = "record_qc_review"
	EffectFinalizeSubmission EffectKind = "finalize_submission"
)

// Effect is a secondary write applied in the same unit of work as the status change.
type Effect struct {
	Kind     EffectKind
	Assignee *Assignee
	Decision AllocationDecision
	Reason   string
	Review   *QCReview
}

type Transition struct {
	CaseID  string
	From    Status
	To      Status
	Event   EventType
	Actor   string
	At      time.Time
	Patch   Patch
	Effects []Effect
	NoOp    bool
}

// Apply returns c as it reads after the transition is written. Patch metadata
// keys are merged over the existing map.
func (t Transition) Apply(c Case) Case {
	if t.NoOp {
		return c
	}
	next := c
	next.Status = t.To
	next.StatusUpdatedAt = t.At
	next.UpdatedAt = t.At

	p := t.Patch
	switch {
	case p.Assignee != nil:
		assignee := *p.Assignee
		next.Assignee = &assignee
	case p.ClearAssignee:
		next.Assignee = nil
	}
	switch {
	case p.AcceptanceDeadline != nil:
		deadline := *p.AcceptanceDeadline
		next.AcceptanceDeadline = &deadline
	case p.ClearAcceptanceDeadline:
		next.AcceptanceDeadline = nil
	}
	switch {
	case p.QCResponse != nil:
		flag := *p.QCResponse
		next.QCResponse = &flag
	case p.ClearQCResponse:
		next.QCResponse = nil
	}
	if len(p.Metadata) > 0 {
		merged := make(map[string]any, len(c.Metadata)+len(p.Metadata))
		for k, v := range c.Metadata {
			merged[k] = v
		}
		for k, v := range p.Metadata {
			merged[k] = v
		}
		next.Metadata = merged
	}
	if p.PayoutAmount != nil {
		amount := *p.PayoutAmount
		next.PayoutAmount = &amount
	}
	return next
}

func (t Transition) HasEffect(kind EffectKind) bool {
	for _, effect := range t.Effects {
		if effect.Kind == kind {
			return true
		}
	}
	return false
}
