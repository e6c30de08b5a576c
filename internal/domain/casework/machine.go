package casework

import (
	"fmt"
	"time"
)

type rule struct {
	sources    []Status
	superseded []Status
	decide     func(c Case, ev Event, p Policy, t *Transition) error
}

var nonTerminal = []Status{
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
}

var rules = map[EventType]rule{
	EventAllocate: {
		sources:    []Status{StatusNew, StatusPendingAllocation, StatusQCPassed},
		superseded: []Status{StatusAllocated, StatusAccepted, StatusInProgress},
		decide:     decideAllocate,
	},
	EventAccept: {
		sources:    []Status{StatusAllocated},
		superseded: []Status{StatusAccepted, StatusInProgress, StatusPendingAllocation},
		decide:     decideAccept,
	},
	EventReject: {
		sources:    []Status{StatusAllocated},
		superseded: []Status{StatusAccepted, StatusInProgress, StatusPendingAllocation},
		decide:     decideReject,
	},
	EventTimeout: {
		sources:    []Status{StatusAllocated},
		superseded: []Status{StatusAccepted, StatusInProgress, StatusPendingAllocation},
		decide:     decideTimeout,
	},
	EventFirstAutosave: {
		sources: []Status{StatusAccepted},
		decide: func(_ Case, _ Event, _ Policy, t *Transition) error {
			t.To = StatusInProgress
			return nil
		},
	},
	EventSubmitFinal: {
		sources:    []Status{StatusAccepted, StatusInProgress},
		superseded: []Status{StatusSubmitted, StatusQCPassed, StatusQCRejected, StatusQCRework},
		decide: func(_ Case, _ Event, _ Policy, t *Transition) error {
			t.To = StatusSubmitted
			t.Effects = append(t.Effects, Effect{Kind: EffectFinalizeSubmission})
			return nil
		},
	},
	EventQCDecide: {
		sources:    []Status{StatusSubmitted},
		superseded: []Status{StatusQCPassed, StatusQCRejected, StatusQCRework, StatusReported},
		decide:     decideQC,
	},
	EventReworkReassign: {
		sources:    []Status{StatusQCRework, StatusQCPassed},
		superseded: []Status{StatusAccepted, StatusInProgress},
		decide:     decideReworkReassign,
	},
	EventReworkTimeout: {
		sources:    []Status{StatusQCRework},
		superseded: []Status{StatusAccepted, StatusInProgress, StatusQCPassed},
		decide:     decideReworkTimeout,
	},
	EventReport: {
		sources:    []Status{StatusQCPassed},
		superseded: []Status{StatusReported, StatusInPaymentCycle, StatusPaymentComplete},
		decide: func(c Case, _ Event, _ Policy, t *Transition) error {
			if IsReworkPath(c) {
				return ErrReworkPending
			}
			t.To = StatusReported
			return nil
		},
	},
	EventEnterPaymentCycle: {
		sources:    []Status{StatusReported},
		superseded: []Status{StatusInPaymentCycle, StatusPaymentComplete},
		decide: func(_ Case, _ Event, _ Policy, t *Transition) error {
			t.To = StatusInPaymentCycle
			return nil
		},
	},
	EventCompletePayment: {
		sources:    []Status{StatusInPaymentCycle},
		superseded: []Status{StatusPaymentComplete},
		decide: func(_ Case, ev Event, _ Policy, t *Transition) error {
			t.To = StatusPaymentComplete
			if ev.PayoutAmount != nil {
				amount := *ev.PayoutAmount
				t.Patch.PayoutAmount = &amount
			}
			return nil
		},
	},
	EventCancel: {
		sources:    nonTerminal,
		superseded: []Status{StatusCancelled},
		decide: func(c Case, ev Event, _ Policy, t *Transition) error {
			t.To = StatusCancelled
			t.Patch.ClearAssignee = true
			t.Patch.ClearAcceptanceDeadline = true
			if c.Status == StatusAllocated {
				t.Effects = append(t.Effects, Effect{Kind: EffectCloseAllocationLog, Decision: DecisionCancelled, Reason: ev.Reason})
			}
			return nil
		},
	},
}

// Decide validates ev against the observed case and returns the transition to
// write. It performs no I/O; the caller writes the result conditioned on c.Status.
func Decide(c Case, ev Event, p Policy) (Transition, error) {
	r, ok := rules[ev.Type]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if ev.At.IsZero() {
		return Transition{}, fmt.Errorf("%w: %s", ErrEventTimeRequired, ev.Type)
	}
	p = p.withDefaults()

	t := Transition{
		CaseID: c.ID,
		From:   c.Status,
		To:     c.Status,
		Event:  ev.Type,
		Actor:  ev.Actor,
		At:     ev.At,
	}

	if ev.Type == EventFirstAutosave && !c.Status.IsTerminal() && c.Status.AtOrAfter(StatusInProgress) {
		t.NoOp = true
		return t, nil
	}

	if !containsStatus(r.sources, c.Status) {
		if containsStatus(r.superseded, c.Status) {
			return Transition{}, fmt.Errorf("%w: %s on %s case", ErrStaleState, ev.Type, c.Status)
		}
		return Transition{}, fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, ev.Type, c.Status)
	}

	if err := r.decide(c, ev, p, &t); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// Allowed lists the events that Decide would accept from status, ignoring guards.
func Allowed(status Status) []EventType {
	order := []EventType{
		EventAllocate, EventAccept, EventReject, EventTimeout, EventFirstAutosave,
		EventSubmitFinal, EventQCDecide, EventReworkReassign, EventReworkTimeout,
		EventReport, EventEnterPaymentCycle, EventCompletePayment, EventCancel,
	}
	out := make([]EventType, 0, 4)
	for _, eventType := range order {
		if containsStatus(rules[eventType].sources, status) {
			out = append(out, eventType)
		}
	}
	return out
}

func decideAllocate(c Case, ev Event, p Policy, t *Transition) error {
	if ev.Assignee == nil {
		return ErrAssigneeRequired
	}
	if err := ev.Assignee.Validate(); err != nil {
		return err
	}
	rework := IsReworkPath(c)
	if c.Status == StatusQCPassed && !rework {
		return fmt.Errorf("%w: allocate not allowed from %s outside rework", ErrInvalidTransition, c.Status)
	}

	assignee := *ev.Assignee
	t.To = StatusAllocated
	t.Patch.Assignee = &assignee
	if window, expires := p.AcceptanceWindow(assignee); expires {
		deadline := ev.At.Add(window)
		t.Patch.AcceptanceDeadline = &deadline
	} else {
		t.Patch.ClearAcceptanceDeadline = true
	}

	reason := ev.Reason
	if rework {
		reason = JoinReasons(ReasonRework, reason)
	}
	t.Effects = append(t.Effects, Effect{Kind: EffectOpenAllocationLog, Assignee: &assignee, Reason: reason})
	return nil
}

func decideAccept(c Case, ev Event, _ Policy, t *Transition) error {
	if err := checkActor(c, ev.Actor); err != nil {
		return err
	}
	t.To = StatusAccepted
	t.Patch.ClearAcceptanceDeadline = true
	t.Effects = append(t.Effects, Effect{Kind: EffectCloseAllocationLog, Decision: DecisionAccepted})
	return nil
}

func decideReject(c Case, ev Event, _ Policy, t *Transition) error {
	if err := checkActor(c, ev.Actor); err != nil {
		return err
	}
	t.To = StatusPendingAllocation
	t.Patch.ClearAssignee = true
	t.Patch.ClearAcceptanceDeadline = true
	t.Effects = append(t.Effects, Effect{Kind: EffectCloseAllocationLog, Decision: DecisionRejected, Reason: ev.Reason})
	return nil
}

func decideTimeout(c Case, ev Event, _ Policy, t *Transition) error {
	if c.Assignee != nil && c.Assignee.IsDirectGig() {
		return ErrNoAcceptanceExpiry
	}
	if c.AcceptanceDeadline == nil {
		return ErrNoAcceptanceExpiry
	}
	if ev.At.Before(*c.AcceptanceDeadline) {
		return fmt.Errorf("%w: deadline %s", ErrDeadlineNotReached, c.AcceptanceDeadline.UTC().Format(time.RFC3339))
	}

	reason := ev.Reason
	if reason == "" {
		reason = "acceptance window expired"
	}
	t.To = StatusPendingAllocation
	t.Patch.ClearAssignee = true
	t.Patch.ClearAcceptanceDeadline = true
	t.Effects = append(t.Effects, Effect{Kind: EffectCloseAllocationLog, Decision: DecisionTimeout, Reason: reason})
	return nil
}

func decideQC(c Case, ev Event, p Policy, t *Transition) error {
	result, err := ParseQCResult(string(ev.QCResult))
	if err != nil {
		return err
	}

	review := &QCReview{
		CaseID:             c.ID,
		ReviewerID:         ev.Actor,
		ReviewedAt:         ev.At,
		Result:             result,
		Comments:           ev.QC.Comments,
		IssuesFound:        append([]string(nil), ev.QC.IssuesFound...),
		ReworkInstructions: ev.QC.ReworkInstructions,
	}

	switch result {
	case QCPass:
		t.To = StatusQCPassed
		t.Patch.ClearQCResponse = true
	case QCReject:
		t.To = StatusQCRejected
		t.Patch.ClearQCResponse = true
	case QCRework:
		t.To = StatusQCRework
		flag := QCResponseRework
		t.Patch.QCResponse = &flag
		t.Patch.Metadata = map[string]any{MetaQCReworkTime: formatMetaTime(ev.At)}
		deadline := ev.At.Add(p.ReworkWindow)
		review.ReworkDeadline = &deadline
	}

	t.Effects = append(t.Effects, Effect{Kind: EffectRecordQCReview, Review: review})
	return nil
}

func decideReworkReassign(c Case, ev Event, p Policy, t *Transition) error {
	if ev.Assignee == nil {
		return ErrAssigneeRequired
	}
	if err := ev.Assignee.Validate(); err != nil {
		return err
	}

	meta := map[string]any{}
	anchor := ReworkAnchor(c)
	switch c.Status {
	case StatusQCRework:
		if !ev.At.Before(ReworkDeadline(c, p)) {
			return fmt.Errorf("%w: expired at %s", ErrReworkWindowExpired, ReworkDeadline(c, p).UTC().Format(time.RFC3339))
		}
	case StatusQCPassed:
		if !IsReworkPath(c) {
			return fmt.Errorf("%w: rework_reassign not allowed from %s outside rework", ErrInvalidTransition, c.Status)
		}
		anchor = ev.At
		meta[MetaQCReworkTime] = formatMetaTime(anchor)
	}
	meta[MetaReworkAcceptanceDeadline] = formatMetaTime(anchor.Add(p.ReworkWindow))

	assignee := *ev.Assignee
	flag := QCResponseRework
	t.To = StatusAccepted
	t.Patch.Assignee = &assignee
	t.Patch.ClearAcceptanceDeadline = true
	t.Patch.QCResponse = &flag
	t.Patch.Metadata = meta
	t.Effects = append(t.Effects,
		Effect{Kind: EffectOpenAllocationLog, Assignee: &assignee, Reason: ReasonRework},
		Effect{Kind: EffectCloseAllocationLog, Decision: DecisionAccepted},
	)
	return nil
}

func decideReworkTimeout(c Case, ev Event, p Policy, t *Transition) error {
	deadline := ReworkDeadline(c, p)
	if ev.At.Before(deadline) {
		return fmt.Errorf("%w: expires at %s", ErrReworkWindowOpen, deadline.UTC().Format(time.RFC3339))
	}

	flag := QCResponseRework
	t.To = StatusQCPassed
	t.Patch.ClearAssignee = true
	t.Patch.ClearAcceptanceDeadline = true
	t.Patch.QCResponse = &flag
	return nil
}

func checkActor(c Case, actor string) error {
	if actor == "" || c.Assignee == nil {
		return nil
	}
	if !c.Assignee.Represents(actor) {
		return fmt.Errorf("%w: %s", ErrNotAssignee, actor)
	}
	return nil
}

func containsStatus(list []Status, status Status) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}
