package casework

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
)

// PayoutFunc computes the payout for a case entering payment_complete. Rate
// tables live outside this service.
type PayoutFunc func(ctx context.Context, c casework.Case) (decimal.Decimal, error)

type AllocateInput struct {
	CaseID   string
	Actor    string
	Assignee casework.Assignee
	Reason   string
}

type QcDecideInput struct {
	CaseID     string
	ReviewerID string
	Result     string
	Details    casework.QCDetails
}

type ReworkReassignInput struct {
	CaseID   string
	Actor    string
	Assignee casework.Assignee
}

func (s *Service) Allocate(ctx context.Context, input AllocateInput) (casework.Case, error) {
	assignee, err := normalizeAssignee(input.Assignee)
	if err != nil {
		return casework.Case{}, err
	}
	return s.TransitionCase(ctx, input.CaseID, casework.Event{
		Type:     casework.EventAllocate,
		Actor:    strings.TrimSpace(input.Actor),
		Assignee: &assignee,
		Reason:   strings.TrimSpace(input.Reason),
	})
}

func (s *Service) Accept(ctx context.Context, caseID string, actorID string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:  casework.EventAccept,
		Actor: strings.TrimSpace(actorID),
	})
}

func (s *Service) Reject(ctx context.Context, caseID string, actorID string, reason string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:   casework.EventReject,
		Actor:  strings.TrimSpace(actorID),
		Reason: strings.TrimSpace(reason),
	})
}

// Timeout expires an allocation whose acceptance deadline passed at or before now.
func (s *Service) Timeout(ctx context.Context, caseID string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:  casework.EventTimeout,
		Actor: casework.SystemActor,
	})
}

func (s *Service) QcDecide(ctx context.Context, input QcDecideInput) (casework.Case, error) {
	reviewer := strings.TrimSpace(input.ReviewerID)
	if reviewer == "" {
		return casework.Case{}, errActorRequired
	}
	result, err := casework.ParseQCResult(input.Result)
	if err != nil {
		return casework.Case{}, err
	}
	return s.TransitionCase(ctx, input.CaseID, casework.Event{
		Type:     casework.EventQCDecide,
		Actor:    reviewer,
		QCResult: result,
		QC:       input.Details,
	})
}

func (s *Service) ReworkReassign(ctx context.Context, input ReworkReassignInput) (casework.Case, error) {
	assignee, err := normalizeAssignee(input.Assignee)
	if err != nil {
		return casework.Case{}, err
	}
	return s.TransitionCase(ctx, input.CaseID, casework.Event{
		Type:     casework.EventReworkReassign,
		Actor:    strings.TrimSpace(input.Actor),
		Assignee: &assignee,
	})
}

// ReworkTimeout reverts an unclaimed rework case to qc_passed.
func (s *Service) ReworkTimeout(ctx context.Context, caseID string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:  casework.EventReworkTimeout,
		Actor: casework.SystemActor,
	})
}

func (s *Service) Report(ctx context.Context, caseID string, actor string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:  casework.EventReport,
		Actor: strings.TrimSpace(actor),
	})
}

func (s *Service) EnterPaymentCycle(ctx context.Context, caseID string, actor string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:  casework.EventEnterPaymentCycle,
		Actor: strings.TrimSpace(actor),
	})
}

// CompletePayment closes the payment cycle. When payout is set its amount is
// recorded on the case; it is evaluated against the case as read before the
// write, and the write still fails as stale if the case moved meanwhile.
func (s *Service) CompletePayment(ctx context.Context, caseID string, actor string, payout PayoutFunc) (casework.Case, error) {
	ev := casework.Event{
		Type:  casework.EventCompletePayment,
		Actor: strings.TrimSpace(actor),
	}
	if payout != nil {
		if err := s.checkReady(ctx); err != nil {
			return casework.Case{}, err
		}
		id, err := normalizeCaseID(caseID)
		if err != nil {
			return casework.Case{}, err
		}
		current, err := s.repo.GetCase(ctx, id)
		if err != nil {
			return casework.Case{}, err
		}
		amount, err := payout(ctx, current)
		if err != nil {
			return casework.Case{}, errs.Wrap(err, "compute payout")
		}
		ev.PayoutAmount = &amount
	}
	return s.TransitionCase(ctx, caseID, ev)
}

func (s *Service) Cancel(ctx context.Context, caseID string, actor string, reason string) (casework.Case, error) {
	return s.TransitionCase(ctx, caseID, casework.Event{
		Type:   casework.EventCancel,
		Actor:  strings.TrimSpace(actor),
		Reason: strings.TrimSpace(reason),
	})
}

func normalizeAssignee(a casework.Assignee) (casework.Assignee, error) {
	return casework.NewAssignee(a.ID, string(a.Type), a.VendorID)
}
