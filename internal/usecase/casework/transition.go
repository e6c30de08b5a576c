package casework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

// transitionResult is what one conditional write produced inside a unit of work.
type transitionResult struct {
	Transition casework.Transition
	Case       casework.Case
	// Submission is set when the transition finalized the case submission.
	Submission *submission.Submission
}

// TransitionCase is the single entry point for status changes. It reads the
// case, decides the transition and writes it conditioned on the observed
// status. A lost race surfaces as casework.ErrStaleState.
func (s *Service) TransitionCase(ctx context.Context, caseID string, ev casework.Event) (casework.Case, error) {
	if err := s.checkReady(ctx); err != nil {
		return casework.Case{}, err
	}
	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return casework.Case{}, err
	}
	if ev.At.IsZero() {
		ev.At = s.clock()
	}
	ctx = withCaseAttrs(ctx, caseID)

	var result transitionResult
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetCase(txCtx, caseID)
		if err != nil {
			return err
		}
		result, err = s.writeTransition(txCtx, current, ev, nil)
		return err
	})
	if err != nil {
		s.logTransitionError(ctx, ev, err)
		return casework.Case{}, err
	}

	if !result.Transition.NoOp {
		s.afterCommit(ctx, result.Case, result.Transition)
	}
	return result.Case, nil
}

// writeTransition must run inside a unit of work. finalData, when non-nil,
// replaces the stored submission data if the transition finalizes it.
func (s *Service) writeTransition(ctx context.Context, current casework.Case, ev casework.Event, finalData submission.Data) (transitionResult, error) {
	tr, err := casework.Decide(current, ev, s.Policy())
	if err != nil {
		return transitionResult{}, err
	}
	if tr.NoOp {
		return transitionResult{Transition: tr, Case: current}, nil
	}

	next := tr.Apply(current)
	patch := tr.Patch
	if patch.Metadata != nil {
		patch.Metadata = next.Metadata
	}

	written, err := s.repo.CompareAndSetStatus(ctx, ports.CaseStatusWrite{
		CaseID:   current.ID,
		Expected: tr.From,
		Next:     tr.To,
		Patch:    patch,
		At:       tr.At,
	})
	if err != nil {
		return transitionResult{}, err
	}
	if !written {
		return transitionResult{}, fmt.Errorf("%w: %s lost the race on %s", casework.ErrStaleState, tr.Event, tr.From)
	}

	result := transitionResult{Transition: tr, Case: next}
	for _, effect := range tr.Effects {
		if err := s.applyEffect(ctx, tr, effect, finalData, &result); err != nil {
			return transitionResult{}, err
		}
	}

	logging.Info(ctx, "case transitioned",
		slog.String("event", string(tr.Event)),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
		slog.String("actor", tr.Actor),
	)
	return result, nil
}

func (s *Service) applyEffect(ctx context.Context, tr casework.Transition, effect casework.Effect, finalData submission.Data, result *transitionResult) error {
	switch effect.Kind {
	case casework.EffectOpenAllocationLog:
		if effect.Assignee == nil {
			return casework.ErrAssigneeRequired
		}
		if _, err := s.repo.OpenAllocationLog(ctx, tr.CaseID, *effect.Assignee, effect.Reason, tr.At); err != nil {
			return errs.Wrap(err, "open allocation log")
		}
	case casework.EffectCloseAllocationLog:
		closed, err := s.repo.CloseAllocationLog(ctx, tr.CaseID, effect.Decision, effect.Reason, tr.At)
		if err != nil {
			return errs.Wrap(err, "close allocation log")
		}
		if !closed {
			logging.Debug(ctx, "no open allocation log to close", slog.String("decision", string(effect.Decision)))
		}
	case casework.EffectRecordQCReview:
		if effect.Review == nil {
			return errors.New("qc review effect has no review")
		}
		if _, err := s.repo.CreateQCReview(ctx, *effect.Review); err != nil {
			return errs.Wrap(err, "record qc review")
		}
	case casework.EffectFinalizeSubmission:
		sub, err := s.finalizeSubmission(ctx, tr, finalData)
		if err != nil {
			return err
		}
		result.Submission = sub
	default:
		return fmt.Errorf("unsupported effect %q", effect.Kind)
	}
	return nil
}

func (s *Service) finalizeSubmission(ctx context.Context, tr casework.Transition, data submission.Data) (*submission.Submission, error) {
	if s.subs == nil {
		return nil, nil
	}
	if data == nil {
		existing, found, err := s.subs.GetSubmission(ctx, tr.CaseID)
		if err != nil {
			return nil, errs.Wrap(err, "read submission")
		}
		if !found {
			return nil, nil
		}
		data = existing.Data
	}

	at := tr.At
	sub, err := s.subs.UpsertSubmission(ctx, tr.CaseID, submission.Patch{
		Data:        data,
		Status:      submission.StatusFinal,
		SubmittedAt: &at,
	}, tr.At)
	if err != nil {
		return nil, errs.Wrap(err, "finalize submission")
	}
	return &sub, nil
}

func (s *Service) logTransitionError(ctx context.Context, ev casework.Event, err error) {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Type)),
		slog.Any("err", errs.Loggable(err)),
	}
	switch errs.KindOf(err) {
	case errs.KindStaleState:
		logging.Info(ctx, "case transition lost to a concurrent change", attrs...)
	case errs.KindInvalidInput, errs.KindInvalidTransition, errs.KindNotFound:
		logging.Warn(ctx, "case transition rejected", attrs...)
	default:
		logging.Error(ctx, "case transition failed", attrs...)
	}
}
