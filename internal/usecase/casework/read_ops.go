package casework

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

var errNoSubmission = errs.New(errs.KindNotFound, "case has no submission")

type CreateCaseInput struct {
	CaseNumber         string
	TATHours           int
	DueAt              *time.Time
	VendorTATStartDate *time.Time
	Metadata           map[string]any
}

type CaseDetail struct {
	Case           casework.Case
	InRework       bool
	AllocationLogs []casework.AllocationLog
	QCReviews      []casework.QCReview
	Allowed        []casework.EventType
}

func (s *Service) CreateCase(ctx context.Context, input CreateCaseInput) (casework.Case, error) {
	if err := s.checkReady(ctx); err != nil {
		return casework.Case{}, err
	}
	number := strings.TrimSpace(input.CaseNumber)
	if number == "" {
		return casework.Case{}, casework.ErrCaseNumberRequired
	}
	if input.TATHours < 0 {
		return casework.Case{}, errs.New(errs.KindInvalidInput, "tat hours must not be negative")
	}

	now := s.clock()
	var created casework.Case
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.repo.CreateCase(txCtx, casework.Case{
			CaseNumber:         number,
			Status:             casework.StatusNew,
			StatusUpdatedAt:    now,
			TATHours:           input.TATHours,
			DueAt:              input.DueAt,
			VendorTATStartDate: input.VendorTATStartDate,
			Metadata:           input.Metadata,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		return err
	})
	if err != nil {
		return casework.Case{}, err
	}

	ctx = withCaseAttrs(ctx, created.ID)
	logging.Info(ctx, "case created", slog.String("case_number", created.CaseNumber))
	s.setCacheBestEffort(ctx, cacheCaseStatusKey(created.ID), string(created.Status))
	return created, nil
}

func (s *Service) GetCase(ctx context.Context, caseID string) (casework.Case, error) {
	if err := s.checkReady(ctx); err != nil {
		return casework.Case{}, err
	}
	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return casework.Case{}, err
	}
	return s.repo.GetCase(ctx, caseID)
}

func (s *Service) ListCases(ctx context.Context, filter ports.CaseFilter) ([]casework.Case, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCases(ctx, filter)
}

func (s *Service) GetCaseDetail(ctx context.Context, caseID string) (CaseDetail, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return CaseDetail{}, err
	}
	logs, err := s.repo.ListAllocationLogs(ctx, c.ID)
	if err != nil {
		return CaseDetail{}, errs.Wrap(err, "list allocation logs")
	}
	reviews, err := s.repo.ListQCReviews(ctx, c.ID)
	if err != nil {
		return CaseDetail{}, errs.Wrap(err, "list qc reviews")
	}
	return CaseDetail{
		Case:           c,
		InRework:       casework.IsReworkPath(c),
		AllocationLogs: logs,
		QCReviews:      reviews,
		Allowed:        casework.Allowed(c.Status),
	}, nil
}

// GetSubmission returns the case submission with de-duplicated attachments.
// Cases that only have an answers-only row get a read-only adapted view.
func (s *Service) GetSubmission(ctx context.Context, caseID string) (submission.Submission, error) {
	if err := s.checkReady(ctx); err != nil {
		return submission.Submission{}, err
	}
	if s.subs == nil {
		return submission.Submission{}, errNoSubmission
	}
	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return submission.Submission{}, err
	}

	sub, found, err := s.subs.GetSubmission(ctx, caseID)
	if err != nil {
		return submission.Submission{}, errs.Wrap(err, "read submission")
	}
	if found {
		files, err := s.subs.ListSubmissionFiles(ctx, sub.ID, "")
		if err != nil {
			return submission.Submission{}, errs.Wrap(err, "list submission files")
		}
		sub.Files = submission.DedupeForDisplay(files)
		return sub, nil
	}

	legacy, found, err := s.subs.GetLegacySubmission(ctx, caseID)
	if err != nil {
		return submission.Submission{}, errs.Wrap(err, "read legacy submission")
	}
	if !found {
		if _, err := s.repo.GetCase(ctx, caseID); err != nil {
			return submission.Submission{}, err
		}
		return submission.Submission{}, errNoSubmission
	}
	return submission.FromLegacy(legacy), nil
}
