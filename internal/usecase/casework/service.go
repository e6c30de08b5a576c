package casework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

var (
	errCaseIDRequired = errs.New(errs.KindInvalidInput, "case id is required")
	errActorRequired  = errs.New(errs.KindInvalidInput, "actor is required")
)

// Service funnels every case mutation through TransitionCase so that each
// status write is conditioned on the status it was decided against.
type Service struct {
	repo      ports.CaseRepository
	subs      ports.SubmissionRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	blob      ports.BlobStore
	publisher ports.Publisher
	policy    ports.PolicySource
	objectKey func(caseID string, fieldID string, fileName string) string
	now       func() time.Time
}

type Option func(*Service)

func WithBlobStore(store ports.BlobStore) Option {
	return func(s *Service) { s.blob = store }
}

func WithPublisher(publisher ports.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithPolicy(policy ports.PolicySource) Option {
	return func(s *Service) { s.policy = policy }
}

// WithObjectKey overrides how blob object names are built for uploads.
func WithObjectKey(fn func(caseID string, fieldID string, fileName string) string) Option {
	return func(s *Service) { s.objectKey = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires case usecases with repositories and optional cache.
func NewService(repo ports.CaseRepository, subs ports.SubmissionRepository, uow ports.UnitOfWork, cache ports.Cache, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		subs:  subs,
		uow:   uow,
		cache: cache,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Policy() casework.Policy {
	if s.policy == nil {
		return casework.DefaultPolicy()
	}
	return s.policy.Policy()
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("case repository is required")
	}
	if s.uow == nil {
		return errors.New("case unit of work is required")
	}
	return nil
}

func (s *Service) blobKey(caseID string, fieldID string, fileName string) string {
	if s.objectKey != nil {
		return s.objectKey(caseID, fieldID, fileName)
	}
	return fmt.Sprintf("cases/%s/%s/%s-%s", caseID, fieldID, uuid.NewString(), fileName)
}

// afterCommit refreshes the cache and notifies subscribers. Both are best effort.
func (s *Service) afterCommit(ctx context.Context, c casework.Case, tr casework.Transition) {
	s.setCacheBestEffort(ctx, cacheCaseStatusKey(c.ID), string(c.Status))
	if c.Assignee != nil {
		s.setCacheBestEffort(ctx, cacheCaseAssigneeKey(c.ID), c.Assignee.ID)
	} else {
		s.deleteCacheBestEffort(ctx, cacheCaseAssigneeKey(c.ID))
	}

	if s.publisher == nil {
		return
	}
	change := ports.CaseChanged{
		CaseID:     c.ID,
		CaseNumber: c.CaseNumber,
		Event:      tr.Event,
		From:       tr.From,
		To:         tr.To,
		Actor:      tr.Actor,
		InRework:   casework.IsReworkPath(c),
		At:         tr.At,
	}
	if c.Assignee != nil {
		change.AssigneeID = c.Assignee.ID
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		logging.Warn(ctx, "publish case change failed",
			slog.String("case_id", c.ID),
			slog.String("event", string(tr.Event)),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) deleteCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, key)
}

func cacheCaseStatusKey(caseID string) string {
	return "case:" + caseID + ":status"
}

func cacheCaseAssigneeKey(caseID string) string {
	return "case:" + caseID + ":assignee"
}

func normalizeCaseID(raw string) (string, error) {
	caseID := strings.TrimSpace(raw)
	if caseID == "" {
		return "", errCaseIDRequired
	}
	return caseID, nil
}

func withCaseAttrs(ctx context.Context, caseID string) context.Context {
	return logging.WithCase(ctx, "usecase.casework", caseID)
}
