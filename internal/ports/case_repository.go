package ports

import (
	"context"
	"time"

	"caseflow/internal/domain/casework"
)

type CaseFilter struct {
	Statuses   []casework.Status
	AssigneeID string
	VendorID   string
	Limit      int
}

// CaseStatusWrite is a conditional status write: it only lands when the
// stored status still equals Expected.
type CaseStatusWrite struct {
	CaseID   string
	Expected casework.Status
	Next     casework.Status
	Patch    casework.Patch
	At       time.Time
}

type CaseReadRepository interface {
	GetCase(ctx context.Context, caseID string) (casework.Case, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]casework.Case, error)
	ListAllocationLogs(ctx context.Context, caseID string) ([]casework.AllocationLog, error)
	ListQCReviews(ctx context.Context, caseID string) ([]casework.QCReview, error)
	ListCasesWithExpiredAllocation(ctx context.Context, now time.Time, limit int) ([]casework.Case, error)
	ListCasesWithExpiredRework(ctx context.Context, now time.Time, window time.Duration, limit int) ([]casework.Case, error)
}

type CaseRepository interface {
	CaseReadRepository
	CreateCase(ctx context.Context, c casework.Case) (casework.Case, error)
	// CompareAndSetStatus returns false when the precondition did not hold.
	CompareAndSetStatus(ctx context.Context, write CaseStatusWrite) (bool, error)
	OpenAllocationLog(ctx context.Context, caseID string, assignee casework.Assignee, reason string, at time.Time) (casework.AllocationLog, error)
	// CloseAllocationLog closes the open row for the case, returning false when none is open.
	CloseAllocationLog(ctx context.Context, caseID string, decision casework.AllocationDecision, reason string, at time.Time) (bool, error)
	CreateQCReview(ctx context.Context, review casework.QCReview) (casework.QCReview, error)
	SetCaseType(ctx context.Context, caseID string, expected []casework.Status, isPositive bool, at time.Time) (bool, error)
}
