package ports

import (
	"context"
	"time"

	"caseflow/internal/domain/submission"
)

type SubmissionFileCreate struct {
	SubmissionID string
	FieldID      string
	URL          string
	Name         string
	MimeType     string
	UploadedAt   time.Time
}

type SubmissionRepository interface {
	// GetSubmission returns found=false when the case has no submission row.
	GetSubmission(ctx context.Context, caseID string) (submission.Submission, bool, error)
	UpsertSubmission(ctx context.Context, caseID string, patch submission.Patch, at time.Time) (submission.Submission, error)
	// ListSubmissionFiles lists every field when fieldID is empty.
	ListSubmissionFiles(ctx context.Context, submissionID string, fieldID string) ([]submission.File, error)
	// InsertSubmissionFileIfAbsent returns inserted=false for a duplicate (submission, field, name).
	InsertSubmissionFileIfAbsent(ctx context.Context, input SubmissionFileCreate) (bool, error)
	GetLegacySubmission(ctx context.Context, caseID string) (submission.LegacyAnswers, bool, error)
}
