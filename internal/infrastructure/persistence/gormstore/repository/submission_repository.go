package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
	"caseflow/internal/ports"
)

var ErrFileKeyRequired = errs.New(errs.KindInvalidInput, "file needs a name or url")

type SubmissionRepository struct {
	base
}

var _ ports.SubmissionRepository = (*SubmissionRepository)(nil)

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{base{db: db}}
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, caseID string) (submission.Submission, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return submission.Submission{}, false, err
	}
	return getSubmissionByCase(db, caseID)
}

// UpsertSubmission writes the single row for the case. submitted_at is written
// through COALESCE so an existing value is never replaced or cleared, and an
// empty patch status leaves the stored status alone.
func (r *SubmissionRepository) UpsertSubmission(ctx context.Context, caseID string, patch submission.Patch, at time.Time) (submission.Submission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return submission.Submission{}, err
	}

	data, err := encodeJSON(map[string]any(patch.Data))
	if err != nil {
		return submission.Submission{}, err
	}
	at = at.UTC()
	submittedAt := utcPtr(patch.SubmittedAt)

	row := model.FormSubmission{
		ID:             uuid.NewString(),
		CaseID:         caseID,
		TemplateID:     patch.TemplateID,
		GigPartnerID:   patch.GigPartnerID,
		SubmissionData: data,
		Status:         strPtr(string(patch.Status)),
		SubmittedAt:    submittedAt,
		CreatedAt:      at,
		UpdatedAt:      at,
	}

	assignments := map[string]any{
		"submission_data": data,
		"updated_at":      at,
		"submitted_at":    gorm.Expr("COALESCE(form_submissions.submitted_at, ?)", submittedAt),
	}
	if patch.Status != submission.StatusNone {
		assignments["status"] = string(patch.Status)
	}
	if patch.TemplateID != "" {
		assignments["template_id"] = patch.TemplateID
	}
	if patch.GigPartnerID != "" {
		assignments["gig_partner_id"] = patch.GigPartnerID
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "case_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error; err != nil {
		return submission.Submission{}, storeErr(err, "upsert submission")
	}

	stored, found, err := getSubmissionByCase(db, caseID)
	if err != nil {
		return submission.Submission{}, err
	}
	if !found {
		return submission.Submission{}, storeErr(errors.New("row missing after upsert"), "reload submission")
	}
	return stored, nil
}

func (r *SubmissionRepository) ListSubmissionFiles(ctx context.Context, submissionID string, fieldID string) ([]submission.File, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("submission_id = ?", submissionID)
	if fieldID = strings.TrimSpace(fieldID); fieldID != "" {
		query = query.Where("field_id = ?", fieldID)
	}

	var rows []model.FormSubmissionFile
	if err := query.Order("uploaded_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query submission files")
	}

	items := make([]submission.File, 0, len(rows))
	for _, row := range rows {
		items = append(items, submission.File{
			ID:         row.ID,
			FieldID:    row.FieldID,
			URL:        row.FileURL,
			Name:       row.FileName,
			MimeType:   row.MimeType,
			UploadedAt: row.UploadedAt.UTC(),
		})
	}
	return items, nil
}

func (r *SubmissionRepository) InsertSubmissionFileIfAbsent(ctx context.Context, input ports.SubmissionFileCreate) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	key := submission.DedupeKey(input.Name, input.URL)
	if key == "" {
		return false, ErrFileKeyRequired
	}

	row := model.FormSubmissionFile{
		ID:           uuid.NewString(),
		SubmissionID: input.SubmissionID,
		FieldID:      input.FieldID,
		DedupeKey:    key,
		FileURL:      input.URL,
		FileName:     strings.TrimSpace(input.Name),
		MimeType:     input.MimeType,
		UploadedAt:   input.UploadedAt.UTC(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "field_id"}, {Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, storeErr(result.Error, "insert submission file")
	}
	return result.RowsAffected > 0, nil
}

func (r *SubmissionRepository) GetLegacySubmission(ctx context.Context, caseID string) (submission.LegacyAnswers, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return submission.LegacyAnswers{}, false, err
	}

	var row model.LegacySubmission
	if err := db.Where("case_id = ?", caseID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return submission.LegacyAnswers{}, false, nil
		}
		return submission.LegacyAnswers{}, false, storeErr(err, "query legacy submission")
	}

	answers, err := decodeMap(row.Answers)
	if err != nil {
		return submission.LegacyAnswers{}, false, errs.Wrapf(err, "legacy submission %s", caseID)
	}
	return submission.LegacyAnswers{
		CaseID:      row.CaseID,
		Answers:     answers,
		SubmittedAt: utcPtr(row.SubmittedAt),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, true, nil
}

func getSubmissionByCase(db *gorm.DB, caseID string) (submission.Submission, bool, error) {
	var row model.FormSubmission
	if err := db.Where("case_id = ?", caseID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return submission.Submission{}, false, nil
		}
		return submission.Submission{}, false, storeErr(err, "query submission")
	}

	data, err := decodeMap(row.SubmissionData)
	if err != nil {
		return submission.Submission{}, false, errs.Wrapf(err, "submission %s data", row.ID)
	}
	return submission.Submission{
		ID:           row.ID,
		CaseID:       row.CaseID,
		TemplateID:   row.TemplateID,
		GigPartnerID: row.GigPartnerID,
		Data:         submission.Data(data),
		Status:       submission.Status(derefStr(row.Status)),
		SubmittedAt:  utcPtr(row.SubmittedAt),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, true, nil
}
