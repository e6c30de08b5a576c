package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
	"caseflow/internal/ports"
)

var ErrCaseNumberTaken = errs.New(errs.KindInvalidInput, "case number already exists")

type CaseRepository struct {
	base
}

var _ ports.CaseRepository = (*CaseRepository)(nil)

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{base{db: db}}
}

func (r *CaseRepository) GetCase(ctx context.Context, caseID string) (casework.Case, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return casework.Case{}, err
	}

	var row model.Case
	if err := db.Where("id = ?", caseID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return casework.Case{}, fmt.Errorf("%w: %s", casework.ErrCaseNotFound, caseID)
		}
		return casework.Case{}, storeErr(err, "query case")
	}
	return mapCase(row)
}

func (r *CaseRepository) ListCases(ctx context.Context, filter ports.CaseFilter) ([]casework.Case, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Case{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}
	if assignee := strings.TrimSpace(filter.AssigneeID); assignee != "" {
		query = query.Where("current_assignee_id = ?", assignee)
	}
	if vendor := strings.TrimSpace(filter.VendorID); vendor != "" {
		query = query.Where("current_vendor_id = ?", vendor)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Case
	if err := query.Order("case_number asc").Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query cases")
	}
	return mapCases(rows)
}

func (r *CaseRepository) CreateCase(ctx context.Context, c casework.Case) (casework.Case, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return casework.Case{}, err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = casework.StatusNew
	}
	row, err := toCaseModel(c)
	if err != nil {
		return casework.Case{}, err
	}
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return casework.Case{}, fmt.Errorf("%w: %s", ErrCaseNumberTaken, c.CaseNumber)
		}
		return casework.Case{}, storeErr(err, "insert case")
	}
	return mapCase(row)
}

func (r *CaseRepository) CompareAndSetStatus(ctx context.Context, write ports.CaseStatusWrite) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	at := write.At.UTC()
	updates := map[string]any{
		"status":            string(write.Next),
		"status_updated_at": at,
		"updated_at":        at,
	}

	p := write.Patch
	switch {
	case p.Assignee != nil:
		updates["current_assignee_id"] = p.Assignee.ID
		updates["current_assignee_type"] = string(p.Assignee.Type)
		updates["current_vendor_id"] = strPtr(p.Assignee.VendorID)
	case p.ClearAssignee:
		updates["current_assignee_id"] = nil
		updates["current_assignee_type"] = nil
		updates["current_vendor_id"] = nil
	}
	switch {
	case p.AcceptanceDeadline != nil:
		updates["acceptance_deadline"] = p.AcceptanceDeadline.UTC()
	case p.ClearAcceptanceDeadline:
		updates["acceptance_deadline"] = nil
	}
	switch {
	case p.QCResponse != nil:
		updates["qc_response"] = *p.QCResponse
	case p.ClearQCResponse:
		updates["qc_response"] = nil
	}
	if p.Metadata != nil {
		encoded, err := encodeJSON(p.Metadata)
		if err != nil {
			return false, err
		}
		updates["metadata"] = encoded
	}
	if p.PayoutAmount != nil {
		updates["payout_amount"] = decimal.NewNullDecimal(*p.PayoutAmount)
	}

	result := db.Model(&model.Case{}).
		Where("id = ? AND status = ?", write.CaseID, string(write.Expected)).
		Updates(updates)
	if result.Error != nil {
		return false, storeErr(result.Error, "compare and set case status")
	}
	return result.RowsAffected > 0, nil
}

func (r *CaseRepository) SetCaseType(ctx context.Context, caseID string, expected []casework.Status, isPositive bool, at time.Time) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	statuses := make([]string, 0, len(expected))
	for _, s := range expected {
		statuses = append(statuses, string(s))
	}
	result := db.Model(&model.Case{}).
		Where("id = ? AND status IN ?", caseID, statuses).
		Updates(map[string]any{"is_positive": isPositive, "updated_at": at.UTC()})
	if result.Error != nil {
		return false, storeErr(result.Error, "update case type")
	}
	return result.RowsAffected > 0, nil
}

func (r *CaseRepository) ListCasesWithExpiredAllocation(ctx context.Context, now time.Time, limit int) ([]casework.Case, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Case{}).
		Where("status = ?", string(casework.StatusAllocated)).
		Where("acceptance_deadline IS NOT NULL AND acceptance_deadline <= ?", now.UTC()).
		Where("(current_assignee_type IS NULL OR current_assignee_type <> ? OR (current_vendor_id IS NOT NULL AND current_vendor_id <> ''))", string(casework.AssigneeGig)).
		Order("acceptance_deadline asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Case
	if err := query.Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query expired allocations")
	}
	cases, err := mapCases(rows)
	if err != nil {
		return nil, err
	}

	out := cases[:0]
	for _, c := range cases {
		if casework.AcceptanceExpired(c, now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListCasesWithExpiredRework evaluates the window in Go because the anchor
// lives in the metadata JSON with a status_updated_at fallback.
func (r *CaseRepository) ListCasesWithExpiredRework(ctx context.Context, now time.Time, window time.Duration, limit int) ([]casework.Case, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Case
	if err := db.Model(&model.Case{}).
		Where("status = ?", string(casework.StatusQCRework)).
		Order("status_updated_at asc").
		Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query rework cases")
	}
	cases, err := mapCases(rows)
	if err != nil {
		return nil, err
	}

	policy := casework.Policy{ReworkWindow: window}
	out := make([]casework.Case, 0, len(cases))
	for _, c := range cases {
		if !casework.ReworkExpired(c, policy, now) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *CaseRepository) OpenAllocationLog(ctx context.Context, caseID string, assignee casework.Assignee, reason string, at time.Time) (casework.AllocationLog, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return casework.AllocationLog{}, err
	}

	open := caseID
	row := model.AllocationLog{
		ID:                 uuid.NewString(),
		CaseID:             caseID,
		OpenCaseID:         &open,
		AssigneeID:         assignee.ID,
		AssigneeType:       string(assignee.Type),
		VendorID:           strPtr(assignee.VendorID),
		AllocatedAt:        at.UTC(),
		Decision:           string(casework.DecisionAllocated),
		ReallocationReason: reason,
	}
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return casework.AllocationLog{}, fmt.Errorf("%w: case %s already has an open allocation", casework.ErrStaleState, caseID)
		}
		return casework.AllocationLog{}, storeErr(err, "insert allocation log")
	}
	return mapAllocationLog(row), nil
}

// CloseAllocationLog decides the open row for caseID. The reason it was
// opened with is kept and the closing reason appended to it.
func (r *CaseRepository) CloseAllocationLog(ctx context.Context, caseID string, decision casework.AllocationDecision, reason string, at time.Time) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var open model.AllocationLog
	err = db.Where("case_id = ? AND open_case_id IS NOT NULL", caseID).Take(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "read open allocation log")
	}

	at = at.UTC()
	updates := map[string]any{
		"decision":            string(decision),
		"decision_at":         at,
		"open_case_id":        nil,
		"reallocation_reason": casework.JoinReasons(open.ReallocationReason, reason),
	}
	if decision == casework.DecisionAccepted {
		updates["accepted_at"] = at
	}

	result := db.Model(&model.AllocationLog{}).
		Where("id = ? AND open_case_id IS NOT NULL", open.ID).
		Updates(updates)
	if result.Error != nil {
		return false, storeErr(result.Error, "close allocation log")
	}
	return result.RowsAffected > 0, nil
}

func (r *CaseRepository) ListAllocationLogs(ctx context.Context, caseID string) ([]casework.AllocationLog, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AllocationLog
	if err := db.Where("case_id = ?", caseID).Order("allocated_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query allocation logs")
	}

	items := make([]casework.AllocationLog, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAllocationLog(row))
	}
	return items, nil
}

func (r *CaseRepository) CreateQCReview(ctx context.Context, review casework.QCReview) (casework.QCReview, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return casework.QCReview{}, err
	}

	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	issues, err := encodeJSON(review.IssuesFound)
	if err != nil {
		return casework.QCReview{}, err
	}
	row := model.QCReview{
		ID:                 review.ID,
		CaseID:             review.CaseID,
		ReviewerID:         review.ReviewerID,
		ReviewedAt:         review.ReviewedAt.UTC(),
		Result:             string(review.Result),
		Comments:           review.Comments,
		IssuesFound:        issues,
		ReworkInstructions: review.ReworkInstructions,
		ReworkDeadline:     utcPtr(review.ReworkDeadline),
	}
	if err := db.Create(&row).Error; err != nil {
		return casework.QCReview{}, storeErr(err, "insert qc review")
	}
	return mapQCReview(row)
}

func (r *CaseRepository) ListQCReviews(ctx context.Context, caseID string) ([]casework.QCReview, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.QCReview
	if err := db.Where("case_id = ?", caseID).Order("reviewed_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, storeErr(err, "query qc reviews")
	}

	items := make([]casework.QCReview, 0, len(rows))
	for _, row := range rows {
		review, err := mapQCReview(row)
		if err != nil {
			return nil, err
		}
		items = append(items, review)
	}
	return items, nil
}

func toCaseModel(c casework.Case) (model.Case, error) {
	meta, err := encodeJSON(c.Metadata)
	if err != nil {
		return model.Case{}, err
	}
	row := model.Case{
		ID:                 c.ID,
		CaseNumber:         c.CaseNumber,
		Status:             string(c.Status),
		AcceptanceDeadline: utcPtr(c.AcceptanceDeadline),
		StatusUpdatedAt:    c.StatusUpdatedAt.UTC(),
		TATHours:           c.TATHours,
		DueAt:              utcPtr(c.DueAt),
		VendorTATStartDate: utcPtr(c.VendorTATStartDate),
		QCResponse:         c.QCResponse,
		IsPositive:         c.IsPositive,
		Metadata:           meta,
		CreatedAt:          c.CreatedAt.UTC(),
		UpdatedAt:          c.UpdatedAt.UTC(),
	}
	if c.Assignee != nil {
		row.AssigneeID = strPtr(c.Assignee.ID)
		row.AssigneeType = strPtr(string(c.Assignee.Type))
		row.VendorID = strPtr(c.Assignee.VendorID)
	}
	if c.PayoutAmount != nil {
		row.PayoutAmount = decimal.NewNullDecimal(*c.PayoutAmount)
	}
	return row, nil
}

func mapCase(row model.Case) (casework.Case, error) {
	meta, err := decodeMap(row.Metadata)
	if err != nil {
		return casework.Case{}, errs.Wrapf(err, "case %s metadata", row.ID)
	}
	c := casework.Case{
		ID:                 row.ID,
		CaseNumber:         row.CaseNumber,
		Status:             casework.Status(row.Status),
		AcceptanceDeadline: utcPtr(row.AcceptanceDeadline),
		StatusUpdatedAt:    row.StatusUpdatedAt.UTC(),
		TATHours:           row.TATHours,
		DueAt:              utcPtr(row.DueAt),
		VendorTATStartDate: utcPtr(row.VendorTATStartDate),
		QCResponse:         row.QCResponse,
		IsPositive:         row.IsPositive,
		Metadata:           meta,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
	if id := derefStr(row.AssigneeID); id != "" {
		c.Assignee = &casework.Assignee{
			ID:       id,
			Type:     casework.AssigneeType(derefStr(row.AssigneeType)),
			VendorID: derefStr(row.VendorID),
		}
	}
	if row.PayoutAmount.Valid {
		amount := row.PayoutAmount.Decimal
		c.PayoutAmount = &amount
	}
	return c, nil
}

func mapCases(rows []model.Case) ([]casework.Case, error) {
	items := make([]casework.Case, 0, len(rows))
	for _, row := range rows {
		c, err := mapCase(row)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

func mapAllocationLog(row model.AllocationLog) casework.AllocationLog {
	return casework.AllocationLog{
		ID:     row.ID,
		CaseID: row.CaseID,
		Assignee: casework.Assignee{
			ID:       row.AssigneeID,
			Type:     casework.AssigneeType(row.AssigneeType),
			VendorID: derefStr(row.VendorID),
		},
		AllocatedAt:        row.AllocatedAt.UTC(),
		AcceptedAt:         utcPtr(row.AcceptedAt),
		Decision:           casework.AllocationDecision(row.Decision),
		DecisionAt:         utcPtr(row.DecisionAt),
		ReallocationReason: row.ReallocationReason,
	}
}

func mapQCReview(row model.QCReview) (casework.QCReview, error) {
	var issues []string
	if len(row.IssuesFound) > 0 && string(row.IssuesFound) != "null" {
		if err := json.Unmarshal(row.IssuesFound, &issues); err != nil {
			return casework.QCReview{}, errs.Wrapf(err, "qc review %s issues", row.ID)
		}
	}
	return casework.QCReview{
		ID:                 row.ID,
		CaseID:             row.CaseID,
		ReviewerID:         row.ReviewerID,
		ReviewedAt:         row.ReviewedAt.UTC(),
		Result:             casework.QCResult(row.Result),
		Comments:           row.Comments,
		IssuesFound:        issues,
		ReworkInstructions: row.ReworkInstructions,
		ReworkDeadline:     utcPtr(row.ReworkDeadline),
	}, nil
}
