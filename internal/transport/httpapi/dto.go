package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	caseusecase "caseflow/internal/usecase/casework"
)

const maxBodyBytes = 32 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs struct validation. An empty body
// decodes to the zero value.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Mark(fmt.Errorf("decode request body: %w", err), errs.KindInvalidInput)
	}
	return h.validate.Struct(dst)
}

type createCaseRequest struct {
	CaseNumber         string         `json:"case_number" validate:"required"`
	TATHours           int            `json:"tat_hours" validate:"gt=0"`
	DueAt              *time.Time     `json:"due_at"`
	VendorTATStartDate *time.Time     `json:"vendor_tat_start_date"`
	Metadata           map[string]any `json:"metadata"`
}

func (r createCaseRequest) input() caseusecase.CreateCaseInput {
	return caseusecase.CreateCaseInput{
		CaseNumber:         r.CaseNumber,
		TATHours:           r.TATHours,
		DueAt:              r.DueAt,
		VendorTATStartDate: r.VendorTATStartDate,
		Metadata:           r.Metadata,
	}
}

type assigneeRequest struct {
	ID       string `json:"id" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=gig vendor"`
	VendorID string `json:"vendor_id"`
}

func (r assigneeRequest) assignee() casework.Assignee {
	return casework.Assignee{
		ID:       r.ID,
		Type:     casework.AssigneeType(r.Type),
		VendorID: r.VendorID,
	}
}

type allocateRequest struct {
	Actor    string          `json:"actor"`
	Assignee assigneeRequest `json:"assignee" validate:"required"`
	Reason   string          `json:"reason"`
}

type actorRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type qcRequest struct {
	ReviewerID         string   `json:"reviewer_id" validate:"required"`
	Result             string   `json:"result" validate:"required,oneof=pass reject rework"`
	Comments           string   `json:"comments"`
	IssuesFound        []string `json:"issues_found"`
	ReworkInstructions string   `json:"rework_instructions"`
}

type reworkReassignRequest struct {
	Actor    string          `json:"actor"`
	Assignee assigneeRequest `json:"assignee" validate:"required"`
}

type completePaymentRequest struct {
	Actor        string           `json:"actor"`
	PayoutAmount *decimal.Decimal `json:"payout_amount"`
}

// payout returns nil when the request carries no amount.
func (r completePaymentRequest) payout() caseusecase.PayoutFunc {
	if r.PayoutAmount == nil {
		return nil
	}
	amount := *r.PayoutAmount
	return func(_ context.Context, _ casework.Case) (decimal.Decimal, error) {
		return amount, nil
	}
}

type caseTypeRequest struct {
	IsPositive *bool `json:"is_positive" validate:"required"`
}

type fileRequest struct {
	URL      string `json:"url" validate:"required_without=Content"`
	Name     string `json:"name" validate:"required_with=Content"`
	MimeType string `json:"mime_type"`
	// Content is the base64 encoded file body for files not yet uploaded.
	Content string `json:"content" validate:"omitempty,base64"`
}

type fieldRequest struct {
	Value any           `json:"value"`
	Files []fileRequest `json:"files" validate:"omitempty,dive"`
}

type submissionRequest struct {
	Actor        string                  `json:"actor"`
	TemplateID   string                  `json:"template_id"`
	GigPartnerID string                  `json:"gig_partner_id"`
	Fields       map[string]fieldRequest `json:"fields" validate:"omitempty,dive"`
	Metadata     map[string]any          `json:"metadata"`
}

func (r submissionRequest) input(caseID string) (caseusecase.SaveSubmissionInput, error) {
	form := submission.Form{
		TemplateID:   r.TemplateID,
		GigPartnerID: r.GigPartnerID,
		Fields:       make(map[string]submission.FieldInput, len(r.Fields)),
		Metadata:     r.Metadata,
	}
	for key, field := range r.Fields {
		in := submission.FieldInput{Value: field.Value}
		for _, f := range field.Files {
			file := submission.FileInput{URL: f.URL, Name: f.Name, MimeType: f.MimeType}
			if f.URL == "" && f.Content != "" {
				raw, err := base64.StdEncoding.DecodeString(f.Content)
				if err != nil {
					return caseusecase.SaveSubmissionInput{}, errs.Mark(fmt.Errorf("field %s file %q: %w", key, f.Name, err), errs.KindInvalidInput)
				}
				file.Content = raw
			}
			in.Files = append(in.Files, file)
		}
		form.Fields[key] = in
	}
	return caseusecase.SaveSubmissionInput{CaseID: caseID, Actor: r.Actor, Form: form}, nil
}
