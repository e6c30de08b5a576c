package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	caseusecase "caseflow/internal/usecase/casework"
)

type assigneeView struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	VendorID string `json:"vendor_id,omitempty"`
}

func newAssigneeView(a *casework.Assignee) *assigneeView {
	if a == nil {
		return nil
	}
	return &assigneeView{ID: a.ID, Type: string(a.Type), VendorID: a.VendorID}
}

type caseView struct {
	ID                 string           `json:"id"`
	CaseNumber         string           `json:"case_number"`
	Status             string           `json:"status"`
	Assignee           *assigneeView    `json:"assignee,omitempty"`
	AcceptanceDeadline *time.Time       `json:"acceptance_deadline,omitempty"`
	StatusUpdatedAt    time.Time        `json:"status_updated_at"`
	TATHours           int              `json:"tat_hours"`
	DueAt              *time.Time       `json:"due_at,omitempty"`
	VendorTATStartDate *time.Time       `json:"vendor_tat_start_date,omitempty"`
	QCResponse         *string          `json:"qc_response,omitempty"`
	IsPositive         *bool            `json:"is_positive,omitempty"`
	InRework           bool             `json:"in_rework"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
	PayoutAmount       *decimal.Decimal `json:"payout_amount,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func newCaseView(c casework.Case) caseView {
	return caseView{
		ID:                 c.ID,
		CaseNumber:         c.CaseNumber,
		Status:             string(c.Status),
		Assignee:           newAssigneeView(c.Assignee),
		AcceptanceDeadline: c.AcceptanceDeadline,
		StatusUpdatedAt:    c.StatusUpdatedAt,
		TATHours:           c.TATHours,
		DueAt:              c.DueAt,
		VendorTATStartDate: c.VendorTATStartDate,
		QCResponse:         c.QCResponse,
		IsPositive:         c.IsPositive,
		InRework:           casework.IsReworkPath(c),
		Metadata:           c.Metadata,
		PayoutAmount:       c.PayoutAmount,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type allocationLogView struct {
	ID                 string       `json:"id"`
	Assignee           assigneeView `json:"assignee"`
	AllocatedAt        time.Time    `json:"allocated_at"`
	AcceptedAt         *time.Time   `json:"accepted_at,omitempty"`
	Decision           string       `json:"decision"`
	DecisionAt         *time.Time   `json:"decision_at,omitempty"`
	ReallocationReason string       `json:"reallocation_reason,omitempty"`
}

type qcReviewView struct {
	ID                 string     `json:"id"`
	ReviewerID         string     `json:"reviewer_id"`
	ReviewedAt         time.Time  `json:"reviewed_at"`
	Result             string     `json:"result"`
	Comments           string     `json:"comments,omitempty"`
	IssuesFound        []string   `json:"issues_found,omitempty"`
	ReworkInstructions string     `json:"rework_instructions,omitempty"`
	ReworkDeadline     *time.Time `json:"rework_deadline,omitempty"`
}

type caseDetailView struct {
	caseView
	AllocationLogs []allocationLogView `json:"allocation_logs"`
	QCReviews      []qcReviewView      `json:"qc_reviews"`
	AllowedEvents  []string            `json:"allowed_events"`
}

func newCaseDetailView(d caseusecase.CaseDetail) caseDetailView {
	out := caseDetailView{
		caseView:       newCaseView(d.Case),
		AllocationLogs: make([]allocationLogView, 0, len(d.AllocationLogs)),
		QCReviews:      make([]qcReviewView, 0, len(d.QCReviews)),
		AllowedEvents:  make([]string, 0, len(d.Allowed)),
	}
	out.InRework = d.InRework
	for _, l := range d.AllocationLogs {
		out.AllocationLogs = append(out.AllocationLogs, allocationLogView{
			ID:                 l.ID,
			Assignee:           *newAssigneeView(&l.Assignee),
			AllocatedAt:        l.AllocatedAt,
			AcceptedAt:         l.AcceptedAt,
			Decision:           string(l.Decision),
			DecisionAt:         l.DecisionAt,
			ReallocationReason: l.ReallocationReason,
		})
	}
	for _, r := range d.QCReviews {
		out.QCReviews = append(out.QCReviews, qcReviewView{
			ID:                 r.ID,
			ReviewerID:         r.ReviewerID,
			ReviewedAt:         r.ReviewedAt,
			Result:             string(r.Result),
			Comments:           r.Comments,
			IssuesFound:        r.IssuesFound,
			ReworkInstructions: r.ReworkInstructions,
			ReworkDeadline:     r.ReworkDeadline,
		})
	}
	for _, ev := range d.Allowed {
		out.AllowedEvents = append(out.AllowedEvents, string(ev))
	}
	return out
}

type fileView struct {
	ID         string    `json:"id,omitempty"`
	FieldID    string    `json:"field_id"`
	URL        string    `json:"url"`
	Name       string    `json:"name,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type submissionView struct {
	ID           string         `json:"id,omitempty"`
	CaseID       string         `json:"case_id"`
	TemplateID   string         `json:"template_id,omitempty"`
	GigPartnerID string         `json:"gig_partner_id,omitempty"`
	Status       string         `json:"status,omitempty"`
	Data         map[string]any `json:"data"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Files        []fileView     `json:"files"`
	Legacy       bool           `json:"legacy,omitempty"`
}

func newSubmissionView(s submission.Submission) submissionView {
	out := submissionView{
		ID:           s.ID,
		CaseID:       s.CaseID,
		TemplateID:   s.TemplateID,
		GigPartnerID: s.GigPartnerID,
		Status:       string(s.Status),
		Data:         s.Data,
		SubmittedAt:  s.SubmittedAt,
		UpdatedAt:    s.UpdatedAt,
		Files:        make([]fileView, 0, len(s.Files)),
		Legacy:       s.Legacy,
	}
	for _, f := range s.Files {
		out.Files = append(out.Files, fileView{
			ID:         f.ID,
			FieldID:    f.FieldID,
			URL:        f.URL,
			Name:       f.Name,
			MimeType:   f.MimeType,
			UploadedAt: f.UploadedAt,
		})
	}
	return out
}

type failedFileView struct {
	FieldID string `json:"field_id"`
	Name    string `json:"name"`
}

type submissionResultView struct {
	Case         caseView         `json:"case"`
	Submission   submissionView   `json:"submission"`
	Transitioned bool             `json:"transitioned"`
	FilesAdded   int              `json:"files_added"`
	FailedFiles  []failedFileView `json:"failed_files,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

func newSubmissionResultView(res caseusecase.SubmissionResult) submissionResultView {
	out := submissionResultView{
		Case:         newCaseView(res.Case),
		Submission:   newSubmissionView(res.Submission),
		Transitioned: res.Transitioned,
		FilesAdded:   res.FilesAdded,
		Warnings:     res.Warnings,
	}
	for _, f := range res.FailedFiles {
		out.FailedFiles = append(out.FailedFiles, failedFileView{FieldID: f.FieldID, Name: f.Name})
	}
	return out
}
