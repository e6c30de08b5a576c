package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

func caseID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func (h *Handler) createCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.CreateCase(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCaseView(c))
}

// listCases accepts status (repeatable or comma separated), assignee_id,
// vendor_id and limit query parameters.
func (h *Handler) listCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.CaseFilter{
		AssigneeID: strings.TrimSpace(q.Get("assignee_id")),
		VendorID:   strings.TrimSpace(q.Get("vendor_id")),
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := casework.ParseStatus(part)
			if err != nil {
				writeError(w, r, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, errs.New(errs.KindInvalidInput, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	cases, err := h.svc.ListCases(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]caseView, 0, len(cases))
	for _, c := range cases {
		out = append(out, newCaseView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": out})
}

func (h *Handler) getCase(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetCaseDetail(r.Context(), caseID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseDetailView(detail))
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.Allocate(r.Context(), caseusecase.AllocateInput{
		CaseID:   caseID(r),
		Actor:    req.Actor,
		Assignee: req.Assignee.assignee(),
		Reason:   req.Reason,
	}))
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.Accept(r.Context(), caseID(r), req.Actor))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.Reject(r.Context(), caseID(r), req.Actor, req.Reason))
}

func (h *Handler) qcDecide(w http.ResponseWriter, r *http.Request) {
	var req qcRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.QcDecide(r.Context(), caseusecase.QcDecideInput{
		CaseID:     caseID(r),
		ReviewerID: req.ReviewerID,
		Result:     req.Result,
		Details: casework.QCDetails{
			Comments:           req.Comments,
			IssuesFound:        req.IssuesFound,
			ReworkInstructions: req.ReworkInstructions,
		},
	}))
}

func (h *Handler) reworkReassign(w http.ResponseWriter, r *http.Request) {
	var req reworkReassignRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.ReworkReassign(r.Context(), caseusecase.ReworkReassignInput{
		CaseID:   caseID(r),
		Actor:    req.Actor,
		Assignee: req.Assignee.assignee(),
	}))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.Report(r.Context(), caseID(r), req.Actor))
}

func (h *Handler) enterPayment(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.EnterPaymentCycle(r.Context(), caseID(r), req.Actor))
}

func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	var req completePaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.CompletePayment(r.Context(), caseID(r), req.Actor, req.payout()))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.Cancel(r.Context(), caseID(r), req.Actor, req.Reason))
}

func (h *Handler) chooseCaseType(w http.ResponseWriter, r *http.Request) {
	var req caseTypeRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondCase(w, r)(h.svc.ChooseCaseType(r.Context(), caseID(r), *req.IsPositive))
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetSubmission(r.Context(), caseID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmissionView(sub))
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.svc.SaveDraft)
}

func (h *Handler) submitFinal(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.svc.SubmitFinal)
}

func (h *Handler) amendSubmission(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.svc.AmendSubmission)
}

type saveFunc func(ctx context.Context, input caseusecase.SaveSubmissionInput) (caseusecase.SubmissionResult, error)

// save answers 200 even when some files failed to upload; the response then
// carries warnings and the failed file list.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, fn saveFunc) {
	var req submissionRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	input, err := req.input(caseID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := fn(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(res.FailedFiles) > 0 {
		logging.Warn(r.Context(), "submission saved with failed files",
			slog.String("case_id", res.Case.ID),
			slog.Int("failed_files", len(res.FailedFiles)),
		)
	}
	writeJSON(w, http.StatusOK, newSubmissionResultView(res))
}

func (h *Handler) respondCase(w http.ResponseWriter, r *http.Request) func(casework.Case, error) {
	return func(c casework.Case, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCaseView(c))
	}
}
