package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to the HTTP status the API reports.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindStaleState:
		return http.StatusConflict
	case errs.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, ve := range verrs {
			fields[ve.Field()] = ve.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "invalid request",
			Kind:   string(errs.KindInvalidInput),
			Fields: fields,
		})
		return
	}

	kind := errs.KindOf(err)
	status := statusFor(kind)
	resp := errorResponse{Kind: string(kind), Detail: err.Error()}
	switch {
	case kind == errs.KindStaleState:
		resp.Error = casework.ErrStaleState.Error()
	case status == http.StatusInternalServerError:
		resp = errorResponse{Error: "internal error"}
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
	default:
		resp.Error = err.Error()
		resp.Detail = ""
	}
	writeJSON(w, status, resp)
}
