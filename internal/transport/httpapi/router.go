package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/infrastructure/events"
	caseusecase "caseflow/internal/usecase/casework"
)

// Handler serves the case API on top of the case service.
type Handler struct {
	svc      *caseusecase.Service
	broker   *events.Broker
	validate *validator.Validate
}

func NewHandler(svc *caseusecase.Service, broker *events.Broker) *Handler {
	return &Handler{
		svc:      svc,
		broker:   broker,
		validate: newValidator(),
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/cases", func(r chi.Router) {
		r.Post("/", h.createCase)
		r.Get("/", h.listCases)
		r.Get("/stream", h.stream)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getCase)
			r.Post("/allocate", h.allocate)
			r.Post("/accept", h.accept)
			r.Post("/reject", h.reject)
			r.Post("/qc", h.qcDecide)
			r.Post("/rework-reassign", h.reworkReassign)
			r.Post("/report", h.report)
			r.Post("/enter-payment", h.enterPayment)
			r.Post("/complete-payment", h.completePayment)
			r.Post("/cancel", h.cancel)
			r.Post("/case-type", h.chooseCaseType)

			r.Get("/submission", h.getSubmission)
			r.Patch("/submission", h.amendSubmission)
			r.Put("/submission/draft", h.saveDraft)
			r.Post("/submission/final", h.submitFinal)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(
			logging.WithAttrs(r.Context(), slog.String("component", "transport.http")),
			middleware.GetReqID(r.Context()),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Debug(ctx, "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
