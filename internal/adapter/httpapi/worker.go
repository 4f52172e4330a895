package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/middleware"
	"tutorgrid/internal/usecase/worker"
)

type workerAPI struct {
	svc    *worker.Service
	logger *slog.Logger
}

// NewWorkerHandler serves a worker service:
//
//	POST /process  TaskEnvelope -> CompletionReport
//	GET  /health   HealthReport
func NewWorkerHandler(svc *worker.Service, log *slog.Logger) http.Handler {
	api := &workerAPI{svc: svc, logger: logger.OrDiscard(log)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", api.handleProcess)
	mux.HandleFunc("GET /health", api.handleHealth)

	return middleware.Chain(mux, middleware.Recover(api.logger), middleware.SecurityHeaders)
}

func (a *workerAPI) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var env domain.TaskEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		a.logger.Info("rejected malformed task envelope", "error", err)
		writeJSON(w, http.StatusBadRequest, domain.CompletionReport{
			MessageID: ulid.Make().String(),
			Sender:    a.svc.ID(),
			Type:      domain.MessageCompletionReport,
			Status:    domain.TaskError,
			Results:   domain.CompletionResults{Error: "invalid task envelope", Details: err.Error()},
			Timestamp: time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, a.svc.Handle(r.Context(), env))
}

func (a *workerAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.HealthReport(r.Context()))
}
