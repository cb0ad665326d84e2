package report

import (
	"context"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/b2b-pricing/internal/common"
)

// Enqueuer abstracts the asynq client for tests.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Handler exposes admin report endpoints.
type Handler struct {
	service  *Service
	enqueuer Enqueuer
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Enqueuer Enqueuer
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, enqueuer: cfg.Enqueuer}
}

// Trigger handles POST /api/v1/admin/reports/margin. The run itself
// happens on the worker; the endpoint only enqueues.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "task queue not configured", nil)
		return
	}
	info, err := h.enqueuer.EnqueueContext(r.Context(), NewMarginReportTask())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to enqueue report run", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"taskId": info.ID}})
}

// Latest handles GET /api/v1/admin/reports/margin/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "report service not configured", nil)
		return
	}
	result, ok, err := h.service.Latest(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load report", nil)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no report has been run yet", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
