package report

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeMarginReport is the asynq task type for scheduled report runs.
const TypeMarginReport = "report:margin"

// NewMarginReportTask builds the task enqueued by the trigger endpoint
// and the nightly scheduler. The run carries no payload.
func NewMarginReportTask() *asynq.Task {
	return asynq.NewTask(TypeMarginReport, nil, asynq.MaxRetry(2))
}

// TaskHandler processes margin report tasks.
type TaskHandler struct {
	Service *Service
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h TaskHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Service == nil {
		return errors.New("report: service not configured")
	}
	_, err := h.Service.Run(ctx)
	if errors.Is(err, ErrRunInProgress) {
		h.Logger.Info().Msg("margin report already running, skipping task")
		return nil
	}
	return err
}
