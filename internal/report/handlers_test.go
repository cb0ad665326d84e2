package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-pricing/internal/report"
)

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func TestTriggerEnqueuesRun(t *testing.T) {
	enq := &fakeEnqueuer{}
	handler := report.NewHandler(report.HandlerConfig{Enqueuer: enq})

	rr := httptest.NewRecorder()
	handler.Trigger(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/reports/margin", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, report.TypeMarginReport, enq.tasks[0].Type())

	var body struct {
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "task-1", body.Data.TaskID)
}

func TestTriggerReportsEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	handler := report.NewHandler(report.HandlerConfig{Enqueuer: enq})

	rr := httptest.NewRecorder()
	handler.Trigger(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/reports/margin", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLatestReturnsNotFoundBeforeFirstRun(t *testing.T) {
	svc, _ := newService(t, nil, 5)
	handler := report.NewHandler(report.HandlerConfig{Service: svc})

	rr := httptest.NewRecorder()
	handler.Latest(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/margin/latest", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLatestReturnsStoredResult(t *testing.T) {
	svc, _ := newService(t, nil, 5)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	handler := report.NewHandler(report.HandlerConfig{Service: svc})
	rr := httptest.NewRecorder()
	handler.Latest(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/margin/latest", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data report.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.ID)
}
