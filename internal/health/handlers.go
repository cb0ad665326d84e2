package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

// SetReady flips the readiness gate. Flipped off during graceful
// shutdown so load balancers drain before connections close.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// SyncChecker reports when the ERP mirror last received data.
type SyncChecker interface {
	LatestSyncedAt(ctx context.Context) (time.Time, error)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	Sync         SyncChecker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	// StaleAfter marks the mirror as stale when the newest sync is
	// older than this window. Zero disables the probe.
	StaleAfter time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the shutdown gate and dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() || h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	status := map[string]string{
		"db":    probe(h.Checker.PingDB, ctx, h.dbTimeout()),
		"redis": probe(h.Checker.PingRedis, ctx, h.redisTimeout()),
	}
	healthy := status["db"] == "ok" && status["redis"] == "ok"

	if h.Sync != nil && h.StaleAfter > 0 {
		status["erp_sync"] = h.syncStatus(ctx)
		// A stale mirror degrades quality but the service can still
		// quote, so it does not flip readiness.
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) syncStatus(ctx context.Context) string {
	last, err := h.Sync.LatestSyncedAt(ctx)
	if err != nil {
		return err.Error()
	}
	if last.IsZero() {
		return "no data"
	}
	if age := time.Since(last); age > h.StaleAfter {
		return fmt.Sprintf("stale (%s old)", age.Truncate(time.Minute))
	}
	return "ok"
}

func probe(ping func(context.Context, time.Duration) error, ctx context.Context, timeout time.Duration) string {
	if err := ping(ctx, timeout); err != nil {
		return err.Error()
	}
	return "ok"
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

func init() {
	ready.Store(true)
}
