package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tickerwatch/ingester/internal/connection"
	"github.com/tickerwatch/ingester/internal/poller"
)

// staleAfter marks the ranking cache degraded when no batch has landed for this long.
const staleAfter = 2 * time.Minute

type pinger interface {
	Ping(ctx context.Context) error
}

type cacheStatus interface {
	pinger
	UpdatedAt(ctx context.Context) (time.Time, error)
}

type healthDeps struct {
	db       pinger
	cache    cacheStatus
	stream   func() connection.State
	rollover func() poller.PollState
	now      func() time.Time
}

type healthReport struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func createHealthHandler(deps healthDeps) http.HandlerFunc {
	if deps.now == nil {
		deps.now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := healthReport{
			Status:     "healthy",
			Components: make(map[string]any),
		}
		degrade := func() {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		if err := deps.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		if err := deps.cache.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["redis"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			cacheInfo := map[string]any{"status": "connected"}
			updated, err := deps.cache.UpdatedAt(ctx)
			switch {
			case err != nil:
				cacheInfo["error"] = err.Error()
				degrade()
			case updated.IsZero():
				cacheInfo["updated_at"] = nil
				degrade()
			default:
				age := deps.now().Sub(updated)
				cacheInfo["updated_at"] = updated.Format(time.RFC3339)
				cacheInfo["age_seconds"] = int64(age.Seconds())
				if age > staleAfter {
					degrade()
				}
			}
			health.Components["redis"] = cacheInfo
		}

		state := deps.stream()
		health.Components["stream"] = state.String()
		if state != connection.StateStreaming {
			degrade()
		}

		if deps.rollover != nil {
			ps := deps.rollover()
			info := map[string]any{
				"cycle_id": ps.CycleID,
				"done":     ps.Done,
				"attempts": ps.Attempts,
			}
			if !ps.ServerDay.IsZero() {
				info["server_day"] = ps.ServerDay.Format(time.DateOnly)
			}
			health.Components["rollover"] = info
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
