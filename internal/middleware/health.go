package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// Overall states reported by /health.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// Component is one dependency of the API. A failing critical component
// takes the whole service down; any other failure only degrades it.
type Component struct {
	Name     string
	Target   string
	Critical bool
	Check    func(ctx context.Context) error
}

// PingDB checks a SQL connection pool.
func PingDB(db *sql.DB) func(ctx context.Context) error {
	return db.PingContext
}

// Health reports the state of the upstream services, the storage layers
// and the optional features a deployment was started with.
type Health struct {
	Components []Component
	Features   map[string]bool
	Timeout    time.Duration
}

type ComponentReport struct {
	Name      string `json:"name"`
	Target    string `json:"target,omitempty"`
	Critical  bool   `json:"critical"`
	Up        bool   `json:"up"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type HealthReport struct {
	Status     string            `json:"status"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentReport `json:"components"`
	Features   map[string]bool   `json:"features,omitempty"`
}

// Run checks every component concurrently.
func (h *Health) Run(ctx context.Context) HealthReport {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reports := make([]ComponentReport, len(h.Components))
	var g errgroup.Group
	for i, c := range h.Components {
		i, c := i, c
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			reports[i] = ComponentReport{
				Name:      c.Name,
				Target:    redactTarget(c.Target),
				Critical:  c.Critical,
				Up:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				reports[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	status := StatusOK
	for _, r := range reports {
		if r.Up {
			continue
		}
		if r.Critical {
			status = StatusDown
			break
		}
		status = StatusDegraded
	}
	return HealthReport{
		Status:     status,
		CheckedAt:  time.Now().UTC(),
		Components: reports,
		Features:   h.Features,
	}
}

// Handler serves the full report, 503 when a critical component is down.
func (h *Health) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Run(r.Context())
		writeJSON(w, statusCode(report.Status), report)
	}
}

// ReadinessHandler answers 503 until every critical component is up, so
// analyses are not routed to an instance that cannot reach the analysis
// service or its stores.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Run(r.Context())
		ready := report.Status != StatusDown
		writeJSON(w, statusCode(report.Status), map[string]any{
			"ready":     ready,
			"status":    report.Status,
			"timestamp": report.CheckedAt,
		})
	}
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func statusCode(status string) int {
	if status == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// redactTarget drops credentials and query strings from a configured URL.
func redactTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
