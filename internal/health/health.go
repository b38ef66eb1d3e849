// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
)

const (
	StatusUp            = "up"
	StatusDown          = "down"
	StatusNotConfigured = "not_configured"
)

// PingFunc reports whether a dependency answers.
type PingFunc func(ctx context.Context) error

type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type Checker struct {
	mode  string
	db    PingFunc
	redis PingFunc
	now   func() time.Time
}

// NewChecker: the database is required for readiness, redis is optional and
// may be nil.
func NewChecker(mode string, db, redis PingFunc) *Checker {
	return &Checker{mode: mode, db: db, redis: redis, now: time.Now}
}

// Health — GET /health
func (c *Checker) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]string{
		"status":    "ok",
		"mode":      c.mode,
		"timestamp": c.now().UTC().Format(time.RFC3339),
	})
}

// Live — GET /live; answers while the process serves HTTP at all.
func (c *Checker) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]bool{"live": true})
}

// Ready — GET /ready; 503 while the database is unreachable.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": probe(r.Context(), c.db, 3*time.Second),
		"redis":    probe(r.Context(), c.redis, 2*time.Second),
	}
	ready := checks["database"].Status == StatusUp

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{"ready": ready, "checks": checks})
}

func probe(ctx context.Context, ping PingFunc, timeout time.Duration) Check {
	if ping == nil {
		return Check{Status: StatusNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: StatusDown, Latency: latency, Message: err.Error()}
	}
	return Check{Status: StatusUp, Latency: latency}
}
