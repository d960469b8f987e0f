package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const serviceName = "tmdnlcl-worker"

// Readiness is the part of the job server the readiness probe looks at.
type Readiness interface {
	Stopped() bool
}

// Pinger checks the database connection.
type Pinger interface {
	Ping() error
}

// Outcome classifies one answer of the account routes.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeServerError is a failure of the worker itself.
	OutcomeServerError
	// OutcomeRemoteError is a failure of the X API while publishing an
	// archived tweet. It does not make the worker unready.
	OutcomeRemoteError
)

// OutcomeForStatus maps a response status onto an outcome. Client errors
// are not counted.
func OutcomeForStatus(status int) (Outcome, bool) {
	switch {
	case status == http.StatusBadGateway:
		return OutcomeRemoteError, true
	case status >= 500:
		return OutcomeServerError, true
	case status >= 200 && status < 400:
		return OutcomeSuccess, true
	}
	return 0, false
}

// HealthMetrics counts outcomes of the account routes in a fixed window
type HealthMetrics struct {
	mu             sync.RWMutex
	counts         [3]int
	windowStart    time.Time
	windowDuration time.Duration
	errorThreshold float64
	now            func() time.Time
}

func NewHealthMetrics() *HealthMetrics {
	return &HealthMetrics{
		windowStart:    time.Now(),
		windowDuration: 10 * time.Minute,
		errorThreshold: 0.95,
		now:            time.Now,
	}
}

func (hm *HealthMetrics) Record(o Outcome) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if now := hm.now(); now.Sub(hm.windowStart) > hm.windowDuration {
		hm.counts = [3]int{}
		hm.windowStart = now
	}
	hm.counts[o]++
}

func (hm *HealthMetrics) total() int {
	return hm.counts[OutcomeSuccess] + hm.counts[OutcomeServerError] + hm.counts[OutcomeRemoteError]
}

func (hm *HealthMetrics) rate(o Outcome) float64 {
	total := hm.total()
	if total == 0 {
		return 0
	}
	return float64(hm.counts[o]) / float64(total)
}

// IsHealthy is false once server errors reach the threshold share of the window
func (hm *HealthMetrics) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	return hm.total() == 0 || hm.rate(OutcomeServerError) < hm.errorThreshold
}

// RemoteDegraded reports whether most answers of the window failed on the X API.
func (hm *HealthMetrics) RemoteDegraded() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	return hm.rate(OutcomeRemoteError) >= 0.5
}

func (hm *HealthMetrics) GetStats() map[string]interface{} {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	return map[string]interface{}{
		"error_count":        hm.counts[OutcomeServerError],
		"remote_error_count": hm.counts[OutcomeRemoteError],
		"success_count":      hm.counts[OutcomeSuccess],
		"total_count":        hm.total(),
		"error_rate":         hm.rate(OutcomeServerError),
		"remote_error_rate":  hm.rate(OutcomeRemoteError),
		"window_start":       hm.windowStart.Format(time.RFC3339),
		"window_duration":    hm.windowDuration.String(),
	}
}

// Healthz is the liveness probe endpoint
func Healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	}
}

// Readyz is the readiness probe endpoint
func Readyz(jobServer Readiness, db Pinger, healthMetrics *HealthMetrics) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]interface{}{}
		body := map[string]interface{}{
			"service": serviceName,
			"ready":   true,
			"checks":  checks,
		}
		unavailable := func() error {
			body["ready"] = false
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		if jobServer == nil {
			checks["job_server"] = "not initialized"
			return unavailable()
		}
		if jobServer.Stopped() {
			checks["job_server"] = "stopped"
			return unavailable()
		}
		checks["job_server"] = "ok"

		if db != nil {
			if err := db.Ping(); err != nil {
				checks["database"] = err.Error()
				return unavailable()
			}
			checks["database"] = "ok"
		}

		checks["stats"] = healthMetrics.GetStats()
		checks["x_api"] = "ok"
		if healthMetrics.RemoteDegraded() {
			checks["x_api"] = "degraded"
		}
		if !healthMetrics.IsHealthy() {
			checks["error_rate"] = "unhealthy"
			return unavailable()
		}
		checks["error_rate"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
