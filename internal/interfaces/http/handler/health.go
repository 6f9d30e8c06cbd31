package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckFunc reports whether a dependency is usable
type CheckFunc func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	checks  map[string]CheckFunc
	timeout time.Duration
	version string
}

// NewHealthHandler creates a HealthHandler. checks are run on every
// readiness probe, each bounded by timeout.
func NewHealthHandler(version string, timeout time.Duration, checks map[string]CheckFunc, logger *zap.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		BaseHandler: NewBaseHandler(logger),
		checks:      checks,
		timeout:     timeout,
		version:     version,
	}
}

// HealthStatus is the probe response body
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Live answers as long as the process serves HTTP
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{Status: "ok", Version: h.version})
}

// Ready runs every check concurrently and returns 503 if any fails
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		healthy = true
		results = make(map[string]string, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = err.Error()
				h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
				return
			}
			results[name] = "ok"
		}()
	}
	wg.Wait()

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, HealthStatus{Status: "unavailable", Version: h.version, Checks: results})
		return
	}
	c.JSON(http.StatusOK, HealthStatus{Status: "ok", Version: h.version, Checks: results})
}

// RegisterRoutes mounts the probes at the engine root
func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}
