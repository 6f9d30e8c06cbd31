// Package router assembles the ops HTTP engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopkit/backend/internal/infrastructure/logger"
	"github.com/shopkit/backend/internal/interfaces/http/dto"
	"github.com/shopkit/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a group of routes under the versioned API prefix
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// Option configures a Router
type Option func(*Router)

// WithAPIVersion overrides the default "v1" prefix
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router over engine
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds registrars; they are mounted by Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar and returns the API group
func (r *Router) Setup() *gin.RouterGroup {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
	return api
}

// EngineConfig configures NewEngine
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	Profiling      bool
	MaxBodyBytes   int64
	TrustedProxies []string
	// Meter records HTTP metrics; nil disables them.
	Meter metric.Meter
}

// probePaths are excluded from tracing, profiling and access logs
var probePaths = []string{"/healthz", "/readyz"}

// NewEngine builds a gin engine with the ops middleware chain:
// recovery, request id, tracing, metrics, profiling labels, access log.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	metrics, err := middleware.HTTPMetricsWithMeter(cfg.Meter)
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.TracingEnabled,
			SkipPaths:   probePaths,
		}),
		middleware.SpanRequestID(),
		middleware.SpanErrorMarker(),
		metrics,
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   cfg.Profiling,
			SkipPaths: probePaths,
		}),
		logger.AccessLog(log, probePaths...),
		middleware.Secure(),
		middleware.BodyLimit(maxBody),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "route not found", middleware.GetRequestID(c)))
	})
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeBadRequest, "method not allowed", middleware.GetRequestID(c)))
	})
	return engine, nil
}
