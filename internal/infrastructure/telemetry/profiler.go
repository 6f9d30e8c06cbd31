package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// DefaultProfileTypes are pushed when ProfilerConfig.Types is empty. Mutex
// and block profiles cost runtime overhead and must be asked for.
var DefaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

const defaultSampleRate = 5

type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	Types             []pyroscope.ProfileType
	// Sampling for mutex and block profiles; zero means 5
	MutexProfileFraction int
	BlockProfileRate     int
}

func (c ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	if len(c.Types) == 0 {
		return DefaultProfileTypes
	}
	return c.Types
}

// Profiler is a running Pyroscope session. A nil or disabled Profiler does
// nothing.
type Profiler struct {
	mu      sync.Mutex
	session *pyroscope.Profiler
	logger  *zap.Logger
}

func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	if !cfg.Enabled {
		logger.Info("continuous profiling disabled")
		return &Profiler{logger: logger}, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, errors.New("profiler: server address and application name are required")
	}

	types := cfg.profileTypes()
	if slices.Contains(types, pyroscope.ProfileMutexCount) || slices.Contains(types, pyroscope.ProfileMutexDuration) {
		runtime.SetMutexProfileFraction(positiveOr(cfg.MutexProfileFraction, defaultSampleRate))
	}
	if slices.Contains(types, pyroscope.ProfileBlockCount) || slices.Contains(types, pyroscope.ProfileBlockDuration) {
		runtime.SetBlockProfileRate(positiveOr(cfg.BlockProfileRate, defaultSampleRate))
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            logger.Named("pyroscope").Sugar(),
		Tags:              hostTags(),
		ProfileTypes:      types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	logger.Info("continuous profiling enabled",
		zap.String("server", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return &Profiler{session: session, logger: logger}, nil
}

// hostTags identifies the instance; both variables are set in Kubernetes
func hostTags() map[string]string {
	tags := make(map[string]string, 2)
	for tag, env := range map[string]string{"hostname": "HOSTNAME", "pod": "POD_NAME"} {
		if v := os.Getenv(env); v != "" {
			tags[tag] = v
		}
	}
	return tags
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (p *Profiler) IsEnabled() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Stop uploads the last profiles and ends the session. The SDK takes no
// context, so an unreachable server can hold shutdown for its upload
// timeout.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.Stop(); err != nil {
		return fmt.Errorf("stop pyroscope: %w", err)
	}
	p.logger.Info("continuous profiling stopped")
	return nil
}

const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelSagaType   = "saga_type"
	ProfilingLabelEventType  = "event_type"
)

// MaxLabelValueLength caps a label value; longer values are cut.
const MaxLabelValueLength = 128

// perEntityLabels would create one profile series per row and are never
// attached.
var perEntityLabels = []string{"user_id", "shop_id", "procman_id", "event_id", "request_id", "trace_id", "span_id"}

// WithProfilingLabels runs fn with labels on its profiler samples
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

func HTTPRequestLabels(controller, route, method string) map[string]string {
	return map[string]string{
		ProfilingLabelController: controller,
		ProfilingLabelRoute:      route,
		ProfilingLabelMethod:     method,
	}
}

func SagaLabels(sagaType, eventType string) map[string]string {
	return map[string]string{ProfilingLabelSagaType: sagaType, ProfilingLabelEventType: eventType}
}

// sanitizeLabels flattens labels into key, value pairs sorted by key.
// Keys become snake_case. Empty values and per-entity keys are dropped.
func sanitizeLabels(labels map[string]string) []string {
	var pairs []string
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		key, v := labelKey(k), labels[k]
		if key == "" || v == "" || slices.Contains(perEntityLabels, key) {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

func labelKey(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-':
			return '_'
		}
		return -1
	}, raw)
}
