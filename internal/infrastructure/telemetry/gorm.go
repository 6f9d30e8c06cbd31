package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQuery    = 200 * time.Millisecond
	defaultPoolInterval = 15 * time.Second
)

// gorm callback chains wrapped by the plugins below
var chains = []string{"create", "query", "update", "delete", "row", "raw"}

type statementHook func(db *gorm.DB, chain string, elapsed time.Duration)

// wrap registers a timer around gorm's own callback on every chain and
// hands the elapsed time to hook once the statement has run.
func wrap(db *gorm.DB, plugin string, hook statementHook) error {
	startKey := plugin + ":started"
	start := func(db *gorm.DB) { db.InstanceSet(startKey, time.Now()) }

	for _, chain := range chains {
		finish := func(db *gorm.DB) {
			var elapsed time.Duration
			if t, ok := db.InstanceGet(startKey); ok {
				elapsed = time.Since(t.(time.Time))
			}
			hook(db, chain, elapsed)
		}

		core := "gorm:" + chain
		var before, after func(string, func(*gorm.DB)) error
		switch cb := db.Callback(); chain {
		case "create":
			before, after = cb.Create().Before(core).Register, cb.Create().After(core).Register
		case "query":
			before, after = cb.Query().Before(core).Register, cb.Query().After(core).Register
		case "update":
			before, after = cb.Update().Before(core).Register, cb.Update().After(core).Register
		case "delete":
			before, after = cb.Delete().Before(core).Register, cb.Delete().After(core).Register
		case "row":
			before, after = cb.Row().Before(core).Register, cb.Row().After(core).Register
		default:
			before, after = cb.Raw().Before(core).Register, cb.Raw().After(core).Register
		}
		err := errors.Join(
			before(plugin+":start_"+chain, start),
			after(plugin+":finish_"+chain, finish),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// sqlVerb names the statement for metrics. Row and raw statements are
// classified by their leading keyword.
func sqlVerb(db *gorm.DB, chain string) string {
	switch chain {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	fields := strings.Fields(db.Statement.SQL.String())
	if len(fields) > 0 {
		switch verb := strings.ToUpper(fields[0]); verb {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return verb
		}
	}
	return "OTHER"
}

func statementContext(db *gorm.DB) context.Context {
	if db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}

type QueryTracingConfig struct {
	Enabled bool
	// FullSQL keeps bind values in db.statement. Never in production.
	FullSQL       bool
	SlowThreshold time.Duration
	System        string // db.system attribute: postgresql or sqlite
}

// QueryTracer is a gorm plugin: otelgorm opens a span per statement and the
// tracer adds table, rows affected and slow query marks to it.
type QueryTracer struct {
	cfg    QueryTracingConfig
	logger *zap.Logger
}

func NewQueryTracer(cfg QueryTracingConfig, logger *zap.Logger) *QueryTracer {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowQuery
	}
	if cfg.System == "" {
		cfg.System = "postgresql"
	}
	return &QueryTracer{cfg: cfg, logger: logger}
}

func (*QueryTracer) Name() string { return "shopkit:query_tracer" }

// Initialize is called by db.Use. A disabled tracer registers nothing.
func (t *QueryTracer) Initialize(db *gorm.DB) error {
	if !t.cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(t.cfg.System)}
	if !t.cfg.FullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := wrap(db, "shopkit_tracer", t.annotate); err != nil {
		return err
	}
	t.logger.Info("query tracing enabled",
		zap.String("system", t.cfg.System),
		zap.Bool("full_sql", t.cfg.FullSQL),
		zap.Duration("slow_threshold", t.cfg.SlowThreshold),
	)
	return nil
}

func (t *QueryTracer) annotate(db *gorm.DB, _ string, elapsed time.Duration) {
	span := trace.SpanFromContext(statementContext(db))
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", db.Statement.RowsAffected)}
	if table := db.Statement.Table; table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}
	if elapsed > t.cfg.SlowThreshold {
		attrs = append(attrs,
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
	}
	span.SetAttributes(attrs...)

	// a miss is an answer, not a failure
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

type QueryMetricsConfig struct {
	SlowThreshold time.Duration
	PoolInterval  time.Duration // how often sql.DB stats are sampled
}

// QueryMetrics is a gorm plugin counting statements by verb and timing
// them. It also samples the connection pool once SamplePool is called.
type QueryMetrics struct {
	cfg    QueryMetricsConfig
	logger *zap.Logger
	pool   *sql.DB

	statements *Counter
	slow       *Counter
	latency    *Histogram
	conns      *Gauge
	maxConns   *Gauge

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewQueryMetrics builds the instruments on mp. It returns nil when metrics
// are off, so callers skip db.Use.
func NewQueryMetrics(mp *MeterProvider, cfg QueryMetricsConfig, logger *zap.Logger) (*QueryMetrics, error) {
	if !mp.IsEnabled() {
		return nil, nil
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowQuery
	}
	if cfg.PoolInterval <= 0 {
		cfg.PoolInterval = defaultPoolInterval
	}

	meter := mp.Meter("db.client")
	m := &QueryMetrics{cfg: cfg, logger: logger, done: make(chan struct{})}
	var err error
	if m.statements, err = NewCounter(meter, "db_query_total", "Statements executed by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slow, err = NewCounter(meter, "db_slow_query_total", "Statements over the slow query threshold by table", "{query}"); err != nil {
		return nil, err
	}
	if m.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.conns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.maxConns, err = NewGauge(meter, "db_pool_connections_max", "Pool connection limit", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (*QueryMetrics) Name() string { return "shopkit:query_metrics" }

func (m *QueryMetrics) Initialize(db *gorm.DB) error {
	pool, err := db.DB()
	if err != nil {
		return err
	}
	m.pool = pool
	if err := wrap(db, "shopkit_metrics", func(db *gorm.DB, chain string, elapsed time.Duration) {
		m.Observe(statementContext(db), sqlVerb(db, chain), db.Statement.Table, elapsed)
	}); err != nil {
		return err
	}
	m.logger.Info("query metrics enabled",
		zap.Duration("slow_threshold", m.cfg.SlowThreshold),
		zap.Duration("pool_interval", m.cfg.PoolInterval),
	)
	return nil
}

// Observe records one statement of the given verb
func (m *QueryMetrics) Observe(ctx context.Context, verb, table string, elapsed time.Duration) {
	attr := AttrDBOperation.String(verb)
	m.statements.Inc(ctx, attr)
	m.latency.RecordDuration(ctx, elapsed, attr)
	if elapsed <= m.cfg.SlowThreshold {
		return
	}
	if table == "" {
		table = "unknown"
	}
	m.slow.Inc(ctx, AttrDBTable.String(table))
}

// SamplePool records pool stats now and then every PoolInterval until Stop
// or ctx is done. Initialize must have run.
func (m *QueryMetrics) SamplePool(ctx context.Context) {
	m.sample(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		tick := time.NewTicker(m.cfg.PoolInterval)
		defer tick.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ctx.Done():
				return
			case <-tick.C:
				m.sample(ctx)
			}
		}
	}()
}

func (m *QueryMetrics) sample(ctx context.Context) {
	s := m.pool.Stats()
	m.maxConns.Record(ctx, int64(s.MaxOpenConnections))
	for state, n := range map[string]int{"idle": s.Idle, "in_use": s.InUse, "open": s.OpenConnections} {
		m.conns.Record(ctx, int64(n), AttrDBState.String(state))
	}
}

// Stop ends pool sampling. It may be called more than once.
func (m *QueryMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}
