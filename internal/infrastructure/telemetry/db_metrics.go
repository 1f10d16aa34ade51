package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records query counts and latency through GORM callbacks and
// reports connection pool usage on collection
type DBMetrics struct {
	queryTotal    *Counter
	queryErrors   *Counter
	queryDuration *Histogram
	logger        *zap.Logger
}

// NewDBMetrics creates the database instruments on meter. When sqlDB is not
// nil its pool stats are observed at every collection.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, &MetricsError{Op: "NewDBMetrics", Err: "meter cannot be nil"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &DBMetrics{logger: logger}
	var err error
	if m.queryTotal, err = NewCounter(meter, "db_query_total", "Database queries by operation and table", "{query}"); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Failed database queries", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if sqlDB != nil {
		inUse, err := meter.Int64ObservableGauge("db_pool_connections_in_use",
			metric.WithDescription("Connections currently in use"), metric.WithUnit("{connection}"))
		if err != nil {
			return nil, err
		}
		idle, err := meter.Int64ObservableGauge("db_pool_connections_idle",
			metric.WithDescription("Idle connections"), metric.WithUnit("{connection}"))
		if err != nil {
			return nil, err
		}
		if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			stats := sqlDB.Stats()
			o.ObserveInt64(inUse, int64(stats.InUse))
			o.ObserveInt64(idle, int64(stats.Idle))
			return nil
		}, inUse, idle); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string {
	return "db_metrics"
}

// Initialize implements gorm.Plugin by registering before/after callbacks
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	pairs := []struct {
		name      string
		operation string
		before    func(string, func(*gorm.DB)) error
		after     func(string, func(*gorm.DB)) error
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, p := range pairs {
		if err := p.before("db_metrics:before_"+p.name, markQueryStart); err != nil {
			return err
		}
		operation := p.operation
		if err := p.after("db_metrics:after_"+p.name, func(db *gorm.DB) {
			m.record(db, operation)
		}); err != nil {
			return err
		}
	}
	m.logger.Debug("Database metrics plugin initialized")
	return nil
}

func (m *DBMetrics) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if operation == "" {
		operation = detectOperationType(db.Statement.SQL.String())
	}
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(db.Statement.Table)}

	m.queryTotal.Inc(ctx, attrs...)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
	if start, ok := queryStartedAt(ctx); ok {
		m.queryDuration.RecordDuration(ctx, time.Since(start), attrs...)
	}
}

func detectOperationType(query string) string {
	query = strings.ToUpper(strings.TrimSpace(query))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(query, op) {
			return op
		}
	}
	return "OTHER"
}
