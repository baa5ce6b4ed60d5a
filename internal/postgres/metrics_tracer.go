package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/metrics"
)

// MetricsTracer hooks into pgx query execution to record latency and
// error counts per statement kind.
type MetricsTracer struct{}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

type traceKey struct{}

type traceInfo struct {
	started time.Time
	query   string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	info := traceInfo{started: time.Now(), query: queryLabel(data.SQL)}
	return context.WithValue(ctx, traceKey{}, info)
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	info, ok := ctx.Value(traceKey{}).(traceInfo)
	if !ok {
		return
	}

	metrics.DBQueryDuration.WithLabelValues(info.query).Observe(time.Since(info.started).Seconds())
	if data.Err != nil {
		metrics.DBErrorsTotal.WithLabelValues(info.query).Inc()
	}
}

// queryLabel maps SQL to its leading keyword (SELECT, INSERT, CREATE)
// so the metric label set stays small.
func queryLabel(sql string) string {
	for i, c := range sql {
		if c == ' ' || c == '\n' || c == '\t' {
			if i > 0 {
				return sql[:i]
			}
			return "unknown"
		}
	}
	if sql == "" {
		return "unknown"
	}
	if len(sql) > 20 {
		return sql[:20]
	}
	return sql
}
