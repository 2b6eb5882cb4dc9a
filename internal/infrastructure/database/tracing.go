package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/dependable-access-control/internal/infrastructure/telemetry"
)

// queryTracer opens a client span around every statement the pool runs, so
// each repository call shows up under the service span that issued it
type queryTracer struct {
	tracer telemetry.TracerInterface
}

var _ pgx.QueryTracer = queryTracer{}

func (q queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, _ = telemetry.StartDatabaseSpan(ctx, q.tracer, data.SQL)
	return ctx
}

func (q queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		telemetry.WithSpanError(span, data.Err)
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()
}
