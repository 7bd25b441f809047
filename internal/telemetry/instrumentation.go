package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Span attributes must stay low cardinality: operation names, statuses,
// collections. Dates, image identifiers and paths belong in logs.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation runs fn inside a span named after the operation.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := statusOf(err)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentMetadata instruments the metadata lookup for a day.
func (t *Telemetry) InstrumentMetadata(ctx context.Context, collection string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "list_images", "epic", fn)

	t.metadataRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("status", statusOf(err)),
	))

	return err
}

// InstrumentFrameDownload instruments the download of one frame, retries
// included.
func (t *Telemetry) InstrumentFrameDownload(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "download_frame", "downloader", fn)
	status := metric.WithAttributes(attribute.String("status", statusOf(err)))

	t.framesDownloaded.Add(ctx, 1, status)
	t.frameDownloadDuration.Record(ctx, time.Since(start).Seconds(), status)

	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
