package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelAPI forwards every report to an inner API and mirrors broken/warning
// reports and counts onto otel instruments.
type OtelAPI struct {
	inner    API
	broken   metric.Int64Counter
	warnings metric.Int64Counter
	counts   metric.Int64Gauge
}

// NewOtelAPI must be called after the meter provider is installed, otherwise
// the instruments stay bound to the no-op provider.
func NewOtelAPI(inner API) (OtelAPI, error) {
	meter := otel.Meter("librus-probe")

	broken, err := meter.Int64Counter("broken_reports")
	if err != nil {
		return OtelAPI{}, err
	}
	warnings, err := meter.Int64Counter("warning_reports")
	if err != nil {
		return OtelAPI{}, err
	}
	counts, err := meter.Int64Gauge("counts")
	if err != nil {
		return OtelAPI{}, err
	}

	return OtelAPI{
		inner:    inner,
		broken:   broken,
		warnings: warnings,
		counts:   counts,
	}, nil
}

func (o OtelAPI) ReportBroken(id string, params ...any) {
	o.broken.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
	o.inner.ReportBroken(id, params...)
}

func (o OtelAPI) ReportWarning(id string, params ...any) {
	o.warnings.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
	o.inner.ReportWarning(id, params...)
}

func (o OtelAPI) ReportDebug(msg string, params ...any) {
	o.inner.ReportDebug(msg, params...)
}

func (o OtelAPI) ReportCount(id string, count int64) {
	o.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
	o.inner.ReportCount(id, count)
}
