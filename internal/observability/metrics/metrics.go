package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	recordChanges   metric.Int64Counter
	recordRejects   metric.Int64Counter
	importRows      metric.Int64Counter
	inspections     metric.Int64Counter
	reportsRendered metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lubeqc"
	}
	meter := provider.Meter(name)

	recordChanges, err := meter.Int64Counter("lubeqc_record_changes_total")
	if err != nil {
		return nil, err
	}
	recordRejects, err := meter.Int64Counter("lubeqc_record_rejects_total")
	if err != nil {
		return nil, err
	}
	importRows, err := meter.Int64Counter("lubeqc_import_rows_total")
	if err != nil {
		return nil, err
	}
	inspections, err := meter.Int64Counter("lubeqc_inspections_total")
	if err != nil {
		return nil, err
	}
	reportsRendered, err := meter.Int64Counter("lubeqc_reports_rendered_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		recordChanges:   recordChanges,
		recordRejects:   recordRejects,
		importRows:      importRows,
		inspections:     inspections,
		reportsRendered: reportsRendered,
	}, nil
}

// RecordChange counts records touched by a store mutation.
func (m *Metrics) RecordChange(ctx context.Context, change string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("change", strings.TrimSpace(change)))
	m.recordChanges.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordReject counts inputs refused at the ingestion boundary.
func (m *Metrics) RecordReject(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.recordRejects.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordImportRows counts imported and dropped CSV rows.
func (m *Metrics) RecordImportRows(ctx context.Context, imported, dropped int) {
	if m == nil {
		return
	}
	if imported > 0 {
		m.importRows.Add(ctx, int64(imported), metric.WithAttributes(attribute.String("outcome", "imported")))
	}
	if dropped > 0 {
		m.importRows.Add(ctx, int64(dropped), metric.WithAttributes(attribute.String("outcome", "dropped")))
	}
}

// RecordInspection counts submitted inspections by status.
func (m *Metrics) RecordInspection(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.inspections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReport counts rendered reports by format and family.
func (m *Metrics) RecordReport(ctx context.Context, format, family string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("format", strings.TrimSpace(format)),
		attribute.String("family", strings.TrimSpace(family)),
	)
	m.reportsRendered.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"change":      {},
	"reason":      {},
	"outcome":     {},
	"status":      {},
	"format":      {},
	"family":      {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
