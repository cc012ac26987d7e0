package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder is the measurement sink used by the analytics service. Metrics and
// OTelMetrics both implement it.
type Recorder interface {
	ObserveFetch(collection string, elapsed time.Duration, err error)
	ObserveSnapshot(window, status string, elapsed time.Duration)
	ObserveCache(layer string, hit bool)
	SetUserGauges(totalUsers, activeUsers7d int, retentionRate, quizCompletionRate float64)
}

// MultiRecorder fans every measurement out to each recorder
type MultiRecorder []Recorder

func (m MultiRecorder) ObserveFetch(collection string, elapsed time.Duration, err error) {
	for _, r := range m {
		r.ObserveFetch(collection, elapsed, err)
	}
}

func (m MultiRecorder) ObserveSnapshot(window, status string, elapsed time.Duration) {
	for _, r := range m {
		r.ObserveSnapshot(window, status, elapsed)
	}
}

func (m MultiRecorder) ObserveCache(layer string, hit bool) {
	for _, r := range m {
		r.ObserveCache(layer, hit)
	}
}

func (m MultiRecorder) SetUserGauges(totalUsers, activeUsers7d int, retentionRate, quizCompletionRate float64) {
	for _, r := range m {
		r.SetUserGauges(totalUsers, activeUsers7d, retentionRate, quizCompletionRate)
	}
}

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	fetchDuration    metric.Float64Histogram
	fetchErrors      metric.Int64Counter
	snapshotsTotal   metric.Int64Counter
	snapshotDuration metric.Float64Histogram
	cacheLookups     metric.Int64Counter
	totalUsers       metric.Int64Gauge
	activeUsers      metric.Int64Gauge
	retentionRate    metric.Float64Gauge
	quizRate         metric.Float64Gauge
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/nurturehq/nurture"))
}

// NewOTelMetricsWithMeter creates the instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	if m.fetchDuration, err = meter.Float64Histogram(
		"nurture.fetch.duration",
		metric.WithDescription("Raw collection fetch duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	if m.fetchErrors, err = meter.Int64Counter(
		"nurture.fetch.errors",
		metric.WithDescription("Failed raw collection fetches"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create fetch errors counter: %w", err)
	}

	if m.snapshotsTotal, err = meter.Int64Counter(
		"nurture.snapshots",
		metric.WithDescription("Snapshot refreshes by outcome"),
		metric.WithUnit("{snapshot}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create snapshots counter: %w", err)
	}

	if m.snapshotDuration, err = meter.Float64Histogram(
		"nurture.snapshot.duration",
		metric.WithDescription("End to end snapshot refresh duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create snapshot duration histogram: %w", err)
	}

	if m.cacheLookups, err = meter.Int64Counter(
		"nurture.cache.lookups",
		metric.WithDescription("Snapshot cache lookups"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	if m.totalUsers, err = meter.Int64Gauge(
		"nurture.users.total",
		metric.WithDescription("Accounts in the last published snapshot"),
		metric.WithUnit("{user}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create total users gauge: %w", err)
	}

	if m.activeUsers, err = meter.Int64Gauge(
		"nurture.users.active_7d",
		metric.WithDescription("Accounts active in the last 7 days"),
		metric.WithUnit("{user}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active users gauge: %w", err)
	}

	if m.retentionRate, err = meter.Float64Gauge(
		"nurture.retention.rate",
		metric.WithDescription("Share of week-old accounts active in the last 7 days"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retention gauge: %w", err)
	}

	if m.quizRate, err = meter.Float64Gauge(
		"nurture.quiz.completion_rate",
		metric.WithDescription("Share of accounts that completed the quiz"),
	); err != nil {
		return nil, fmt.Errorf("failed to create quiz gauge: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) ObserveFetch(collection string, elapsed time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.fetchDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTelMetrics) ObserveSnapshot(window, status string, elapsed time.Duration) {
	ctx := context.Background()
	m.snapshotsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("window", window),
		attribute.String("status", status),
	))
	m.snapshotDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("window", window)))
}

func (m *OTelMetrics) ObserveCache(layer string, hit bool) {
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.Bool("hit", hit),
	))
}

func (m *OTelMetrics) SetUserGauges(totalUsers, activeUsers7d int, retentionRate, quizCompletionRate float64) {
	ctx := context.Background()
	m.totalUsers.Record(ctx, int64(totalUsers))
	m.activeUsers.Record(ctx, int64(activeUsers7d))
	m.retentionRate.Record(ctx, retentionRate)
	m.quizRate.Record(ctx, quizCompletionRate)
}
