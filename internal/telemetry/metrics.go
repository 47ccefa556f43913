package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics bundles the instruments recorded by the pipeline stages.
// A nil bundle is safe to call and records nothing.
type PipelineMetrics struct {
	environment string
	meter       metric.Meter

	cycles         metric.Int64Counter
	cycleDuration  metric.Float64Histogram
	venueErrors    metric.Int64Counter
	mappedPairs    metric.Int64Gauge
	signals        metric.Int64Counter
	depthResults   metric.Int64Counter
	depthDuration  metric.Float64Histogram
	workerRestarts metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instrument bundle on the
// provider's meter.
func NewPipelineMetrics(provider *Provider) (*PipelineMetrics, error) {
	meter := provider.Meter("spreadscan/pipeline")

	cycles, err := meter.Int64Counter("pipeline.cycles",
		metric.WithDescription("Completed stage cycles"),
		metric.WithUnit("{cycle}"))
	if err != nil {
		return nil, fmt.Errorf("create cycle counter: %w", err)
	}
	cycleDuration, err := meter.Float64Histogram("pipeline.cycle.duration",
		metric.WithDescription("Stage cycle duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create cycle histogram: %w", err)
	}
	venueErrors, err := meter.Int64Counter("venue.fetch.errors",
		metric.WithDescription("Venue fetch failures"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("create venue error counter: %w", err)
	}
	mappedPairs, err := meter.Int64Gauge("symbolmap.pairs",
		metric.WithDescription("Pairs in the published symbol map"),
		metric.WithUnit("{pair}"))
	if err != nil {
		return nil, fmt.Errorf("create mapped pairs gauge: %w", err)
	}
	signals, err := meter.Int64Counter("signals.emitted",
		metric.WithDescription("Spread candidates emitted by the scanner"),
		metric.WithUnit("{signal}"))
	if err != nil {
		return nil, fmt.Errorf("create signal counter: %w", err)
	}
	depthResults, err := meter.Int64Counter("depth.results",
		metric.WithDescription("Depth-check outcomes"),
		metric.WithUnit("{check}"))
	if err != nil {
		return nil, fmt.Errorf("create depth result counter: %w", err)
	}
	depthDuration, err := meter.Float64Histogram("depth.check.duration",
		metric.WithDescription("Depth-check duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create depth histogram: %w", err)
	}
	workerRestarts, err := meter.Int64Counter("worker.restarts",
		metric.WithDescription("Supervisor worker restarts"),
		metric.WithUnit("{restart}"))
	if err != nil {
		return nil, fmt.Errorf("create restart counter: %w", err)
	}

	return &PipelineMetrics{
		environment:    provider.Environment(),
		meter:          meter,
		cycles:         cycles,
		cycleDuration:  cycleDuration,
		venueErrors:    venueErrors,
		mappedPairs:    mappedPairs,
		signals:        signals,
		depthResults:   depthResults,
		depthDuration:  depthDuration,
		workerRestarts: workerRestarts,
	}, nil
}

// RecordCycle records one completed stage cycle.
func (m *PipelineMetrics) RecordCycle(ctx context.Context, stage, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(StageAttributes(m.environment, stage, result)...)
	m.cycles.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(AttrEnvironment.String(m.environment), AttrStage.String(stage)))
}

// RecordVenueError records one failed venue fetch.
func (m *PipelineMetrics) RecordVenueError(ctx context.Context, venue, operation, errorCode string) {
	if m == nil {
		return
	}
	m.venueErrors.Add(ctx, 1,
		metric.WithAttributes(VenueAttributes(m.environment, venue, operation, errorCode)...))
}

// RecordSymbolMap records the size of a freshly published symbol map.
func (m *PipelineMetrics) RecordSymbolMap(ctx context.Context, pairs int) {
	if m == nil {
		return
	}
	m.mappedPairs.Record(ctx, int64(pairs),
		metric.WithAttributes(AttrEnvironment.String(m.environment)))
}

// RecordSignal records one emitted spread candidate.
func (m *PipelineMetrics) RecordSignal(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.signals.Add(ctx, 1,
		metric.WithAttributes(SignalAttributes(m.environment, direction)...))
}

// RecordDepthResult records one depth-check outcome.
func (m *PipelineMetrics) RecordDepthResult(ctx context.Context, result, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.depthResults.Add(ctx, 1,
		metric.WithAttributes(DepthAttributes(m.environment, result, reason)...))
	m.depthDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(AttrEnvironment.String(m.environment)))
}

// RecordWorkerRestart records one supervisor-driven worker restart.
func (m *PipelineMetrics) RecordWorkerRestart(ctx context.Context, worker string) {
	if m == nil {
		return
	}
	m.workerRestarts.Add(ctx, 1,
		metric.WithAttributes(AttrEnvironment.String(m.environment), AttrWorker.String(worker)))
}

// RegisterQueueObserver exports queue depth and lifetime publish/drop
// counts through observable instruments.
func (m *PipelineMetrics) RegisterQueueObserver(depth func() int, stats func() (published, dropped uint64)) error {
	if m == nil || depth == nil || stats == nil {
		return nil
	}
	queueDepth, err := m.meter.Int64ObservableGauge("queue.depth",
		metric.WithDescription("Candidates waiting for a depth check"),
		metric.WithUnit("{signal}"))
	if err != nil {
		return fmt.Errorf("create queue depth gauge: %w", err)
	}
	queuePublished, err := m.meter.Int64ObservableCounter("queue.published",
		metric.WithDescription("Candidates accepted by the queue"),
		metric.WithUnit("{signal}"))
	if err != nil {
		return fmt.Errorf("create queue published counter: %w", err)
	}
	queueDropped, err := m.meter.Int64ObservableCounter("queue.dropped",
		metric.WithDescription("Candidates evicted by the overflow policy"),
		metric.WithUnit("{signal}"))
	if err != nil {
		return fmt.Errorf("create queue dropped counter: %w", err)
	}

	envAttr := metric.WithAttributes(AttrEnvironment.String(m.environment))
	_, err = m.meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		published, dropped := stats()
		observer.ObserveInt64(queueDepth, int64(depth()), envAttr)
		observer.ObserveInt64(queuePublished, int64(published), envAttr)
		observer.ObserveInt64(queueDropped, int64(dropped), envAttr)
		return nil
	}, queueDepth, queuePublished, queueDropped)
	if err != nil {
		return fmt.Errorf("register queue callback: %w", err)
	}
	return nil
}
