package screenrec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thesyncim/screenrec"

// Metrics holds the OpenTelemetry instruments of recording sessions.
type Metrics struct {
	SessionsStarted metric.Int64Counter
	SessionsFailed  metric.Int64Counter
	SessionsActive  metric.Int64UpDownCounter
	Chunks          metric.Int64Counter
	Bytes           metric.Int64Counter
	Frames          metric.Int64Counter
	Duration        metric.Float64Histogram
}

// NewMetrics creates the instruments on mp. A nil mp uses the global
// meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.SessionsStarted, err = meter.Int64Counter("screenrec.sessions.started",
		metric.WithDescription("Recording sessions that reached the recording state.")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.SessionsFailed, err = meter.Int64Counter("screenrec.sessions.failed",
		metric.WithDescription("Recording sessions that failed, by reason.")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.SessionsActive, err = meter.Int64UpDownCounter("screenrec.sessions.active",
		metric.WithDescription("Recording sessions currently recording.")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.Chunks, err = meter.Int64Counter("screenrec.recording.chunks",
		metric.WithDescription("Non-empty data chunks delivered by recorders.")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.Bytes, err = meter.Int64Counter("screenrec.recording.bytes",
		metric.WithDescription("Bytes delivered by recorders."),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.Frames, err = meter.Int64Counter("screenrec.compositor.frames",
		metric.WithDescription("Frames drawn by the compositor.")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if m.Duration, err = meter.Float64Histogram("screenrec.session.duration",
		metric.WithDescription("Length of finished recordings."),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &m, nil
}

// defaultMetrics builds instruments on the global provider, which never
// fails for the no-op provider.
func defaultMetrics() *Metrics {
	m, err := NewMetrics(nil)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) recordStart(ctx context.Context) {
	m.SessionsStarted.Add(ctx, 1)
	m.SessionsActive.Add(ctx, 1)
}

func (m *Metrics) recordFailure(ctx context.Context, reason string) {
	m.SessionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) recordEnd(ctx context.Context, d time.Duration) {
	m.SessionsActive.Add(ctx, -1)
	m.Duration.Record(ctx, d.Seconds())
}

func (m *Metrics) recordChunk(ctx context.Context, n int) {
	m.Chunks.Add(ctx, 1)
	m.Bytes.Add(ctx, int64(n))
}

// failureReason classifies err for the failed-sessions counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrCaptureUnavailable):
		return "capture_unavailable"
	case errors.Is(err, ErrNoVideoTrack):
		return "no_video_track"
	case errors.Is(err, ErrRecorderUnavailable):
		return "recorder_unavailable"
	case errors.Is(err, ErrEmptyArtifact):
		return "empty_artifact"
	case errors.Is(err, ErrRecorderRuntime):
		return "recorder_error"
	case errors.Is(err, ErrStartAborted):
		return "aborted"
	default:
		return "other"
	}
}
