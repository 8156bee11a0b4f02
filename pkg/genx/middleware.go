package genx

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const meterName = "github.com/haivivi/storyspark/pkg/genx"

var durationBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80}

// WithRateLimit returns a Service that waits on limiter before every call to
// svc. A cancelled wait is reported as a failed generation.
func WithRateLimit(svc Service, limiter *rate.Limiter) Service {
	if limiter == nil {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, req *Request) (Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, Failed("", req.Mode, err)
		}
		return svc.Generate(ctx, req)
	})
}

// Instrument returns a Service that records a request counter and a latency
// histogram for every call to svc.
//
//	storyspark.generate.requests  {mode, status}
//	storyspark.generate.duration  {mode}
func Instrument(svc Service, mp metric.MeterProvider) (Service, error) {
	m := mp.Meter(meterName)
	requests, err := m.Int64Counter("storyspark.generate.requests",
		metric.WithDescription("Generation requests by mode and outcome."),
	)
	if err != nil {
		return nil, err
	}
	duration, err := m.Float64Histogram("storyspark.generate.duration",
		metric.WithDescription("Latency of generation requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return ServiceFunc(func(ctx context.Context, req *Request) (Response, error) {
		start := time.Now()
		resp, err := svc.Generate(ctx, req)
		mode := attribute.String("mode", req.Mode.String())
		duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(mode))
		requests.Add(ctx, 1, metric.WithAttributes(mode, attribute.String("status", statusOf(err))))
		return resp, err
	}), nil
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Status.String()
	}
	return StatusError.String()
}
