package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestInitProvider(t *testing.T) {
	p, err := InitProvider("", "v0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	if otel.GetMeterProvider() != p.MeterProvider() {
		t.Fatal("provider not registered globally")
	}

	m := otel.GetMeterProvider().Meter("test")
	requests, err := m.Int64Counter("requests")
	if err != nil {
		t.Fatal(err)
	}
	duration, err := m.Float64Histogram("duration")
	if err != nil {
		t.Fatal(err)
	}
	ok := metric.WithAttributes(attribute.String("status", "ok"))
	requests.Add(ctx, 2, ok)
	requests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
	duration.Record(ctx, 0.25)
	duration.Record(ctx, 0.5)

	stats, err := p.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Stat{
		{Name: "duration", Count: 2, Sum: 0.75},
		{Name: "requests", Attrs: "status=error", Count: 1},
		{Name: "requests", Attrs: "status=ok", Count: 2},
	}
	if len(stats) != len(want) {
		t.Fatalf("stats = %+v", stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}

	var buf bytes.Buffer
	WriteSummary(&buf, stats)
	out := buf.String()
	for _, line := range []string{
		"duration{} count=2 sum=0.750",
		"requests{status=ok} count=2",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("summary missing %q:\n%s", line, out)
		}
	}
}

func TestSummaryAfterShutdown(t *testing.T) {
	p, err := InitProvider("storyspark", "dev")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Summary(ctx); err == nil {
		t.Fatal("Summary after Shutdown succeeded")
	}
}
