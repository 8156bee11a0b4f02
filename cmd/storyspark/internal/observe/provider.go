// Package observe installs the OpenTelemetry meter provider for the CLI and
// summarizes what it recorded when a command exits.
package observe

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider owns the SDK meter provider and the reader that collects from it.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// InitProvider builds a meter provider for the named service and registers
// it as the global OTel provider. Call Shutdown when done.
func InitProvider(serviceName, serviceVersion string) (*Provider, error) {
	if serviceName == "" {
		serviceName = "storyspark"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return &Provider{mp: mp, reader: reader}, nil
}

func (p *Provider) MeterProvider() metric.MeterProvider { return p.mp }

// Stat is one data point: a counter value, or a histogram's count and sum.
type Stat struct {
	Name  string  `json:"name" yaml:"name"`
	Attrs string  `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Count uint64  `json:"count" yaml:"count"`
	Sum   float64 `json:"sum,omitempty" yaml:"sum,omitempty"`
}

// Summary collects everything recorded so far, sorted by name and
// attributes.
func (p *Provider) Summary(ctx context.Context) ([]Stat, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("observe: collect: %w", err)
	}
	var stats []Stat
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					stats = append(stats, Stat{Name: m.Name, Attrs: encode(dp.Attributes), Count: uint64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					stats = append(stats, Stat{Name: m.Name, Attrs: encode(dp.Attributes), Sum: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					stats = append(stats, Stat{Name: m.Name, Attrs: encode(dp.Attributes), Count: dp.Count, Sum: dp.Sum})
				}
			}
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Name != stats[j].Name {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].Attrs < stats[j].Attrs
	})
	return stats, nil
}

func encode(s attribute.Set) string {
	return s.Encoded(attribute.DefaultEncoder())
}

// WriteSummary prints one line per stat.
func WriteSummary(w io.Writer, stats []Stat) {
	for _, s := range stats {
		if s.Sum != 0 {
			fmt.Fprintf(w, "%s{%s} count=%d sum=%.3f\n", s.Name, s.Attrs, s.Count, s.Sum)
			continue
		}
		fmt.Fprintf(w, "%s{%s} count=%d\n", s.Name, s.Attrs, s.Count)
	}
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
