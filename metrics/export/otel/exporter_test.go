package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	authport "github.com/quvio/authport"
)

type fakeSource struct {
	snapshot authport.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authport.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	return rm
}

func counterValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				return 0, false
			}
			return sum.DataPoints[0].Value, true
		}
	}
	return 0, false
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := &fakeSource{
		snapshot: authport.MetricsSnapshot{
			Counters: map[authport.MetricID]uint64{
				authport.MetricLoginSuccess:       5,
				authport.MetricTokenVerifyFailure: 2,
			},
		},
		dropped: 1,
	}

	exporter, err := NewOTelExporterFromSource(provider.Meter("authport-test"), source)
	if err != nil {
		t.Fatalf("exporter creation failed: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	rm := collect(t, reader)

	cases := map[string]int64{
		"authport_login_success_total":        5,
		"authport_token_verify_failure_total": 2,
		"authport_audit_dropped_total":        1,
	}
	for name, want := range cases {
		got, ok := counterValue(rm, name)
		if !ok {
			t.Errorf("metric %s not collected", name)
			continue
		}
		if got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterNilArguments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Errorf("nil meter error = %v", err)
	}
	if _, err := NewOTelExporterFromSource(provider.Meter("x"), nil); err != ErrNilSource {
		t.Errorf("nil source error = %v", err)
	}

	var closed *OTelExporter
	if err := closed.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := &fakeSource{
		snapshot: authport.MetricsSnapshot{
			Counters: map[authport.MetricID]uint64{authport.MetricLoginSuccess: 9},
		},
	}
	exporter, err := NewOTelExporterFromSource(provider.Meter("authport-test"), source)
	if err != nil {
		t.Fatal(err)
	}

	rm := collect(t, reader)
	if v, ok := counterValue(rm, "authport_login_success_total"); !ok || v != 9 {
		t.Fatalf("pre-close value = %d, %v", v, ok)
	}

	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rm = collect(t, reader)
	if _, ok := counterValue(rm, "authport_login_success_total"); ok {
		t.Error("closed exporter still observed")
	}
}
