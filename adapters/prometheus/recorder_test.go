package prometheus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountsWithFixedLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"operation": "provision_location", "status": "failure", "step": "exchange_token", "ignored": "x"}
	recorder.IncCounter(ctx, "provisioning.provision_location.total", 1, tags)
	recorder.IncCounter(ctx, "provisioning.provision_location.total", 2, tags)

	counter := recorder.counter("provisioning.provision_location.total")
	got := testutil.ToFloat64(counter.WithLabelValues("provision_location", "failure", "", "exchange_token", "", ""))
	if got != 3 {
		t.Fatalf("expected counter value 3, got %v", got)
	}
	if count := testutil.CollectAndCount(registry, "provisioning_provision_location_total"); count != 1 {
		t.Fatalf("expected one series, got %d", count)
	}
}

func TestRecorder_HistogramsUseMillisecondBuckets(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry, WithNamespace("ghl"))

	recorder.ObserveHistogram(context.Background(), "provisioning.bulk_install.duration_ms", 42, map[string]string{"status": "success"})

	if count := testutil.CollectAndCount(registry, "ghl_provisioning_bulk_install_duration_ms"); count != 1 {
		t.Fatalf("expected namespaced histogram series, got %d", count)
	}
}

func TestRecorder_SharesCollectorsAcrossInstances(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	ctx := context.Background()

	first.IncCounter(ctx, "provisioning.webhook.signature_skipped", 1, map[string]string{"missing": "public_key"})
	second.IncCounter(ctx, "provisioning.webhook.signature_skipped", 1, map[string]string{"missing": "public_key"})

	got := testutil.ToFloat64(first.counter("provisioning.webhook.signature_skipped").WithLabelValues("", "", "", "", "", "public_key"))
	if got != 2 {
		t.Fatalf("expected both recorders to share the collector, got %v", got)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"provisioning.webhook_dispatch.total": "provisioning_webhook_dispatch_total",
		" 9lives ":                            "_9lives",
		"a-b.c":                               "a_b_c",
		"...":                                 "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var recorder *Recorder
	recorder.IncCounter(context.Background(), "x", 1, nil)
	recorder.ObserveHistogram(context.Background(), "x", 1, nil)
}
