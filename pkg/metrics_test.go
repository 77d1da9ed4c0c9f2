package shmstore

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsSinkNilRegistryIsNoop(t *testing.T) {
	sink := newMetricsSink(nil)
	if _, ok := sink.(noopMetrics); !ok {
		t.Fatalf("nil registry should yield noopMetrics, got %T", sink)
	}
	// Must be safe to call with no registry backing it.
	sink.incHit("t")
	sink.incMiss("t")
	sink.incAdd("t")
	sink.incRemove("t")
	sink.incOldify("t")
	sink.incRevive("t")
	sink.incCollect()
	sink.setHeapGauges(1, 2, 3, 4)
}

func TestNewMetricsSinkRegistersPromCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := newMetricsSink(reg)
	pm, ok := sink.(*promMetrics)
	if !ok {
		t.Fatalf("non-nil registry should yield *promMetrics, got %T", sink)
	}
	pm.incHit("widget")
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "shmstore_cache_hits_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected shmstore_cache_hits_total to be registered")
	}
}

func TestHandleWiresRegistryIntoMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.Registry = reg
	h, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	s := Connect[string, string](h, WithTypeTag[string, string]("thing"))
	if err := s.Add("k", "v"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Get("k"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}
}
