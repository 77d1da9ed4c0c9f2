package shmstore

import "testing"

func TestInitRejectsInvalidConfig(t *testing.T) {
	if _, err := Init(Config{}); err == nil {
		t.Fatalf("Init with zero Config should fail validation")
	}
}

func TestInitCloseAndCollect(t *testing.T) {
	h := mustHandle(t)
	if err := h.Collect(); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	snap := h.GetTelemetry()
	if snap.Name == "" {
		t.Fatalf("expected a named root telemetry snapshot")
	}
}

func TestConnectProducesIndependentPrefixedStores(t *testing.T) {
	h := mustHandle(t)
	a := Connect[string, string](h, WithPrefix[string, string](1))
	b := Connect[string, string](h, WithPrefix[string, string](2))

	if err := a.Add("shared", "from-a"); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if mem, _ := b.Mem("shared"); mem {
		t.Fatalf("store b should not see store a's key under a different prefix")
	}
}
