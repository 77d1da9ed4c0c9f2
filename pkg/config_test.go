package shmstore

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid", testConfig(), nil},
		{"zero heap", Config{HashTablePow: 1, DepTablePow: 1}, errInvalidHeapSize},
		{"zero hash pow", Config{HeapSize: 1, DepTablePow: 1}, errInvalidHashTablePow},
		{"zero dep pow", Config{HeapSize: 1, HashTablePow: 1}, errInvalidDepTablePow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.validate(); !errors.Is(err, tc.want) {
				t.Fatalf("validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOptionsApply(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h,
		WithPrefix[string, string](9),
		WithTypeTag[string, string]("widget"),
		WithL1Capacity[string, string](16),
		WithL2Capacity[string, string](32),
	)
	if s.typeTag != "widget" {
		t.Fatalf("typeTag = %q, want widget", s.typeTag)
	}
	if s.prefixFor() != 9 {
		t.Fatalf("prefix = %d, want 9", s.prefixFor())
	}
}

func TestOptionsIgnoreInvalidOverrides(t *testing.T) {
	h := mustHandle(t)
	// Zero/empty overrides must be ignored, keeping the defaults.
	s := Connect[string, string](h,
		WithTypeTag[string, string](""),
		WithL1Capacity[string, string](0),
		WithL2Capacity[string, string](-1),
	)
	if s.typeTag != "value" {
		t.Fatalf("typeTag = %q, want default value", s.typeTag)
	}
}
