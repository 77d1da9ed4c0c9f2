package oldnew

import (
	"errors"
	"testing"

	"github.com/Voskan/shmstore/internal/keydom"
	"github.com/Voskan/shmstore/internal/overlay"
)

type memBelow struct {
	m map[keydom.Key]string
}

func newMemBelow() *memBelow { return &memBelow{m: make(map[keydom.Key]string)} }

func (b *memBelow) Mem(k keydom.Key) (bool, error) {
	_, ok := b.m[k]
	return ok, nil
}

func (b *memBelow) Get(k keydom.Key) (string, error) {
	v, ok := b.m[k]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (b *memBelow) Add(k keydom.Key, v string) (bool, error) {
	if _, ok := b.m[k]; ok {
		return false, nil
	}
	b.m[k] = v
	return true, nil
}

func (b *memBelow) Remove(k keydom.Key) error {
	if _, ok := b.m[k]; !ok {
		return errors.New("not found")
	}
	delete(b.m, k)
	return nil
}

func newView() *View[string, string] {
	below := newMemBelow()
	stack := overlay.New[keydom.Key, string](below)
	return New[string, string](1, stack)
}

func TestOldifyAndRevive(t *testing.T) {
	v := newView()
	if err := v.Add("k", "val"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := v.Oldify("k"); err != nil {
		t.Fatalf("Oldify: %v", err)
	}
	if mem, _ := v.Mem("k"); mem {
		t.Fatalf("k should not be visible in new namespace after Oldify")
	}
	got, err := v.GetOld("k")
	if err != nil || got != "val" {
		t.Fatalf("GetOld = %q, %v", got, err)
	}

	if err := v.Revive("k"); err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if mem, _ := v.MemOld("k"); mem {
		t.Fatalf("k should not be visible in old namespace after Revive")
	}
	got2, err := v.Get("k")
	if err != nil || got2 != "val" {
		t.Fatalf("Get after Revive = %q, %v", got2, err)
	}
}

func TestReviveRemovesExistingNewBinding(t *testing.T) {
	v := newView()
	if err := v.Add("k", "original"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := v.Oldify("k"); err != nil {
		t.Fatalf("Oldify: %v", err)
	}
	if err := v.Add("k", "newer"); err != nil {
		t.Fatalf("Add (after oldify): %v", err)
	}
	if err := v.Revive("k"); err != nil {
		t.Fatalf("Revive: %v", err)
	}
	got, err := v.Get("k")
	if err != nil || got != "original" {
		t.Fatalf("Get after Revive = %q, %v; want original old value restored", got, err)
	}
}

func TestBatchOperationsArePerElement(t *testing.T) {
	v := newView()
	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		if err := v.Add(k, "v-"+k); err != nil {
			t.Fatalf("Add(%s): %v", k, err)
		}
	}
	errs := v.OldifyBatch(keys)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("OldifyBatch[%d]: %v", i, err)
		}
	}
	vals, errs := v.GetOldBatch(keys)
	for i, k := range keys {
		if errs[i] != nil || vals[i] != "v-"+k {
			t.Fatalf("GetOldBatch[%d] = %q, %v", i, vals[i], errs[i])
		}
	}

	// One bad key among good ones should not abort the others.
	mixed := []string{"a", "missing", "b"}
	_, errs = v.GetOldBatch(mixed)
	if errs[1] == nil {
		t.Fatalf("expected error for missing key")
	}
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("good keys should not be affected by a bad key in the batch")
	}
}
