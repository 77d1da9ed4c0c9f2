// Package bench provides reproducible micro-benchmarks for shmstore.
// Run via:  go test ./bench -bench=. -benchmem
//
// The benchmarks intentionally use a single key/value shape so results are
// comparable across versions:
//   - Key   – uint64 (cheap to stringify, fits a register)
//   - Value – 64-byte struct (large enough to matter, small enough for cache)
//
// We measure:
//  1. Add               – write-through workload
//  2. Get                – read-only workload (after warm-up)
//  3. GetOrLoad           – 90% hits, 10% misses with loader cost
//  4. OverlayPushCommit   – push/add/commit churn on the overlay stack
//  5. FreqCacheChurn      – repeated Add past 2C to exercise collect()
//
// A single CachedStore is not safe for concurrent callers (within a
// single process all operations are synchronous and single-threaded), so
// these benchmarks are all single-goroutine; cross-process/worker
// throughput is a deployment concern this package does not model.
//
// NOTE: unit tests live in package _test.go files; this file is only for
// performance.
//
// © 2025 shmstore authors. MIT License.

package bench

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/Voskan/shmstore/internal/localcache"
	shmstore "github.com/Voskan/shmstore/pkg"
)

type value64 struct {
	Pad [64]byte
}

const keys = 1 << 16 // 64K keys for dataset

func newTestHandle(b *testing.B) (*shmstore.Handle, *shmstore.CachedStore[uint64, value64]) {
	b.Helper()
	cfg := shmstore.DefaultConfig()
	cfg.HeapSize = 64 << 20
	h, err := shmstore.Init(cfg)
	if err != nil {
		b.Fatalf("Init: %v", err)
	}
	store := shmstore.Connect[uint64, value64](h)
	return h, store
}

var ds = func() []uint64 {
	r := rand.New(rand.NewSource(42))
	arr := make([]uint64, keys)
	for i := range arr {
		arr[i] = r.Uint64()
	}
	return arr
}()

func BenchmarkAdd(b *testing.B) {
	h, store := newTestHandle(b)
	defer h.Close()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		_ = store.Add(key, val)
	}
}

func BenchmarkGet(b *testing.B) {
	h, store := newTestHandle(b)
	defer h.Close()
	val := value64{}
	for _, k := range ds {
		_ = store.Add(k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		_, _ = store.Get(k)
	}
}

func BenchmarkGetOrLoad(b *testing.B) {
	h, store := newTestHandle(b)
	defer h.Close()
	val := value64{}
	for i, k := range ds {
		if i%10 != 0 { // 90% fill
			_ = store.Add(k, val)
		}
	}
	var loaderCnt atomic.Uint64
	loader := func(ctx context.Context, key uint64) (value64, error) {
		loaderCnt.Add(1)
		return val, nil
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		_, _ = store.GetOrLoad(context.Background(), k, loader)
	}
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}

func BenchmarkOverlayPushCommit(b *testing.B) {
	h, store := newTestHandle(b)
	defer h.Close()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		store.PushStack()
		_ = store.Add(k, val)
		_ = store.CommitAll()
		store.PopStack()
	}
}

func BenchmarkFreqCacheChurn(b *testing.B) {
	fc := localcache.NewFreqCache[uint64, value64](1024, nil)
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		fc.Add(k, val)
	}
}
