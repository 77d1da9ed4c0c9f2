package main

// dataset_gen.go is a tiny helper utility to generate deterministic
// namespaced key datasets for standalone benchmarking of shmstore (outside
// `go test`). Each line is a uint64 user key together with the MD5 digest
// internal/keydom would compute for it under the given prefix, so a
// benchmark driver can replay the exact same digests without re-deriving
// them.
//
// Usage:
//
//	go run ./tools/dataset_gen -n 1000000 -dist=zipf -seed=42 -prefix=1 -out keys.tsv
//
// Flags:
//
//	-n       number of keys to generate (default 1e6)
//	-dist    distribution: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1)  (default 1.2)
//	-zipfv   Zipf v parameter (>=1) (default 1.0)
//	-seed    RNG seed (default current time)
//	-prefix  key-domain prefix passed to keydom.Make (default 1)
//	-out     output file (default stdout)
//
// The output pairs each digest with its raw key because shmstore's
// storage key is always a namespaced digest, not a bare integer.
//
// © 2025 shmstore authors. MIT License.

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/Voskan/shmstore/internal/keydom"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of keys to generate")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		prefix  = flag.Uint64("prefix", 1, "key-domain prefix")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var gen func() uint64
	switch *dist {
	case "uniform":
		gen = rnd.Uint64
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1.0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, ^uint64(0))
		gen = z.Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	p := uint32(*prefix)
	for i := 0; i < *n; i++ {
		k := gen()
		key, err := keydom.Make[uint64](p, k)
		if err != nil {
			fmt.Fprintln(os.Stderr, "keydom.Make:", err)
			os.Exit(1)
		}
		digest := key.Digest()
		fmt.Fprintln(w, strconv.FormatUint(k, 10)+"\t"+hex.EncodeToString(digest[:]))
	}
}
