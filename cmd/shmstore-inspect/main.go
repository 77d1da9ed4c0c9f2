package main

// main.go implements the shmstore inspector CLI: it fetches the structured
// telemetry snapshot from a target process's debug endpoint and prints it
// either as an indented tree or raw JSON. It also supports periodic watch
// mode and pprof snapshot download.
//
// The target Go service is expected to expose:
//   - GET /debug/shmstore/snapshot     – JSON-encoded telemetry.Snapshot
//   - GET /debug/pprof/{heap,goroutine} – standard pprof handlers (net/http/pprof)
//
// The CLI lives in the same module as the library it inspects, so it
// decodes straight into telemetry.Snapshot rather than a loosely-typed
// map — there is no separate release to skew against.
//
// © 2025 shmstore authors. MIT License.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Voskan/shmstore/internal/telemetry"
)

var version = "dev"

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.heapProfile != "" {
		if err := downloadProfile(ctx, opts.target, "heap", opts.heapProfile); err != nil {
			fatal(err)
		}
		return
	}
	if opts.goroutineProfile != "" {
		if err := downloadProfile(ctx, opts.target, "goroutine", opts.goroutineProfile); err != nil {
			fatal(err)
		}
		return
	}

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printTree(snap, 0)
	return nil
}

func fetchSnapshot(ctx context.Context, base string) (telemetry.Snapshot, error) {
	url := base + "/debug/shmstore/snapshot"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return telemetry.Snapshot{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return telemetry.Snapshot{}, fmt.Errorf("unexpected status %s", res.Status)
	}
	var snap telemetry.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return telemetry.Snapshot{}, err
	}
	return snap, nil
}

func printTree(s telemetry.Snapshot, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s  count=%d bytes=%d\n", indent, s.Name, s.Count, s.Bytes)
	for _, child := range s.Nested {
		printTree(child, depth+1)
	}
}

func downloadProfile(ctx context.Context, base, name, path string) error {
	url := fmt.Sprintf("%s/debug/pprof/%s", base, name)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return err
	}
	fmt.Printf("%s profile saved to %s\n", name, path)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "shmstore-inspect:", err)
	os.Exit(1)
}
