package main

// flags.go supplies parseFlags/options for the inspector CLI.
//
// © 2025 shmstore authors. MIT License.

import (
	"flag"
	"time"
)

type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.target, "target", "http://localhost:6060", "base URL of the process exposing /debug/shmstore/snapshot")
	flag.BoolVar(&o.json, "json", false, "print the raw telemetry snapshot as JSON instead of a table")
	flag.BoolVar(&o.watch, "watch", false, "poll the snapshot endpoint repeatedly instead of a single fetch")
	flag.DurationVar(&o.interval, "interval", 2*time.Second, "polling interval used with -watch")
	flag.StringVar(&o.heapProfile, "heap-profile", "", "download a heap pprof profile to this path instead of fetching a snapshot")
	flag.StringVar(&o.goroutineProfile, "goroutine-profile", "", "download a goroutine pprof profile to this path instead of fetching a snapshot")
	flag.BoolVar(&o.version, "version", false, "print the build version and exit")
	flag.Parse()
	return o
}
