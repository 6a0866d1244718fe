package main

import (
	"strings"
	"testing"
	"time"

	"dxsim/config"
	"dxsim/stats"
	"dxsim/telnet"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"--config", "cfg.yaml", "-p", "2400", "--own"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.configPath != "cfg.yaml" || f.port != 2400 || !f.own || f.envFile != ".env" {
		t.Fatalf("unexpected flags %+v", f)
	}
	if _, err := parseFlags([]string{"--bogus"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestServerOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telnet.NegotiationDelayMS = 0
	cfg.Telnet.Transport = "ziutek"
	opts := serverOptions(cfg)
	if opts.NegotiationDelay >= 0 {
		t.Fatalf("zero config delay should disable the pause, got %s", opts.NegotiationDelay)
	}
	if opts.WelcomeDelay != time.Second || opts.SpotInterval != 125*time.Millisecond {
		t.Fatalf("unexpected timing %s %s", opts.WelcomeDelay, opts.SpotInterval)
	}
	if opts.Port != 2323 || opts.Transport != "ziutek" || opts.ReadChunk != 1024 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestLoadRuntimeConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvConfigPath, "")
	cfg, source, err := loadRuntimeConfig("")
	if err != nil {
		t.Fatalf("loadRuntimeConfig: %v", err)
	}
	if source != "built-in defaults" || cfg.Telnet.Port != 2323 {
		t.Fatalf("expected defaults, got %s port=%d", source, cfg.Telnet.Port)
	}
	if _, _, err := loadRuntimeConfig("missing.yaml"); err == nil {
		t.Fatalf("explicit missing config must fail")
	}
}

func TestFormatStatsLine(t *testing.T) {
	prev := stats.Snapshot{RandomSpots: 1000, Commands: map[string]uint64{"help": 1}}
	cur := stats.Snapshot{
		RandomSpots:    3500,
		OwnSpots:       100,
		SessionsOpened: 3,
		SessionsClosed: 1,
		Commands:       map[string]uint64{"help": 2, "own": 1},
		BytesSent:      2_000_000,
		Uptime:         90 * time.Second,
	}
	latency := telnet.LatencySnapshot{P50: 150 * time.Microsecond, P99: 2 * time.Millisecond, N: 10}
	got := formatStatsLine(cur, prev, "random", latency)
	for _, want := range []string{"Spots: 2,600 (random)", "Spot delay p50/p99: 150µs/2ms", "Sessions: 2 active, 3 total", "Commands: 2", "Sent: 2.0 MB", "Up: 0d 0h 1m 30s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats line %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "rejected") {
		t.Fatalf("rejected count should be omitted when zero: %q", got)
	}
	if quiet := formatStatsLine(cur, prev, "own", telnet.LatencySnapshot{}); strings.Contains(quiet, "Spot delay") {
		t.Fatalf("latency should be omitted without samples: %q", quiet)
	}
}
