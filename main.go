// Command dxsim runs a simulated DX cluster telnet node. Every connected
// client receives a stream of synthetic AK1A spot lines and can type
// commands on the same connection; own/notown switch all sessions between
// random spots and spots of the configured operator call.
package main

import (
	"errors"
	"io/fs"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"dxsim/commands"
	"dxsim/config"
	"dxsim/spot"
	"dxsim/stats"
	"dxsim/telnet"
)

// Version is reported at startup.
const Version = "1.0.0"

type cliFlags struct {
	configPath string
	envFile    string
	port       int
	own        bool
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	set := pflag.NewFlagSet("dxsim", pflag.ContinueOnError)
	set.StringVarP(&f.configPath, "config", "c", "", "config file or directory (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
	set.StringVar(&f.envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	set.IntVarP(&f.port, "port", "p", 0, "telnet port, overrides the config")
	set.BoolVar(&f.own, "own", false, "start in own-call mode")
	if err := set.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

// Purpose: Report whether stdout is a TTY.
// Key aspects: The config summary is only printed for interactive runs.
// Upstream: main startup.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from flag/env/default locations.
// Key aspects: A missing default path falls back to built-in defaults; a
// missing explicit path is an error.
// Upstream: main startup.
// Downstream: config.ResolvePath and config.Load.
func loadRuntimeConfig(flagPath string) (*config.Config, string, error) {
	path, explicit := config.ResolvePath(flagPath)
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, cfg.LoadedFrom, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if applyErr := cfg.ApplyEnv(os.LookupEnv); applyErr != nil {
			return nil, "", applyErr
		}
		if validateErr := cfg.Validate(); validateErr != nil {
			return nil, "", validateErr
		}
		cfg.LoadedFrom = "built-in defaults"
		return cfg, cfg.LoadedFrom, nil
	}
	return nil, path, err
}

// msDelay maps a config delay to server options. A zero config delay disables
// the pause, which the server expresses as a negative duration.
func msDelay(ms int) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func serverOptions(cfg *config.Config) telnet.ServerOptions {
	return telnet.ServerOptions{
		Port:             cfg.Telnet.Port,
		MaxConnections:   cfg.Telnet.MaxConnections,
		Transport:        cfg.Telnet.Transport,
		ReadChunk:        cfg.Telnet.ReadChunk,
		CommandLineLimit: cfg.Telnet.CommandLineLimit,
		NegotiationDelay: msDelay(cfg.Telnet.NegotiationDelayMS),
		WelcomeDelay:     msDelay(cfg.Telnet.WelcomeDelayMS),
		SpotInterval:     time.Duration(cfg.Telnet.SpotIntervalMS) * time.Millisecond,
		ShutdownGrace:    time.Duration(cfg.Telnet.ShutdownGraceSeconds) * time.Second,
		WelcomeLines:     cfg.Telnet.WelcomeLines,
	}
}

// Purpose: Expose the stats tracker on /metrics.
// Key aspects: Uses a private registry; listen errors are logged, not fatal.
// Upstream: main startup when metrics.address is set.
// Downstream: stats.NewCollector and promhttp.HandlerFor.
func startMetricsServer(addr string, tracker *stats.Tracker) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(stats.NewCollector(tracker))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics: server on %s stopped: %v", addr, err)
		}
	}()
	log.Printf("Metrics: serving Prometheus metrics on http://%s/metrics", addr)
	return srv
}

// formatStatsLine renders one periodic summary. Spot and command counts are
// deltas since prev; sessions and bytes are totals.
func formatStatsLine(cur, prev stats.Snapshot, mode string, latency telnet.LatencySnapshot) string {
	var b strings.Builder
	b.WriteString("Spots: ")
	b.WriteString(humanize.Comma(int64(cur.TotalSpots() - prev.TotalSpots())))
	b.WriteString(" (")
	b.WriteString(mode)
	b.WriteString(") | Sessions: ")
	b.WriteString(humanize.Comma(int64(cur.ActiveSessions())))
	b.WriteString(" active, ")
	b.WriteString(humanize.Comma(int64(cur.SessionsOpened)))
	b.WriteString(" total")
	if cur.SessionsDenied > 0 {
		b.WriteString(", ")
		b.WriteString(humanize.Comma(int64(cur.SessionsDenied)))
		b.WriteString(" rejected")
	}
	b.WriteString(" | Commands: ")
	b.WriteString(humanize.Comma(int64(sumCounts(cur.Commands) - sumCounts(prev.Commands))))
	if latency.N > 0 {
		b.WriteString(" | Spot delay p50/p99: ")
		b.WriteString(latency.P50.Round(time.Microsecond).String())
		b.WriteString("/")
		b.WriteString(latency.P99.Round(time.Microsecond).String())
	}
	b.WriteString(" | Sent: ")
	b.WriteString(humanize.Bytes(cur.BytesSent))
	b.WriteString(" | Up: ")
	b.WriteString(commands.FormatUptime(cur.Uptime))
	return b.String()
}

func sumCounts(counts map[string]uint64) uint64 {
	var total uint64
	for _, n := range counts {
		total += n
	}
	return total
}

func displayStats(interval time.Duration, tracker *stats.Tracker, mode *spot.ModeSwitch, server *telnet.Server, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := tracker.Snapshot()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cur := tracker.Snapshot()
			log.Print(formatStatsLine(cur, prev, mode.Label(), server.SpotLatency()))
			for _, line := range tracker.SnapshotLines(spot.BandNames()) {
				log.Print(line)
			}
			prev = cur
		}
	}
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Error parsing flags: %v", err)
	}

	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: error loading %s: %v", flags.envFile, err)
	}

	cfg, configSource, err := loadRuntimeConfig(flags.configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if flags.port > 0 {
		cfg.Telnet.Port = flags.port
	}
	if flags.own {
		cfg.Spots.StartOwn = true
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Logging: file sink disabled: %v", logErr)
	}

	log.Printf("%s v%s starting...", cfg.Server.Name, Version)
	log.Printf("Loaded configuration from %s", configSource)
	if isStdoutTTY() {
		cfg.Print()
	}

	startTime := time.Now()
	mode := spot.NewModeSwitch(cfg.Spots.StartOwn)
	tracker := stats.NewTracker()
	generator := spot.NewGenerator(spot.GeneratorOptions{
		OwnCall:      cfg.Spots.OwnCall,
		OwnFrequency: cfg.Spots.OwnFrequency,
		Mode:         mode,
		Rand:         spot.NewLockedRand(rand.Uint64(), rand.Uint64()),
	})
	processor := commands.NewProcessor(commands.Options{
		Mode:           mode,
		Stats:          tracker,
		StartTime:      startTime,
		OwnResponse:    cfg.Commands.OwnResponse,
		NotOwnResponse: cfg.Commands.NotOwnResponse,
	})

	server := telnet.NewServer(serverOptions(cfg), generator, processor, tracker)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start telnet server: %v", err)
	}

	var metricsServer *http.Server
	if addr := strings.TrimSpace(cfg.Metrics.Address); addr != "" {
		metricsServer = startMetricsServer(addr, tracker)
	}

	statsDone := make(chan struct{})
	go displayStats(time.Duration(cfg.Stats.DisplayIntervalSeconds)*time.Second, tracker, mode, server, statsDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Printf("Simulator is running in %s mode as %s. Press Ctrl+C to stop.", mode.Label(), generator.OwnCall())
	log.Printf("Connect via: telnet localhost %d", cfg.Telnet.Port)
	log.Println("---")

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down gracefully...")

	close(statsDone)
	server.Stop()
	if metricsServer != nil {
		_ = metricsServer.Close()
	}
	snap := tracker.Snapshot()
	log.Printf("Served %s session(s), %s spots, %s sent. Up %s.",
		humanize.Comma(int64(snap.SessionsOpened)),
		humanize.Comma(int64(snap.TotalSpots())),
		humanize.Bytes(snap.BytesSent),
		commands.FormatUptime(time.Since(startTime)))
	log.Println("Shutdown complete")
}
