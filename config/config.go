// Package config loads the simulator's YAML runtime configuration. A config
// path may name a single file or a directory; in the latter case every
// *.yaml/*.yml file is merged in lexical order, later files overriding
// earlier keys. Keys absent from every file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dxsim/spot"
)

const (
	// DefaultConfigPath is used when neither --config nor DXSIM_CONFIG_PATH is set.
	DefaultConfigPath = "data/config"

	EnvConfigPath = "DXSIM_CONFIG_PATH"
	EnvTelnetPort = "DXSIM_TELNET_PORT"
	EnvOwnCall    = "DXSIM_OWN_CALL"

	maxReadChunk = 64 * 1024
)

// Config represents the complete simulator configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Telnet   TelnetConfig   `yaml:"telnet"`
	Spots    SpotsConfig    `yaml:"spots"`
	Commands CommandsConfig `yaml:"commands"`
	Stats    StatsConfig    `yaml:"stats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`

	// LoadedFrom is the file or directory the config was read from.
	LoadedFrom string `yaml:"-"`
}

// ServerConfig contains general server settings
type ServerConfig struct {
	Name string `yaml:"name"`
}

// TelnetConfig contains telnet server settings. Delays of zero disable the
// corresponding pause.
type TelnetConfig struct {
	Port                 int      `yaml:"port"`
	MaxConnections       int      `yaml:"max_connections"`
	Transport            string   `yaml:"transport"`
	ReadChunk            int      `yaml:"read_chunk"`
	CommandLineLimit     int      `yaml:"command_line_limit"`
	NegotiationDelayMS   int      `yaml:"negotiation_delay_ms"`
	WelcomeDelayMS       int      `yaml:"welcome_delay_ms"`
	SpotIntervalMS       int      `yaml:"spot_interval_ms"`
	ShutdownGraceSeconds int      `yaml:"shutdown_grace_seconds"`
	WelcomeLines         []string `yaml:"welcome_lines"`
}

// SpotsConfig controls the spot generator.
type SpotsConfig struct {
	OwnCall      string `yaml:"own_call"`
	OwnFrequency string `yaml:"own_frequency"`
	StartOwn     bool   `yaml:"start_own"`
}

// CommandsConfig overrides command response texts.
type CommandsConfig struct {
	OwnResponse    string `yaml:"own_response"`
	NotOwnResponse string `yaml:"notown_response"`
}

// StatsConfig controls the periodic console stats line.
type StatsConfig struct {
	DisplayIntervalSeconds int `yaml:"display_interval_seconds"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig contains logging settings. An empty File keeps logs on the
// console only.
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Name: "DX Spot Simulator"},
		Telnet: TelnetConfig{
			Port:                 2323,
			Transport:            "native",
			ReadChunk:            1024,
			CommandLineLimit:     256,
			NegotiationDelayMS:   500,
			WelcomeDelayMS:       1000,
			SpotIntervalMS:       125,
			ShutdownGraceSeconds: 3,
		},
		Spots: SpotsConfig{
			OwnCall:      spot.DefaultOwnCall,
			OwnFrequency: spot.DefaultOwnFrequency,
		},
		Stats: StatsConfig{DisplayIntervalSeconds: 30},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// ResolvePath picks the config location: an explicit flag value wins, then
// DXSIM_CONFIG_PATH, then DefaultConfigPath. explicit reports whether the
// operator asked for this path.
func ResolvePath(flagValue string) (path string, explicit bool) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(os.Getenv(EnvConfigPath)); v != "" {
		return v, true
	}
	return DefaultConfigPath, false
}

// Load reads the configuration at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	files, err := configFiles(path)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
		mergeMaps(merged, doc)
	}

	cfg := Default()
	if len(merged) > 0 {
		data, err := yaml.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	cfg.LoadedFrom = path

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files in config directory %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// mergeMaps folds src into dst, recursing into nested mappings.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

// ApplyEnv overrides the telnet port and operator call from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTelnetPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTelnetPort, err)
		}
		c.Telnet.Port = port
	}
	if v, ok := lookup(EnvOwnCall); ok && strings.TrimSpace(v) != "" {
		c.Spots.OwnCall = v
	}
	return nil
}

// Validate normalizes fields and rejects values the simulator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	t := &c.Telnet
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Errorf("telnet.port %d out of range", t.Port))
	}
	if t.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("telnet.max_connections must be >= 0"))
	}
	t.Transport = strings.ToLower(strings.TrimSpace(t.Transport))
	if t.Transport == "" {
		t.Transport = "native"
	}
	if t.Transport != "native" && t.Transport != "ziutek" {
		errs = append(errs, fmt.Errorf("telnet.transport %q must be native or ziutek", t.Transport))
	}
	if t.ReadChunk <= 0 || t.ReadChunk > maxReadChunk {
		errs = append(errs, fmt.Errorf("telnet.read_chunk must be in 1..%d", maxReadChunk))
	}
	if t.CommandLineLimit <= 0 {
		errs = append(errs, fmt.Errorf("telnet.command_line_limit must be > 0"))
	}
	if t.NegotiationDelayMS < 0 || t.WelcomeDelayMS < 0 || t.ShutdownGraceSeconds < 0 {
		errs = append(errs, fmt.Errorf("telnet delays must be >= 0"))
	}
	if t.SpotIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("telnet.spot_interval_ms must be > 0"))
	}

	c.Spots.OwnCall = spot.NormalizeCallsign(c.Spots.OwnCall)
	if !spot.IsValidOperatorCall(c.Spots.OwnCall) {
		errs = append(errs, fmt.Errorf("spots.own_call %q is not a valid callsign", c.Spots.OwnCall))
	}
	c.Spots.OwnFrequency = strings.TrimSpace(c.Spots.OwnFrequency)
	if freq, err := strconv.ParseFloat(c.Spots.OwnFrequency, 64); err != nil || freq <= 0 {
		errs = append(errs, fmt.Errorf("spots.own_frequency %q must be a positive kHz value", c.Spots.OwnFrequency))
	} else {
		c.Spots.OwnFrequency = strconv.FormatFloat(freq, 'f', 1, 64)
	}

	if c.Stats.DisplayIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("stats.display_interval_seconds must be >= 0"))
	}
	l := c.Logging
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("logging rotation limits must be >= 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Server: %s (config %s)\n", c.Server.Name, c.LoadedFrom)
	maxDesc := "unlimited"
	if c.Telnet.MaxConnections > 0 {
		maxDesc = strconv.Itoa(c.Telnet.MaxConnections)
	}
	fmt.Printf("Telnet: port %d (transport=%s, max connections=%s)\n", c.Telnet.Port, c.Telnet.Transport, maxDesc)
	fmt.Printf("Timing: negotiate %dms, welcome %dms, spot every %dms\n",
		c.Telnet.NegotiationDelayMS, c.Telnet.WelcomeDelayMS, c.Telnet.SpotIntervalMS)
	mode := "random"
	if c.Spots.StartOwn {
		mode = "own"
	}
	fmt.Printf("Spots: own call %s on %s kHz (start mode %s)\n", c.Spots.OwnCall, c.Spots.OwnFrequency, mode)
	if c.Metrics.Address != "" {
		fmt.Printf("Metrics: %s/metrics\n", c.Metrics.Address)
	}
	if c.Logging.File != "" {
		fmt.Printf("Log file: %s (%d MB x %d)\n", c.Logging.File, c.Logging.MaxSizeMB, c.Logging.MaxBackups)
	}
}
