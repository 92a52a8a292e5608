// Package config centralizes the non-functional constants the
// specification names (debounce sampling, settle delays, capacity caps)
// so they can be tuned via an optional YAML sidecar file or environment
// variables without touching code that depends on them, mirroring the way
// the teacher's daemon reads MUTAGEN_DAEMON_TCP_PORT from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds every tunable constant named by the specification. All
// fields have documented defaults; the YAML file and environment
// variables may only override them, never change their meaning.
type Config struct {
	// SocketName is the well-known local IPC endpoint name (§6).
	SocketName string `yaml:"socket_name"`

	// HashBufferSize is the read buffer size used by the digest engine
	// (§4.1, "reads in buffers of ~1 MiB").
	HashBufferSize int `yaml:"hash_buffer_size"`

	// SettleDelay is the brief delay applied before processing an Added or
	// Modified file event, to avoid hashing a partially-written file
	// (§4.6).
	SettleDelay time.Duration `yaml:"-"`
	SettleDelayMS int64 `yaml:"settle_delay_ms"`

	// DebouncePollInterval is the sampling interval used by the
	// directory-stability debouncer (§4.6).
	DebouncePollInterval time.Duration `yaml:"-"`
	DebouncePollIntervalMS int64 `yaml:"debounce_poll_interval_ms"`

	// DebounceStableSamples is the number of consecutive stable samples
	// required to declare a new directory quiesced (§4.6).
	DebounceStableSamples int `yaml:"debounce_stable_samples"`

	// DebounceTimeout is the hard timeout after which enumeration proceeds
	// regardless of stability (§4.6).
	DebounceTimeout time.Duration `yaml:"-"`
	DebounceTimeoutMS int64 `yaml:"debounce_timeout_ms"`

	// ReplaySpacing is the delay between successive group replays sent to
	// a newly connected client (§4.7).
	ReplaySpacing time.Duration `yaml:"-"`
	ReplaySpacingMS int64 `yaml:"replay_spacing_ms"`

	// MaxGroups is the maximum number of resident duplicate groups (§6).
	MaxGroups int `yaml:"max_groups"`

	// MaxRecordsPerGroup is the maximum number of records per group (§6).
	MaxRecordsPerGroup int `yaml:"max_records_per_group"`

	// LogLevel names the console verbosity threshold (one of the names
	// logging.NameToLevel accepts: "disabled", "error", "warn", "info",
	// "debug"). It is resolved into a logging.Level by the caller, since
	// this package has no reason to depend on internal/logging.
	LogLevel string `yaml:"log_level"`
}

// Default returns the specification's documented defaults.
func Default() *Config {
	c := &Config{
		SocketName:             "ddas_ipc",
		HashBufferSize:         1 << 20,
		SettleDelayMS:          100,
		DebouncePollIntervalMS: 100,
		DebounceStableSamples:  3,
		DebounceTimeoutMS:      60_000,
		ReplaySpacingMS:        50,
		MaxGroups:              100,
		MaxRecordsPerGroup:     100,
		LogLevel:               "info",
	}
	c.resolveDurations()
	return c
}

// resolveDurations converts the millisecond fields (the ones that survive
// YAML round-tripping cleanly) into time.Duration values used by the rest
// of the program.
func (c *Config) resolveDurations() {
	c.SettleDelay = time.Duration(c.SettleDelayMS) * time.Millisecond
	c.DebouncePollInterval = time.Duration(c.DebouncePollIntervalMS) * time.Millisecond
	c.DebounceTimeout = time.Duration(c.DebounceTimeoutMS) * time.Millisecond
	c.ReplaySpacing = time.Duration(c.ReplaySpacingMS) * time.Millisecond
}

// LoadFile loads and merges a YAML configuration file on top of the
// defaults. A missing file is not an error: the defaults are used as-is.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "unable to read configuration file")
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}
	cfg.resolveDurations()
	return cfg, nil
}

// ApplyEnv loads an optional .env file (if present) and then overrides any
// matching DDAS_* environment variables onto the configuration.
func (c *Config) ApplyEnv(envPath string) error {
	_ = godotenv.Load(envPath)

	if v, ok := os.LookupEnv("DDAS_SOCKET_NAME"); ok {
		c.SocketName = v
	}
	if v, ok := os.LookupEnv("DDAS_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupInt("DDAS_SETTLE_DELAY_MS"); ok {
		c.SettleDelayMS = v
	}
	if v, ok := lookupInt("DDAS_DEBOUNCE_POLL_INTERVAL_MS"); ok {
		c.DebouncePollIntervalMS = v
	}
	if v, ok := lookupInt("DDAS_DEBOUNCE_STABLE_SAMPLES"); ok {
		c.DebounceStableSamples = int(v)
	}
	if v, ok := lookupInt("DDAS_DEBOUNCE_TIMEOUT_MS"); ok {
		c.DebounceTimeoutMS = v
	}
	if v, ok := lookupInt("DDAS_REPLAY_SPACING_MS"); ok {
		c.ReplaySpacingMS = v
	}
	if v, ok := lookupInt("DDAS_MAX_GROUPS"); ok {
		c.MaxGroups = int(v)
	}
	if v, ok := lookupInt("DDAS_MAX_RECORDS_PER_GROUP"); ok {
		c.MaxRecordsPerGroup = int(v)
	}

	c.resolveDurations()
	return nil
}

func lookupInt(name string) (int64, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
