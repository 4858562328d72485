// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads and validates historyd's YAML configuration file.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for historyd.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	History       HistoryConfig       `yaml:"history"`
	Backend       BackendConfig       `yaml:"backend"`
	Logging       LoggingConfig       `yaml:"logging"`
	Admission     AdmissionConfig     `yaml:"admission"`
	Timestamp     TimestampConfig     `yaml:"timestamp"`
	Eviction      EvictionConfig      `yaml:"eviction"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the TCP listener address.
type ServerConfig struct {
	Listen string `yaml:"listen"` // default ":9000"
}

// HistoryConfig sizes the circular write-history used by the
// history-backed store.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"` // default 10
}

// BackendConfig selects and configures the BackingStore implementation.
// The backend is a runtime config choice rather than a build-time one, so
// it can be swapped in tests without recompiling.
type BackendConfig struct {
	Kind string `yaml:"kind"` // "mmap" (default) | "history" | "chardevice"

	FilePath   string `yaml:"file_path"`   // mmap backend: default "/var/tmp/historydata"
	DevicePath string `yaml:"device_path"` // chardevice backend: e.g. "/dev/aesdchar"

	// Preallocate, when set, pre-extends the mmap backend's file to at
	// least this many bytes at startup (human-readable: "64kb", "1mb").
	Preallocate    string `yaml:"preallocate"`
	PreallocateRaw int64  `yaml:"-"`
}

// LoggingConfig controls the slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error, default info
	Format string `yaml:"format"` // json|text, default json
}

// AdmissionConfig bounds the rate at which the supervisor accepts new
// connections (global, not a per-client quota — see internal/admission).
type AdmissionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ConnectionsPerSec float64 `yaml:"connections_per_sec"` // default 200
	Burst             int     `yaml:"burst"`               // default 50
}

// TimestampConfig controls the optional periodic timestamp-injector writer.
type TimestampConfig struct {
	Enabled bool   `yaml:"enabled"` // default false: disabled unless explicitly turned on
	Spec    string `yaml:"spec"`    // cron spec, default "@every 10s"
}

// EvictionConfig controls optional archival of evicted entries to S3.
type EvictionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix"`
}

// ObservabilityConfig controls the optional metrics/health/snapshot HTTP
// surface, gated by a deny-by-default CIDR allowlist.
type ObservabilityConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Listen       string   `yaml:"listen"` // default "127.0.0.1:9848"
	AllowOrigins []string `yaml:"allow_origins"`

	ParsedCIDRs []netip.Prefix `yaml:"-"`
}

// Load reads, parses, and validates path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Listen == "" {
		c.Server.Listen = ":9000"
	}

	if c.History.Capacity <= 0 {
		c.History.Capacity = 10
	}

	switch c.Backend.Kind {
	case "":
		c.Backend.Kind = "mmap"
	case "mmap", "history", "chardevice":
	default:
		return fmt.Errorf("backend.kind must be mmap, history, or chardevice, got %q", c.Backend.Kind)
	}
	if c.Backend.Kind == "mmap" && c.Backend.FilePath == "" {
		c.Backend.FilePath = "/var/tmp/historydata"
	}
	if c.Backend.Kind == "chardevice" && c.Backend.DevicePath == "" {
		return fmt.Errorf("backend.device_path is required when backend.kind is chardevice")
	}
	if c.Backend.Preallocate != "" {
		parsed, err := ParseByteSize(c.Backend.Preallocate)
		if err != nil {
			return fmt.Errorf("backend.preallocate: %w", err)
		}
		c.Backend.PreallocateRaw = parsed
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Admission.Enabled {
		if c.Admission.ConnectionsPerSec <= 0 {
			c.Admission.ConnectionsPerSec = 200
		}
		if c.Admission.Burst <= 0 {
			c.Admission.Burst = 50
		}
	}

	if c.Timestamp.Enabled && c.Timestamp.Spec == "" {
		c.Timestamp.Spec = "@every 10s"
	}

	if c.Eviction.Enabled {
		if c.Eviction.Bucket == "" {
			return fmt.Errorf("eviction.bucket is required when eviction is enabled")
		}
		if c.Eviction.Region == "" {
			return fmt.Errorf("eviction.region is required when eviction is enabled")
		}
	}

	if c.Observability.Enabled {
		if c.Observability.Listen == "" {
			c.Observability.Listen = "127.0.0.1:9848"
		}
		if len(c.Observability.AllowOrigins) == 0 {
			return fmt.Errorf("observability.allow_origins is required when observability is enabled (deny-by-default)")
		}
		for _, origin := range c.Observability.AllowOrigins {
			prefix, err := netip.ParsePrefix(strings.TrimSpace(origin))
			if err != nil {
				addr, addrErr := netip.ParseAddr(strings.TrimSpace(origin))
				if addrErr != nil {
					return fmt.Errorf("observability.allow_origins: %q is not a valid IP or CIDR", origin)
				}
				prefix = netip.PrefixFrom(addr, addr.BitLen())
			}
			c.Observability.ParsedCIDRs = append(c.Observability.ParsedCIDRs, prefix)
		}
	}

	return nil
}

// ParseByteSize converts human-readable strings like "256mb", "1gb" to bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	// Ordered longest-suffix-first so "mb" doesn't match as "b".
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
