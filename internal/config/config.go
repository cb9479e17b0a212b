// Package config loads the Jensen client's layered configuration: struct
// defaults, an optional YAML file, then environment variable overrides
// (grounded on the teacher pack's koanf-based multiserver config loader).
// Unlike that teacher, there is no package-level singleton: Load returns an
// explicit Config value (spec §9's redesign flag against global mutable
// service state).
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config holds every tunable named explicitly in spec §4.9 and §6.1, so
// none of it lives as an unconfigurable constant buried in code.
type Config struct {
	Transport  TransportConfig  `koanf:"transport"`
	Retry      RetryConfig      `koanf:"retry"`
	Timeouts   TimeoutConfig    `koanf:"timeouts"`
	CachePath  string           `koanf:"cache_path"`
	ListenAddr string           `koanf:"listen_addr"`
}

// TransportConfig mirrors transport.Config's tunables (spec §6.1).
type TransportConfig struct {
	ConfigNum    int `koanf:"config_num"`
	InterfaceNum int `koanf:"interface_num"`
	OutEndpoint  int `koanf:"out_endpoint"`
	InEndpoint   int `koanf:"in_endpoint"`
}

// RetryConfig mirrors lifecycle.Policy's tunables (spec §4.9).
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	Delay             time.Duration `koanf:"delay"`
	MaxErrorThreshold uint64        `koanf:"max_error_threshold"`
}

// TimeoutConfig mirrors the dispatcher/downloader timing knobs (spec §4.3,
// §4.5, §4.9's "3-second quiet period" made explicit per the redesign
// flag in spec §9).
type TimeoutConfig struct {
	Command          time.Duration `koanf:"command"`
	StreamQuiet       time.Duration `koanf:"stream_quiet"`
	StreamOverall     time.Duration `koanf:"stream_overall"`
	DownloadChunkWait time.Duration `koanf:"download_chunk_wait"`
	DownloadOverall   time.Duration `koanf:"download_overall"`
}

// Default returns the documented defaults from spec §4.1, §4.3, §4.5, §4.9.
func Default() Config {
	return Config{
		Transport: TransportConfig{ConfigNum: 1, InterfaceNum: 0, OutEndpoint: 1, InEndpoint: 2},
		Retry:     RetryConfig{MaxAttempts: 3, Delay: 1 * time.Second, MaxErrorThreshold: 5},
		Timeouts: TimeoutConfig{
			Command:           5 * time.Second,
			StreamQuiet:       3 * time.Second,
			StreamOverall:     10 * time.Second,
			DownloadChunkWait: 15 * time.Second,
			DownloadOverall:   60 * time.Second,
		},
		CachePath:  "jensen-cache.json",
		ListenAddr: ":8081",
	}
}

// Load builds a Config by layering, in order: struct defaults, an optional
// YAML file at path (missing file is not an error), then environment
// variables prefixed JENSEN_, using "__" as the nesting separator (e.g.
// JENSEN_RETRY__MAX_ATTEMPTS overrides retry.max_attempts).
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !strings.Contains(err.Error(), "no such file") {
				return Config{}, err
			}
		}
	}

	if err := k.Load(env.Provider("JENSEN_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "JENSEN_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
