package config

// loader.go - configuration loading from a YAML file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file (-f)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML document at path onto cfg.  Keys missing
// from the file leave the existing value untouched.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NPSRV_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NPSRV_LISTEN"); v != "" {
		cfg.Listen = splitList(v)
	}
	if envBool("NPSRV_EXIT_ON_LAST_USE") {
		cfg.ExitLastUse = true
	}
	if envBool("NPSRV_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("NPSRV_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Authentication
	if v := os.Getenv("NPSRV_AUTH"); v != "" {
		cfg.Auth = v
	}
	if v := os.Getenv("NPSRV_CREDENTIALS"); v != "" {
		cfg.CredentialsFile = v
	}

	// Engine
	if v := os.Getenv("NPSRV_EXEC"); v != "" {
		cfg.Execute = v
	}
	if v := os.Getenv("NPSRV_COMMAND"); v != "" {
		cfg.Command = v
	}

	// Output
	if v := envInt("NPSRV_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
