package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Listen(t *testing.T) {
	t.Setenv("NPSRV_LISTEN", "0.0.0.0:564, unix:///run/npsrv.sock ,")
	cfg := Default()
	LoadFromEnv(cfg)
	want := []string{"0.0.0.0:564", "unix:///run/npsrv.sock"}
	if len(cfg.Listen) != len(want) {
		t.Fatalf("Listen = %v, want %v", cfg.Listen, want)
	}
	for i := range want {
		if cfg.Listen[i] != want[i] {
			t.Errorf("Listen[%d] = %q, want %q", i, cfg.Listen[i], want[i])
		}
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
	}{
		{"NPSRV_EXIT_ON_LAST_USE", []string{"1", "true", "yes", "TRUE", "Yes"}},
		{"NPSRV_NO_DNS", []string{"1", "true"}},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)

				switch tt.key {
				case "NPSRV_EXIT_ON_LAST_USE":
					if !cfg.ExitLastUse {
						t.Error("ExitLastUse should be true")
					}
				case "NPSRV_NO_DNS":
					if !cfg.NoDNS {
						t.Error("NoDNS should be true")
					}
				}
			})
		}
	}
}

func TestLoadFromEnv_FalseValues(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "off"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("NPSRV_EXIT_ON_LAST_USE", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if cfg.ExitLastUse {
				t.Errorf("ExitLastUse should stay false for %q", v)
			}
		})
	}
}

func TestLoadFromEnv_Strings(t *testing.T) {
	t.Setenv("NPSRV_AUTH", "password")
	t.Setenv("NPSRV_CREDENTIALS", "/etc/npsrv/users.yaml")
	t.Setenv("NPSRV_EXEC", "/usr/bin/cat")
	t.Setenv("NPSRV_COMMAND", "tr a-z A-Z")
	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.Auth != "password" {
		t.Errorf("Auth = %q", cfg.Auth)
	}
	if cfg.CredentialsFile != "/etc/npsrv/users.yaml" {
		t.Errorf("CredentialsFile = %q", cfg.CredentialsFile)
	}
	if cfg.Execute != "/usr/bin/cat" || cfg.Command != "tr a-z A-Z" {
		t.Errorf("Execute = %q, Command = %q", cfg.Execute, cfg.Command)
	}
}

func TestLoadFromEnv_Numbers(t *testing.T) {
	t.Setenv("NPSRV_TIMEOUT", "30")
	t.Setenv("NPSRV_VERBOSE", "2")
	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d, want 2", cfg.Verbose)
	}
}

func TestLoadFromEnv_InvalidInt(t *testing.T) {
	t.Setenv("NPSRV_TIMEOUT", "soon")
	cfg := &Config{Timeout: 5 * time.Second}
	LoadFromEnv(cfg)
	if cfg.Timeout != 5*time.Second {
		t.Errorf("invalid int should leave Timeout unchanged, got %v", cfg.Timeout)
	}
}

func TestLoadFromEnv_Empty(t *testing.T) {
	cfg := Default()
	LoadFromEnv(cfg)
	if len(cfg.Listen) != 1 || cfg.Listen[0] != DefaultListenAddr {
		t.Errorf("defaults should survive an empty environment: %v", cfg.Listen)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "npsrv.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
listen:
  - 127.0.0.1:5640
  - unix:///tmp/npsrv.sock
exit_on_last_use: true
timeout: 45s
auth: peercred
verbose: 2
`)
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}

	if len(cfg.Listen) != 2 || cfg.Listen[1] != "unix:///tmp/npsrv.sock" {
		t.Errorf("Listen = %v", cfg.Listen)
	}
	if !cfg.ExitLastUse {
		t.Error("ExitLastUse should be true")
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Auth != AuthPeerCred || cfg.Verbose != 2 {
		t.Errorf("Auth = %q, Verbose = %d", cfg.Auth, cfg.Verbose)
	}
}

func TestLoadFile_KeepsUnsetFields(t *testing.T) {
	path := writeFile(t, "no_dns: true\n")
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if !cfg.NoDNS {
		t.Error("NoDNS should be true")
	}
	if len(cfg.Listen) != 1 || cfg.Listen[0] != DefaultListenAddr {
		t.Errorf("Listen should keep its default, got %v", cfg.Listen)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := writeFile(t, "")
	if err := LoadFile(Default(), path); err != nil {
		t.Errorf("empty file should be accepted: %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if err := LoadFile(Default(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := LoadFile(Default(), writeFile(t, "listn: [x]\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}
