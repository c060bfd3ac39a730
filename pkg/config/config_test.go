package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/portal"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
portalUrl: http://127.0.0.1:9999/v1
serial: emulator-5554
cacheDir: /tmp/uiscout-cache
logDir: /tmp/uiscout-logs
logLevel: DEBUG
language: german
locateTimeout: 30s
`
	path := writeConfig(t, t.TempDir(), "config.yaml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PortalURL != "http://127.0.0.1:9999/v1" {
		t.Errorf("PortalURL = %q", cfg.PortalURL)
	}
	if cfg.Serial != "emulator-5554" {
		t.Errorf("Serial = %q", cfg.Serial)
	}
	if cfg.CacheDir != "/tmp/uiscout-cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.LogDir != "/tmp/uiscout-logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Language != "german" {
		t.Errorf("Language = %q", cfg.Language)
	}
	if cfg.LocateTimeout.Std() != 30*time.Second {
		t.Errorf("LocateTimeout = %v, want 30s", cfg.LocateTimeout.Std())
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `serial: [invalid yaml`)

	_, err := Load(path)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_EmptyKeepsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", ``)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.PortalURL != portal.DefaultBaseURL {
		t.Errorf("PortalURL = %q, want default %q", cfg.PortalURL, portal.DefaultBaseURL)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
	if cfg.LocateTimeout.Std() != 15*time.Second {
		t.Errorf("LocateTimeout = %v, want 15s", cfg.LocateTimeout.Std())
	}
	if cfg.LogDir != filepath.Join(cfg.CacheDir, "logs") {
		t.Errorf("LogDir = %q, want it under the cache dir %q", cfg.LogDir, cfg.CacheDir)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `locateTimeout: soon`)

	_, err := Load(path)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("UISCOUT_PORTAL_URL", "http://10.0.0.5:8200/v1")
	t.Setenv("UISCOUT_LOCATE_TIMEOUT", "90s")

	path := writeConfig(t, t.TempDir(), "config.yaml", `
portalUrl: http://127.0.0.1:9999/v1
locateTimeout: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PortalURL != "http://10.0.0.5:8200/v1" {
		t.Errorf("PortalURL = %q, environment should win", cfg.PortalURL)
	}
	if cfg.LocateTimeout.Std() != 90*time.Second {
		t.Errorf("LocateTimeout = %v, environment should win", cfg.LocateTimeout.Std())
	}
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("UISCOUT_LOCATE_TIMEOUT", "fast")

	path := writeConfig(t, t.TempDir(), "config.yaml", ``)
	_, err := Load(path)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeConfig(t, dir, "custom.env", "UISCOUT_SERIAL=envfile-5554\n")
	t.Setenv("UISCOUT_ENV", envPath)
	t.Cleanup(func() { os.Unsetenv("UISCOUT_SERIAL") })

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "envfile-5554" {
		t.Errorf("Serial = %q, want the env file value", cfg.Serial)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Setenv("UISCOUT_ENV", filepath.Join(t.TempDir(), "missing.env"))

	_, err := LoadFromDir(t.TempDir())
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("LoadFromDir() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadFromDir_ConfigYaml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `serial: android-1`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "android-1" {
		t.Errorf("Serial = %q, want android-1", cfg.Serial)
	}
}

func TestLoadFromDir_ConfigYml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `serial: android-2`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "android-2" {
		t.Errorf("Serial = %q, want android-2", cfg.Serial)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should return defaults
	if cfg.PortalURL != portal.DefaultBaseURL {
		t.Errorf("PortalURL = %q, want default", cfg.PortalURL)
	}
	if cfg.Serial != "" {
		t.Errorf("Serial = %q, want empty", cfg.Serial)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `serial: from-yaml`)
	writeConfig(t, dir, "config.yml", `serial: from-yml`)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "from-yaml" {
		t.Errorf("Serial = %q, want the config.yaml value", cfg.Serial)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
		{name: "unknown language", mutate: func(c *Config) { c.Language = "klingon" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.LocateTimeout = Duration(-time.Second) }, wantErr: true},
		{name: "empty language ok", mutate: func(c *Config) { c.Language = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() should fail")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.LogDir = filepath.Join(dir, "cache", "logs")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error: %v", err)
	}
	for _, p := range []string{cfg.CacheDir, cfg.LogDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("directory %s missing after EnsureDirs()", p)
		}
	}

	if got := cfg.LogFile(); got != filepath.Join(cfg.LogDir, "uiscout.log") {
		t.Errorf("LogFile() = %q", got)
	}
}
