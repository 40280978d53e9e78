package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SCREEN_USAGE_MONITOR_HOME", dir)
	return dir
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("provider", "file", "")
	fs.Duration("timeout", 0, "")
	fs.String("report-file", "", "")
	fs.String("redis-addr", "", "")
	fs.Duration("interval", 0, "")
	fs.Bool("no-color", false, "")
	fs.String("log-level", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "file" {
		t.Fatalf("unexpected provider %q", cfg.Provider.Name)
	}
	if cfg.ProviderTimeout() != 10*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.ProviderTimeout())
	}
	if cfg.File.Path != filepath.Join(dir, "report.json") {
		t.Fatalf("unexpected report path %q", cfg.File.Path)
	}
	if cfg.Logging.File != filepath.Join(dir, "monitor.log") {
		t.Fatalf("unexpected log file %q", cfg.Logging.File)
	}
	if cfg.RefreshInterval() != 0 || !cfg.TUI.AltScreen {
		t.Fatalf("unexpected tui defaults %+v", cfg.TUI)
	}
	if cfg.ConfigFile != "" {
		t.Fatalf("expected no config file, got %q", cfg.ConfigFile)
	}
	opts := cfg.RedisOptions()
	if opts.Addr != "" || opts.KeyPrefix != "screenusage" || opts.DialTimeout != 5*time.Second || opts.PoolSize != 4 {
		t.Fatalf("unexpected redis defaults %+v", opts)
	}
}

func TestLoadReadsDefaultConfigFile(t *testing.T) {
	dir := isolate(t)
	body := `
provider:
  name: Redis
  timeout: 3s
redis:
  addr: 127.0.0.1:6390
  key_prefix: family
tui:
  interval: 30s
logging:
  level: DEBUG
  format: text
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != filepath.Join(dir, "config.yaml") {
		t.Fatalf("unexpected config file %q", cfg.ConfigFile)
	}
	if cfg.Provider.Name != "redis" || cfg.ProviderTimeout() != 3*time.Second {
		t.Fatalf("unexpected provider config %+v", cfg.Provider)
	}
	if opts := cfg.RedisOptions(); opts.Addr != "127.0.0.1:6390" || opts.KeyPrefix != "family" {
		t.Fatalf("unexpected redis options %+v", opts)
	}
	if cfg.RefreshInterval() != 30*time.Second {
		t.Fatalf("unexpected interval %s", cfg.RefreshInterval())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  timeout: 3s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCREEN_USAGE_PROVIDER_TIMEOUT", "7s")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProviderTimeout() != 7*time.Second {
		t.Fatalf("expected env override, got %s", cfg.ProviderTimeout())
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  name: redis\n  timeout: 3s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fs := testFlags()
	if err := fs.Parse([]string{"--timeout", "250ms", "--report-file", "~/exports/today.json", "--no-color"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "redis" {
		t.Fatalf("unset flag must not override config, got %q", cfg.Provider.Name)
	}
	if cfg.ProviderTimeout() != 250*time.Millisecond {
		t.Fatalf("expected flag timeout, got %s", cfg.ProviderTimeout())
	}
	if cfg.File.Path != filepath.Join(home, "exports", "today.json") {
		t.Fatalf("expected expanded report path, got %q", cfg.File.Path)
	}
	if !cfg.TUI.NoColor {
		t.Fatalf("expected no-color flag applied")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "provider:\n  timeout: soon\n",
		"negative":       "tui:\n  interval: -5s\n",
		"log level":      "logging:\n  level: loud\n",
		"log format":     "logging:\n  format: xml\n",
		"redis db":       "redis:\n  db: -1\n",
		"empty provider": "provider:\n  name: \"  \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path, nil); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := parseDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := parseDuration(" 2s ", time.Minute); got != 2*time.Second {
		t.Fatalf("expected parsed value, got %s", got)
	}
}
