package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/olliecrow/screen_usage_monitor/internal/usage"
)

const envPrefix = "SCREEN_USAGE"

// Config holds the complete application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// ProviderConfig selects which bound provider answers usage requests
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	Timeout string `mapstructure:"timeout"`
}

// FileConfig locates a JSON activity report export
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig locates an activity report kept in Redis
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type TUIConfig struct {
	Interval  string `mapstructure:"interval"` // "0s" disables auto refresh
	NoColor   bool   `mapstructure:"no_color"`
	AltScreen bool   `mapstructure:"alt_screen"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"provider":     "provider.name",
	"timeout":      "provider.timeout",
	"report-file":  "file.path",
	"redis-addr":   "redis.addr",
	"interval":     "tui.interval",
	"no-color":     "tui.no_color",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"log-file":     "logging.file",
	"metrics-addr": "metrics.addr",
}

// Load reads configuration from the config file, SCREEN_USAGE_* environment
// variables and any flags in flags that were set. An explicit configPath must
// exist; the default one may be absent.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	dataDir, err := usage.DataDir()
	if err != nil {
		return nil, err
	}
	setDefaults(v, dataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	configFile, err := resolveConfigFile(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.ConfigFile = configFile

	if err := normalize(&config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func resolveConfigFile(configPath, dataDir string) (string, error) {
	if explicit := strings.TrimSpace(configPath); explicit != "" {
		path, err := usage.ExpandPath(explicit)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	path := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", path, err)
	}
	return path, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("provider.name", usage.FileProviderName)
	v.SetDefault("provider.timeout", "10s")

	v.SetDefault("file.path", filepath.Join(dataDir, "report.json"))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "screenusage")
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.pool_size", 4)
	v.SetDefault("redis.min_idle_conns", 0)

	v.SetDefault("tui.interval", "0s")
	v.SetDefault("tui.no_color", false)
	v.SetDefault("tui.alt_screen", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", filepath.Join(dataDir, "monitor.log"))

	v.SetDefault("metrics.addr", "")
}

func normalize(config *Config) error {
	config.Provider.Name = strings.ToLower(strings.TrimSpace(config.Provider.Name))
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))

	var err error
	if config.File.Path, err = usage.ExpandPath(strings.TrimSpace(config.File.Path)); err != nil {
		return err
	}
	if config.Logging.File, err = usage.ExpandPath(strings.TrimSpace(config.Logging.File)); err != nil {
		return err
	}
	return nil
}

// validate checks formats only; an unknown provider name is left for the
// binding lookup to report.
func validate(config *Config) error {
	if config.Provider.Name == "" {
		return errors.New("provider.name must not be empty")
	}
	for key, value := range map[string]string{
		"provider.timeout":   config.Provider.Timeout,
		"redis.dial_timeout": config.Redis.DialTimeout,
		"redis.read_timeout": config.Redis.ReadTimeout,
		"tui.interval":       config.TUI.Interval,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", config.Logging.Level)
	}
	switch config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", config.Logging.Format)
	}
	if config.Redis.DB < 0 {
		return errors.New("redis.db must be >= 0")
	}
	return nil
}

// ProviderTimeout is the per-request deadline owned by the provider.
func (c *Config) ProviderTimeout() time.Duration {
	return parseDuration(c.Provider.Timeout, 10*time.Second)
}

func (c *Config) RefreshInterval() time.Duration {
	return parseDuration(c.TUI.Interval, 0)
}

func (c *Config) RedisOptions() usage.RedisOptions {
	return usage.RedisOptions{
		Addr:         strings.TrimSpace(c.Redis.Addr),
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		KeyPrefix:    c.Redis.KeyPrefix,
		DialTimeout:  parseDuration(c.Redis.DialTimeout, 5*time.Second),
		ReadTimeout:  parseDuration(c.Redis.ReadTimeout, 3*time.Second),
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return d
}
