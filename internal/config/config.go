// Package config loads reconcile settings from flags, environment variables,
// .env files and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/lookup-reconciler/internal/rows"
	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
	"github.com/Sternrassler/lookup-reconciler/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable (RECONCILE_MODULE, ...).
const EnvPrefix = "RECONCILE"

// Keys shared by flags, environment and the config file.
const (
	KeyModule            = "module"
	KeyInput             = "input"
	KeyOutput            = "output"
	KeyFormat            = "format"
	KeyCredentials       = "credentials"
	KeySettings          = "settings"
	KeyWorkers           = "workers"
	KeyBaseURL           = "base-url"
	KeyUserAgent         = "user-agent"
	KeyTimeout           = "timeout"
	KeyRequestsPerSecond = "requests-per-second"
	KeyBurst             = "burst"
	KeyRedisAddr         = "redis-addr"
	KeyCacheTTL          = "cache-ttl"
	KeyTrackQuota        = "track-quota"
	KeyMetricsAddr       = "metrics-addr"
	KeyLogLevel          = "log-level"
	KeyLogPretty         = "log-pretty"
)

// Config is the resolved configuration of one reconcile run.
type Config struct {
	Module   string
	Input    string
	Output   string
	Format   rows.Format
	Settings map[string]string

	Credentials []credential.Credential
	Workers     int
	BaseURL     string

	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	RedisAddr  string
	CacheTTL   time.Duration
	TrackQuota bool

	MetricsAddr string

	LogLevel  logging.LogLevel
	LogPretty bool

	// ConfigFile is the file that was read, if any.
	ConfigFile string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyFormat, string(rows.FormatJSON))
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyUserAgent, client.DefaultUserAgent)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyCacheTTL, 24*time.Hour)
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
}

// New returns a viper instance reading RECONCILE_* variables, with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadEnvFiles loads .env then .env.local from the working directory.
// Variables already set in the environment win.
func LoadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// Load resolves configuration from v. When configFile is empty, a
// .reconcile.yaml in the working or home directory is used if present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".reconcile")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	format, err := rows.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	creds, err := credential.ParseAll(splitList(v.GetStringSlice(KeyCredentials)))
	if err != nil && !errors.Is(err, credential.ErrNoCredentials) {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	cfg := &Config{
		Module:            strings.TrimSpace(v.GetString(KeyModule)),
		Input:             v.GetString(KeyInput),
		Output:            v.GetString(KeyOutput),
		Format:            format,
		Settings:          v.GetStringMapString(KeySettings),
		Credentials:       creds,
		Workers:           v.GetInt(KeyWorkers),
		BaseURL:           v.GetString(KeyBaseURL),
		UserAgent:         v.GetString(KeyUserAgent),
		Timeout:           v.GetDuration(KeyTimeout),
		RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
		Burst:             v.GetInt(KeyBurst),
		RedisAddr:         v.GetString(KeyRedisAddr),
		CacheTTL:          v.GetDuration(KeyCacheTTL),
		TrackQuota:        v.GetBool(KeyTrackQuota),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
		LogLevel:          level,
		LogPretty:         v.GetBool(KeyLogPretty),
		ConfigFile:        v.ConfigFileUsed(),
	}

	return cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Module == "" {
		return errors.New("module is required")
	}
	if len(c.Credentials) == 0 {
		return credential.ErrNoCredentials
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.TrackQuota && c.RedisAddr == "" {
		return errors.New("track-quota requires redis-addr")
	}
	return nil
}

// ParseSet parses repeated key=value module settings.
func ParseSet(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q: want key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// splitList flattens comma separated values so RECONCILE_CREDENTIALS=a,b works
// the same as a YAML list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
