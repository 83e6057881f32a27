package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/relay.ini"
	envPrefix        = "NOANSWER_"

	// CredentialEnv names the variable holding the upstream API key.
	CredentialEnv = "DEEPSEEK_API_KEY"

	DefaultHTTPAddress     = ":8080"
	DefaultUpstreamBaseURL = "https://api.deepseek.com/v1"
	DefaultModel           = "deepseek-chat"
	DefaultUpstreamTimeout = 60 * time.Second
	DefaultMaxEventBytes   = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRatePerMinute   = 20.0
)

// Settings contains global toggles such as the active environment.
type Settings struct {
	Environment string
	Defaults    map[string]string
}

// RelayConfig describes runtime options for relayd.
type RelayConfig struct {
	Environment string
	HTTPAddress string
	LogFile     string
	LogLevel    string

	UpstreamBaseURL string
	// UpstreamAPIKey is read once at startup; empty means every chat call fails.
	UpstreamAPIKey string
	DefaultModel   string
	// UpstreamTimeout bounds connect and response headers, never the stream body.
	UpstreamTimeout time.Duration

	// RecordsDSN is a SQLite file path or a postgres:// URL.
	RecordsDSN string

	AssetsDir      string
	AssetsManifest string

	MaxEventBytes       int
	ShutdownTimeout     time.Duration
	HealthProbeUpstream bool
	MetricsEnabled      bool

	// RateLimitBurst caps chat calls per client; zero disables the limiter.
	RateLimitBurst     int
	RateLimitPerMinute float64
}

// LoadRelayConfig reads the current environment and loads the matching relay config file.
func LoadRelayConfig(root string) (RelayConfig, error) {
	if root == "" {
		root = "."
	}
	s, err := loadSettings(root)
	if err != nil {
		return RelayConfig{}, err
	}

	envValues, err := parseINI(filepath.Join(root, fmt.Sprintf(envConfigPattern, s.Environment)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			envValues = map[string]string{}
		} else {
			return RelayConfig{}, err
		}
	}

	merged := make(map[string]string)
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range envValues {
		merged[k] = v
	}
	get := func(key string) string {
		return firstNonEmpty(os.Getenv(envPrefix+strings.ToUpper(key)), merged[key])
	}

	cfg := RelayConfig{
		Environment:         s.Environment,
		HTTPAddress:         firstNonEmpty(get("http_address"), DefaultHTTPAddress),
		LogFile:             get("log_file"),
		LogLevel:            strings.ToLower(firstNonEmpty(get("log_level"), "info")),
		UpstreamBaseURL:     strings.TrimSuffix(firstNonEmpty(get("upstream_base_url"), DefaultUpstreamBaseURL), "/"),
		UpstreamAPIKey:      strings.TrimSpace(firstNonEmpty(os.Getenv(CredentialEnv), get("upstream_api_key"))),
		DefaultModel:        firstNonEmpty(get("default_model"), DefaultModel),
		RecordsDSN:          firstNonEmpty(get("records_dsn"), DefaultRecordsPath()),
		AssetsDir:           get("assets_dir"),
		AssetsManifest:      get("assets_manifest"),
		HealthProbeUpstream: parseOptionalBool(get("health_probe_upstream"), true),
		MetricsEnabled:      parseOptionalBool(get("metrics_enabled"), true),
		RateLimitPerMinute:  DefaultRatePerMinute,
	}
	if cfg.AssetsDir != "" && cfg.AssetsManifest == "" {
		cfg.AssetsManifest = filepath.Join(cfg.AssetsDir, "manifest.yaml")
	}

	if cfg.UpstreamTimeout, err = parseDuration("upstream_timeout", get("upstream_timeout"), DefaultUpstreamTimeout); err != nil {
		return RelayConfig{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("shutdown_timeout", get("shutdown_timeout"), DefaultShutdownTimeout); err != nil {
		return RelayConfig{}, err
	}
	if v := get("max_event_bytes"); strings.TrimSpace(v) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || parsed <= 0 {
			return RelayConfig{}, fmt.Errorf("invalid max_event_bytes %q", v)
		}
		cfg.MaxEventBytes = parsed
	} else {
		cfg.MaxEventBytes = DefaultMaxEventBytes
	}
	if v := strings.TrimSpace(get("rate_limit_burst")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return RelayConfig{}, fmt.Errorf("invalid rate_limit_burst %q", v)
		}
		cfg.RateLimitBurst = parsed
	}
	if v := strings.TrimSpace(get("rate_limit_per_minute")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return RelayConfig{}, fmt.Errorf("invalid rate_limit_per_minute %q", v)
		}
		cfg.RateLimitPerMinute = parsed
	}
	return cfg, nil
}

// HasCredential reports whether an upstream API key was configured.
func (c RelayConfig) HasCredential() bool {
	return c.UpstreamAPIKey != ""
}

func loadSettings(root string) (Settings, error) {
	values, err := parseINI(filepath.Join(root, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{Environment: firstNonEmpty(os.Getenv(envPrefix+"ENV"), defaultEnv), Defaults: map[string]string{}}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	env := firstNonEmpty(os.Getenv(envPrefix+"ENV"), values["environment"], defaultEnv)
	defaults := make(map[string]string)
	for k, v := range values {
		if k == "environment" {
			continue
		}
		defaults[k] = v
	}
	return Settings{Environment: env, Defaults: defaults}, nil
}

func parseINI(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[strings.ToLower(key)] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseOptionalBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseBool(v)
}

func parseDuration(key, v string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, v)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DefaultRecordsPath returns the fallback record database under the user's home directory.
func DefaultRecordsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "records.db"
	}
	return filepath.Join(home, ".noanswer", "records.db")
}
