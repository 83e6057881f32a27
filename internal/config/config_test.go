package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, root, setting, relay string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "config", "dev"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if setting != "" {
		if err := os.WriteFile(filepath.Join(root, "config", "setting.ini"), []byte(setting), 0o644); err != nil {
			t.Fatalf("write setting: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "config", "dev", "relay.ini"), []byte(relay), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{CredentialEnv, "NOANSWER_ENV", "NOANSWER_HTTP_ADDRESS", "NOANSWER_UPSTREAM_API_KEY", "NOANSWER_LOG_LEVEL", "NOANSWER_RECORDS_DSN"} {
		t.Setenv(key, "")
	}
}

func TestLoadRelayConfig(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	setting := "environment=dev\nlog_level=DEBUG\nlog_file=/tmp/base.log\ndefault_model=base-model\n"
	relay := "; relay overrides\n[relay]\nhttp_address=:9090\nlog_file=/tmp/env.log\nupstream_base_url=http://upstream.local/v1/\nupstream_api_key=sk-file\nupstream_timeout=5s\nrecords_dsn=postgres://relay@localhost/records\nassets_dir=/srv/assets\nmax_event_bytes=4096\nshutdown_timeout=3s\nhealth_probe_upstream=off\n"
	writeConfig(t, tmp, setting, relay)

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.HTTPAddress != ":9090" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.LogFile != "/tmp/env.log" {
		t.Fatalf("unexpected log file %s", cfg.LogFile)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from base config, got %s", cfg.LogLevel)
	}
	if cfg.DefaultModel != "base-model" {
		t.Fatalf("expected default model from base config, got %s", cfg.DefaultModel)
	}
	if cfg.UpstreamBaseURL != "http://upstream.local/v1" {
		t.Fatalf("unexpected upstream base url %s", cfg.UpstreamBaseURL)
	}
	if cfg.UpstreamAPIKey != "sk-file" || !cfg.HasCredential() {
		t.Fatalf("unexpected api key %q", cfg.UpstreamAPIKey)
	}
	if cfg.UpstreamTimeout != 5*time.Second || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts %s %s", cfg.UpstreamTimeout, cfg.ShutdownTimeout)
	}
	if cfg.RecordsDSN != "postgres://relay@localhost/records" {
		t.Fatalf("unexpected records dsn %s", cfg.RecordsDSN)
	}
	if cfg.AssetsManifest != filepath.Join("/srv/assets", "manifest.yaml") {
		t.Fatalf("expected manifest next to assets, got %s", cfg.AssetsManifest)
	}
	if cfg.MaxEventBytes != 4096 {
		t.Fatalf("unexpected max event bytes %d", cfg.MaxEventBytes)
	}
	if cfg.HealthProbeUpstream {
		t.Fatalf("expected upstream probe disabled")
	}
}

func TestLoadRelayConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	writeConfig(t, tmp, "environment=dev\n", "http_address=:9090\nupstream_api_key=sk-file\n")
	t.Setenv("NOANSWER_HTTP_ADDRESS", ":7070")
	t.Setenv(CredentialEnv, " sk-env ")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.HTTPAddress != ":7070" {
		t.Fatalf("env override for http address not applied: %s", cfg.HTTPAddress)
	}
	if cfg.UpstreamAPIKey != "sk-env" {
		t.Fatalf("expected credential from %s, got %q", CredentialEnv, cfg.UpstreamAPIKey)
	}
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	writeConfig(t, tmp, "", "")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("expected dev environment, got %s", cfg.Environment)
	}
	if cfg.HTTPAddress != DefaultHTTPAddress {
		t.Fatalf("expected default http address, got %s", cfg.HTTPAddress)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.UpstreamBaseURL != DefaultUpstreamBaseURL || cfg.DefaultModel != DefaultModel {
		t.Fatalf("unexpected upstream defaults %s %s", cfg.UpstreamBaseURL, cfg.DefaultModel)
	}
	if cfg.HasCredential() {
		t.Fatalf("expected no credential")
	}
	if cfg.UpstreamTimeout != DefaultUpstreamTimeout || cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("unexpected default timeouts")
	}
	if cfg.MaxEventBytes != DefaultMaxEventBytes {
		t.Fatalf("unexpected default max event bytes %d", cfg.MaxEventBytes)
	}
	if cfg.RecordsDSN != DefaultRecordsPath() {
		t.Fatalf("expected default records path %s, got %s", DefaultRecordsPath(), cfg.RecordsDSN)
	}
	if !cfg.HealthProbeUpstream {
		t.Fatalf("expected upstream probe enabled by default")
	}
	if !cfg.MetricsEnabled || cfg.RateLimitBurst != 0 || cfg.RateLimitPerMinute != DefaultRatePerMinute {
		t.Fatalf("unexpected metrics/rate defaults %v %d %v", cfg.MetricsEnabled, cfg.RateLimitBurst, cfg.RateLimitPerMinute)
	}
}

func TestLoadRelayConfigRateLimit(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	writeConfig(t, tmp, "", "rate_limit_burst=5\nrate_limit_per_minute=2.5\nmetrics_enabled=no\n")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.RateLimitBurst != 5 || cfg.RateLimitPerMinute != 2.5 || cfg.MetricsEnabled {
		t.Fatalf("unexpected rate config %+v", cfg)
	}
}

func TestLoadRelayConfigSelectsEnvironment(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	writeConfig(t, tmp, "environment=dev\n", "http_address=:1111\n")
	if err := os.MkdirAll(filepath.Join(tmp, "config", "live"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "config", "live", "relay.ini"), []byte("http_address=:2222\n"), 0o644); err != nil {
		t.Fatalf("write live config: %v", err)
	}
	t.Setenv("NOANSWER_ENV", "live")

	cfg, err := LoadRelayConfig(tmp)
	if err != nil {
		t.Fatalf("LoadRelayConfig: %v", err)
	}
	if cfg.Environment != "live" || cfg.HTTPAddress != ":2222" {
		t.Fatalf("expected live config, got %s %s", cfg.Environment, cfg.HTTPAddress)
	}
}

func TestLoadRelayConfigInvalidValues(t *testing.T) {
	cases := map[string]string{
		"upstream timeout": "upstream_timeout=soon\n",
		"shutdown timeout": "shutdown_timeout=-1s\n",
		"max event bytes":  "max_event_bytes=lots\n",
		"zero event bytes": "max_event_bytes=0\n",
		"negative burst":   "rate_limit_burst=-2\n",
		"zero rate":        "rate_limit_per_minute=0\n",
	}
	for name, relay := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			tmp := t.TempDir()
			writeConfig(t, tmp, "", relay)
			if _, err := LoadRelayConfig(tmp); err == nil {
				t.Fatalf("expected error for %q", relay)
			}
		})
	}
}
