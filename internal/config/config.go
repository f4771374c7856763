// Package config loads gurtd's configuration from the environment.
//
// Everything is driven by GURT_* variables, optionally seeded from a
// .env file in the working directory. Defaults are wired through viper
// so `Load()` always yields a complete, validated Config.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/gurtlabs/gurtd/internal/helpers"
)

// Config is the process-wide configuration.
type Config struct {
	ListenAddr string
	TLSCert    string
	TLSKey     string

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	FetchTimeout     time.Duration
	IdleReadTimeout  time.Duration

	DNSHost string
	DNSAddr string
	DNSPort int

	IndexDir          string
	DBPath            string
	UIDir             string
	AuthoritySnapshot string

	UserAgent    string
	SubmitRate   int
	SubmitWindow time.Duration

	CrawlGlobal  int
	CrawlPerHost int

	BootstrapEnabled  bool
	BootstrapLimit    int
	BootstrapLogEvery int

	APIAddr string

	LogLevel  string
	LogFormat string

	DebugIndex   bool
	DebugResults bool
	DebugUI      bool
}

// Load reads .env (when present), then the environment, then applies
// defaults and validation.
func Load() (*Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("gurt")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:4878")
	v.SetDefault("connect_timeout_ms", 10000)
	v.SetDefault("handshake_timeout_ms", 5000)
	v.SetDefault("fetch_timeout_ms", 30000)
	v.SetDefault("idle_read_ms", 500)
	v.SetDefault("dns_host", "dns.web")
	v.SetDefault("dns_port", 4878)
	v.SetDefault("user_agent", "gurtd/0.1")
	v.SetDefault("submit_rate", 5)
	v.SetDefault("submit_window", 60)
	v.SetDefault("crawl_global", 8)
	v.SetDefault("crawl_per_host", 2)
	v.SetDefault("bootstrap_enabled", true)
	v.SetDefault("bootstrap_limit", 200)
	v.SetDefault("bootstrap_log_every", 50)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	cfg := &Config{
		ListenAddr: v.GetString("listen_addr"),
		TLSCert:    v.GetString("tls_cert"),
		TLSKey:     v.GetString("tls_key"),

		ConnectTimeout:   time.Duration(v.GetInt("connect_timeout_ms")) * time.Millisecond,
		HandshakeTimeout: time.Duration(v.GetInt("handshake_timeout_ms")) * time.Millisecond,
		FetchTimeout:     time.Duration(v.GetInt("fetch_timeout_ms")) * time.Millisecond,
		IdleReadTimeout:  time.Duration(v.GetInt("idle_read_ms")) * time.Millisecond,

		DNSHost: v.GetString("dns_host"),
		DNSAddr: v.GetString("dns_addr"),
		DNSPort: v.GetInt("dns_port"),

		IndexDir:          v.GetString("index_dir"),
		DBPath:            v.GetString("db_path"),
		UIDir:             v.GetString("ui_dir"),
		AuthoritySnapshot: v.GetString("authority_snapshot"),

		UserAgent:    v.GetString("user_agent"),
		SubmitRate:   v.GetInt("submit_rate"),
		SubmitWindow: time.Duration(v.GetInt("submit_window")) * time.Second,

		CrawlGlobal:  v.GetInt("crawl_global"),
		CrawlPerHost: v.GetInt("crawl_per_host"),

		BootstrapEnabled:  v.GetBool("bootstrap_enabled"),
		BootstrapLimit:    v.GetInt("bootstrap_limit"),
		BootstrapLogEvery: v.GetInt("bootstrap_log_every"),

		APIAddr: v.GetString("api_addr"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		DebugIndex:   v.GetBool("debug_index"),
		DebugResults: v.GetBool("debug_results"),
		DebugUI:      v.GetBool("debug_ui"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes and bounds the configuration.
func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		return errors.New("listen address must not be empty")
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}

	cfg.ConnectTimeout = helpers.ClampDuration(cfg.ConnectTimeout, 500*time.Millisecond, 60*time.Second)
	cfg.HandshakeTimeout = helpers.ClampDuration(cfg.HandshakeTimeout, 200*time.Millisecond, 30*time.Second)
	cfg.FetchTimeout = helpers.ClampDuration(cfg.FetchTimeout, time.Second, 120*time.Second)
	cfg.IdleReadTimeout = helpers.ClampDuration(cfg.IdleReadTimeout, 100*time.Millisecond, 5*time.Second)

	cfg.DNSPort = helpers.ClampInt(cfg.DNSPort, 1, 65535)
	cfg.SubmitRate = helpers.ClampInt(cfg.SubmitRate, 1, 1000)
	cfg.CrawlGlobal = helpers.ClampInt(cfg.CrawlGlobal, 1, 256)
	cfg.CrawlPerHost = helpers.ClampInt(cfg.CrawlPerHost, 1, 32)
	cfg.BootstrapLimit = helpers.ClampInt(cfg.BootstrapLimit, 1, 10000)
	cfg.BootstrapLogEvery = helpers.ClampInt(cfg.BootstrapLogEvery, 1, 1000)
	if cfg.SubmitWindow <= 0 {
		cfg.SubmitWindow = time.Minute
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat != "json" {
		cfg.LogFormat = "text"
	}
	return nil
}
