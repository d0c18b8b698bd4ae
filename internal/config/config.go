package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "HARNESS"

// Settings is the full runtime configuration. Values are resolved with the
// precedence defaults < config file < environment (HARNESS_*).
type Settings struct {
	// DatabaseURL selects the backend: a postgres:// URL or a sqlite path.
	DatabaseURL string `mapstructure:"database_url"`

	// Grafana Cloud endpoints. Username plus the shared API token form the
	// basic-auth pair for both Prometheus and Loki.
	PrometheusURL      string `mapstructure:"prometheus_url"`
	PrometheusUsername string `mapstructure:"prometheus_username"`
	LokiURL            string `mapstructure:"loki_url"`
	LokiUsername       string `mapstructure:"loki_username"`
	GrafanaAPIToken    string `mapstructure:"grafana_api_token"`

	// Monitor loop.
	MonitorSchedule   string        `mapstructure:"monitor_schedule"`
	SLOInterval       time.Duration `mapstructure:"slo_interval"`
	InvariantInterval time.Duration `mapstructure:"invariant_interval"`

	// Agent loop.
	AnthropicAPIKey   string        `mapstructure:"anthropic_api_key"`
	AnthropicModel    string        `mapstructure:"anthropic_model"`
	AgentPollInterval time.Duration `mapstructure:"agent_poll_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`

	// Dashboard / API server.
	ListenAddr    string `mapstructure:"listen_addr"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	// Sample service under management.
	ServiceListenAddr string  `mapstructure:"service_listen_addr"`
	ServiceRate       float64 `mapstructure:"service_rate"`
	ServiceBurst      int     `mapstructure:"service_burst"`
}

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = ".harness/config.yaml"

// Load reads settings from the given config file (optional) and the
// environment. A missing file is not an error; a malformed one is.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath
	}
	if err := mergeFile(v, path); err != nil {
		return nil, err
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &s, nil
}

func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := v.MergeConfig(strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", ".harness/harness.db")
	v.SetDefault("prometheus_url", "")
	v.SetDefault("prometheus_username", "")
	v.SetDefault("loki_url", "")
	v.SetDefault("loki_username", "")
	v.SetDefault("grafana_api_token", "")
	v.SetDefault("monitor_schedule", "@every 1m")
	v.SetDefault("slo_interval", time.Minute)
	v.SetDefault("invariant_interval", time.Minute)
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "claude-sonnet-4-5")
	v.SetDefault("agent_poll_interval", 10*time.Second)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("stale_after", 30*time.Minute)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("service_listen_addr", ":8081")
	v.SetDefault("service_rate", 100.0)
	v.SetDefault("service_burst", 200)
}
