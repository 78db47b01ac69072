package config

import (
	"os"
)

type Config struct {
	// MonitorsFile is the path to the YAML cluster definition.
	MonitorsFile string
	// SecretsKeyFile holds the credential decryption key; empty means
	// credentials are stored in plaintext.
	SecretsKeyFile string
	MetricsAddr    string
	AdminAddr      string
	ServiceName    string
	LogLevel       string
}

func Load() (*Config, error) {
	cfg := &Config{
		MonitorsFile:   getEnv("MONITORS_FILE", "/etc/proxymon/monitors.yaml"),
		SecretsKeyFile: getEnv("SECRETS_KEY_FILE", ""),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9153"),
		AdminAddr:      getEnv("ADMIN_ADDR", "127.0.0.1:8953"),
		ServiceName:    getEnv("SERVICE_NAME", "proxymon"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
