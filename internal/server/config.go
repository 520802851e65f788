package server

import (
	"log/slog"
	"os"
	"time"
)

// Config holds server configuration
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	GRPCAddr        string
	CacheTTL        time.Duration
	UpstreamTimeout time.Duration
}

// LoadConfig reads environment variables and returns a Config
func LoadConfig() *Config {
	return &Config{
		HTTPAddr:        getEnv("IOC_HTTP_ADDR", ":8000"),
		MetricsAddr:     getEnv("IOC_METRICS_ADDR", ":9090"),
		GRPCAddr:        getEnv("IOC_GRPC_ADDR", ":9091"),
		CacheTTL:        getDuration("IOC_CACHE_TTL", 10*time.Minute),
		UpstreamTimeout: getDuration("IOC_UPSTREAM_TIMEOUT", 30*time.Second),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration", "key", k, "value", v)
		return def
	}
	return d
}
