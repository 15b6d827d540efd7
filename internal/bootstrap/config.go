package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServiceName  string
	GRPCAddr     string
	OTLPEndpoint string
	MetricsAddr  string

	ExecutorIncludes       []string
	ExecutorIncludeAll     bool
	ExperimentalAttributes bool

	Workers    int
	QueueSize  int
	MaxRetries uint64

	// NodeID is the snowflake node for task ids, -1 to derive it from Hostname.
	NodeID   int64
	Hostname string
}

// LoadConfig reads the process configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		ServiceName:  envOr("SERVICE_NAME", "go-trace-propagation"),
		GRPCAddr:     envOr("GRPC_ADDR", ":50051"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsAddr:  envOr("METRICS_ADDR", ":9090"),
		Hostname:     os.Getenv("HOSTNAME"),
	}
	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
	}

	for _, name := range strings.Split(os.Getenv("OTEL_INSTRUMENTATION_EXECUTORS_INCLUDE"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.ExecutorIncludes = append(cfg.ExecutorIncludes, name)
		}
	}

	var err error
	if cfg.ExecutorIncludeAll, err = envBool("OTEL_INSTRUMENTATION_EXECUTORS_INCLUDE_ALL", false); err != nil {
		return Config{}, err
	}
	if cfg.ExperimentalAttributes, err = envBool("OTEL_INSTRUMENTATION_EXPERIMENTAL_SPAN_ATTRIBUTES", false); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = envInt("EXECUTOR_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = envInt("EXECUTOR_QUEUE_SIZE", 64); err != nil {
		return Config{}, err
	}
	retries, err := envInt("EXECUTOR_MAX_RETRIES", 0)
	if err != nil {
		return Config{}, err
	}
	if retries < 0 {
		return Config{}, fmt.Errorf("EXECUTOR_MAX_RETRIES must not be negative, got %d", retries)
	}
	cfg.MaxRetries = uint64(retries)

	nodeID, err := envInt("SNOWFLAKE_NODE_ID", -1)
	if err != nil {
		return Config{}, err
	}
	if nodeID < -1 || nodeID > maxNodeID {
		return Config{}, fmt.Errorf("SNOWFLAKE_NODE_ID must be within 0-%d, got %d", maxNodeID, nodeID)
	}
	cfg.NodeID = int64(nodeID)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
