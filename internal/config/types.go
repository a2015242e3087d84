package config

import (
	"mentorctl/internal/model"
)

// BackendType selects the backend adapter.
type BackendType string

const (
	BackendMemory     BackendType = "memory"
	BackendRedis      BackendType = "redis"
	BackendKubernetes BackendType = "kubernetes"
)

// Config is the top-level mentorctl configuration.
type Config struct {
	Backend BackendConfig    `yaml:"backend"`
	Run     model.TestConfig `yaml:"run"`
	Server  ServerConfig     `yaml:"server"`
	// SuitesDir holds extra suite files. Suites with the same name as a
	// built-in replace it.
	SuitesDir string `yaml:"suitesDir,omitempty"`
	// HistoryLimit bounds the finished runs kept for lookup.
	HistoryLimit int `yaml:"historyLimit,omitempty"`
}

// BackendConfig describes the live data store under test.
type BackendConfig struct {
	Type       BackendType      `yaml:"type"`
	Memory     MemoryConfig     `yaml:"memory,omitempty"`
	Redis      RedisConfig      `yaml:"redis,omitempty"`
	Kubernetes KubernetesConfig `yaml:"kubernetes,omitempty"`
}

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	// SeedFile is a YAML snapshot loaded into the store at startup.
	SeedFile string `yaml:"seedFile,omitempty"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL    string `yaml:"url,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// KubernetesConfig configures the ConfigMap backend.
type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// ServerConfig configures the HTTP API of `mentorctl serve`.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}
