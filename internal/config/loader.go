package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mentorctl/internal/model"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/mentorctl"
	projectConfigDir = ".mentorctl"
	configFileName   = "config.yaml"
)

// Default returns the built-in configuration: an in-memory backend with
// backup and restore enabled.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Type:       BackendMemory,
			Redis:      RedisConfig{URL: "redis://localhost:6379/0", Prefix: "mentorctl"},
			Kubernetes: KubernetesConfig{Namespace: "default", Prefix: "mentorctl"},
		},
		Run: model.DefaultTestConfig(),
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		HistoryLimit: 20,
	}
}

// Load builds the configuration. With an explicit path only that file is
// layered over the defaults; otherwise the user file and then the project
// file are applied when present.
func Load(explicitPath string) (Config, error) {
	config := Default()

	if explicitPath != "" {
		if err := applyFile(&config, explicitPath); err != nil {
			return Config{}, err
		}
		return config, config.Validate()
	}

	for _, locate := range []func() (string, error){getUserConfigPath, getProjectConfigPath} {
		path, err := locate()
		if err != nil {
			// Optional layer; skip it
			fmt.Fprintf(os.Stderr, "Warning: Could not determine config path: %v\n", err)
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := applyFile(&config, path); err != nil {
			return Config{}, err
		}
	}
	return config, config.Validate()
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// applyFile decodes a YAML file on top of config. Keys absent from the file
// keep their current values.
func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error loading config from %s: %w", path, err)
	}
	if err := decodeInto(config, data); err != nil {
		return fmt.Errorf("error loading config from %s: %w", path, err)
	}
	if config.SuitesDir != "" && !filepath.IsAbs(config.SuitesDir) {
		config.SuitesDir = filepath.Join(filepath.Dir(path), config.SuitesDir)
	}
	if seed := config.Backend.Memory.SeedFile; seed != "" && !filepath.IsAbs(seed) {
		config.Backend.Memory.SeedFile = filepath.Join(filepath.Dir(path), seed)
	}
	return nil
}

func decodeInto(config *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend.Type {
	case BackendMemory:
	case BackendRedis:
		if c.Backend.Redis.URL == "" {
			errs = append(errs, errors.New("backend.redis.url is required for the redis backend"))
		}
	case BackendKubernetes:
		if c.Backend.Kubernetes.Namespace == "" {
			errs = append(errs, errors.New("backend.kubernetes.namespace is required for the kubernetes backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend.type %q is not one of memory, redis, kubernetes", c.Backend.Type))
	}
	if err := c.Run.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("run: %w", err))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("historyLimit must be non-negative"))
	}
	return utilerrors.NewAggregate(errs)
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
