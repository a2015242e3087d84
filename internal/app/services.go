package app

import (
	"context"
	"fmt"
	"os"

	"mentorctl/internal/backend"
	"mentorctl/internal/backend/kubestore"
	"mentorctl/internal/backend/redisstore"
	"mentorctl/internal/checks"
	"mentorctl/internal/config"
	"mentorctl/internal/harness"
	"mentorctl/internal/reporting"
	"mentorctl/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// For mocking in tests
var newKubeClientset = kubestore.NewClientset

// Services holds the wired components shared by every command.
type Services struct {
	Config          config.Config
	Adapter         backend.Adapter
	Registry        *harness.Registry
	Catalog         *harness.Catalog
	Orchestrator    *harness.Orchestrator
	EventBus        reporting.EventBus
	Metrics         *reporting.Metrics
	MetricsRegistry *prometheus.Registry

	closers []func() error
}

// InitializeServices builds the backend adapter, the suite catalog and the
// orchestrator from cfg.
func InitializeServices(ctx context.Context, cfg config.Config) (*Services, error) {
	adapter, closer, err := NewAdapter(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}

	s := &Services{Config: cfg, Adapter: adapter}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	s.Registry = harness.NewRegistry()
	if err := checks.Register(s.Registry); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register checks: %w", err)
	}
	s.Catalog, err = LoadCatalog(s.Registry, cfg.SuitesDir)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.MetricsRegistry = prometheus.NewRegistry()
	s.MetricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.Metrics = reporting.NewMetrics(s.MetricsRegistry)

	s.EventBus = reporting.NewEventBus()
	s.Metrics.Attach(s.EventBus)
	s.closers = append(s.closers, func() error {
		s.EventBus.Close()
		return nil
	})

	s.Orchestrator = harness.NewOrchestrator(adapter,
		harness.WithEventBus(s.EventBus),
		harness.WithHistoryLimit(cfg.HistoryLimit),
	)
	logging.Info("Bootstrap", "Services ready (backend %s, %d suites)", cfg.Backend.Type, len(s.Catalog.Definitions()))
	return s, nil
}

// Close releases backend connections.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return utilerrors.NewAggregate(errs)
}

// NewAdapter connects to the configured backend. The returned closer may be
// nil.
func NewAdapter(ctx context.Context, cfg config.BackendConfig) (backend.Adapter, func() error, error) {
	switch cfg.Type {
	case config.BackendMemory, "":
		if cfg.Memory.SeedFile == "" {
			return backend.NewMemoryStore(), nil, nil
		}
		seed, err := LoadSeed(cfg.Memory.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Bootstrap", "Seeded memory backend from %s %v", cfg.Memory.SeedFile, seed.Counts())
		return backend.NewMemoryStoreFromSnapshot(seed), nil, nil

	case config.BackendRedis:
		client, err := redisstore.NewClient(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := redisstore.CheckConnection(ctx, client); err != nil {
			client.Close()
			return nil, nil, err
		}
		logging.Info("Bootstrap", "Connected to redis backend (prefix %s)", cfg.Redis.Prefix)
		return redisstore.New(client, cfg.Redis.Prefix), client.Close, nil

	case config.BackendKubernetes:
		clientset, err := newKubeClientset(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Bootstrap", "Using ConfigMaps in namespace %s", cfg.Kubernetes.Namespace)
		return kubestore.New(clientset, cfg.Kubernetes.Namespace, cfg.Kubernetes.Prefix), nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type %q", cfg.Type)
}

// LoadSeed reads a YAML snapshot file.
func LoadSeed(path string) (backend.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Snapshot{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	var snap backend.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return backend.Snapshot{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return snap, nil
}

// LoadCatalog resolves the built-in suites and then those in dir, which may
// replace built-ins by name.
func LoadCatalog(registry *harness.Registry, dir string) (*harness.Catalog, error) {
	catalog := harness.NewCatalog(registry)
	builtin, err := checks.BuiltinSuites()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in suites: %w", err)
	}
	if err := catalog.AddAll(builtin); err != nil {
		return nil, fmt.Errorf("invalid built-in suites: %w", err)
	}
	if dir == "" {
		return catalog, nil
	}

	defs, err := harness.LoadDefinitions(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	if err := catalog.AddAll(defs); err != nil {
		return nil, fmt.Errorf("invalid suites in %s: %w", dir, err)
	}
	return catalog, nil
}
