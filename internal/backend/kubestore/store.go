// Package kubestore implements the backend contract on Kubernetes ConfigMaps:
// one ConfigMap per collection, holding the ordered records as a JSON array.
// It lets a shared staging namespace act as the live data store.
package kubestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/pkg/logging"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	subsystem = "KubeStore"

	// DataKey is the ConfigMap key holding the records.
	DataKey = "records.json"

	managedByLabel  = "app.kubernetes.io/managed-by"
	collectionLabel = "mentorctl.io/collection"
)

// DefaultPrefix is prepended to every ConfigMap name.
const DefaultPrefix = "mentorctl"

// NewClientsetFromConfig is a package-level variable so tests can swap the
// clientset constructor.
var NewClientsetFromConfig = func(c *rest.Config) (kubernetes.Interface, error) {
	return kubernetes.NewForConfig(c)
}

// NewClientset loads a kubeconfig (default loading rules when path is empty)
// for the given context.
func NewClientset(kubeconfig, kubeContext string) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for context %q: %w", kubeContext, err)
	}
	restConfig.Timeout = 15 * time.Second

	clientset, err := NewClientsetFromConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	return clientset, nil
}

// Store is a ConfigMap-backed backend.Adapter.
type Store struct {
	client    kubernetes.Interface
	namespace string
	prefix    string
}

// New creates a store writing into namespace.
func New(client kubernetes.Interface, namespace, prefix string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, namespace: namespace, prefix: prefix}
}

func (s *Store) name(c backend.Collection) string {
	return s.prefix + "-" + string(c)
}

func (s *Store) ReadAll(ctx context.Context, c backend.Collection) ([]backend.Record, error) {
	records, _, err := s.load(ctx, c)
	return records, err
}

// load returns the decoded records and the ConfigMap they came from (nil when
// the collection has never been written).
func (s *Store) load(ctx context.Context, c backend.Collection) ([]backend.Record, *corev1.ConfigMap, error) {
	if _, err := backend.ParseCollection(string(c)); err != nil {
		return nil, nil, err
	}
	cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name(c), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return []backend.Record{}, nil, nil
	}
	if err != nil {
		return nil, nil, classify("read "+string(c), err)
	}
	records, err := backend.DecodeRecords(c, []byte(cm.Data[DataKey]))
	if err != nil {
		return nil, nil, err
	}
	return records, cm, nil
}

func (s *Store) ReplaceAll(ctx context.Context, c backend.Collection, records []backend.Record) error {
	if err := backend.CheckRecords(c, records); err != nil {
		return err
	}
	_, cm, err := s.load(ctx, c)
	if err != nil {
		return err
	}
	return s.store(ctx, c, cm, records)
}

func (s *Store) store(ctx context.Context, c backend.Collection, cm *corev1.ConfigMap, records []backend.Record) error {
	data, err := backend.EncodeRecords(records)
	if err != nil {
		return err
	}

	if cm == nil {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      s.name(c),
				Namespace: s.namespace,
				Labels: map[string]string{
					managedByLabel:  "mentorctl",
					collectionLabel: string(c),
				},
			},
			Data: map[string]string{DataKey: string(data)},
		}
		if _, err := s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return classify("create "+string(c), err)
		}
		logging.Debug(subsystem, "Created ConfigMap %s/%s", s.namespace, cm.Name)
		return nil
	}

	updated := cm.DeepCopy()
	if updated.Data == nil {
		updated.Data = map[string]string{}
	}
	updated.Data[DataKey] = string(data)
	if _, err := s.client.CoreV1().ConfigMaps(s.namespace).Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return classify("update "+string(c), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, c backend.Collection, key string) (backend.Record, error) {
	records, err := s.ReadAll(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Key() == key {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", c, key, backend.ErrNotFound)
}

func (s *Store) Put(ctx context.Context, r backend.Record) error {
	if r == nil {
		return fmt.Errorf("cannot put nil record")
	}
	c := r.Collection()
	records, cm, err := s.load(ctx, c)
	if err != nil {
		return err
	}
	for i, existing := range records {
		if existing.Key() == r.Key() {
			records[i] = r
			return s.store(ctx, c, cm, records)
		}
	}
	return s.store(ctx, c, cm, append(records, r))
}

func (s *Store) Delete(ctx context.Context, c backend.Collection, key string) error {
	records, cm, err := s.load(ctx, c)
	if err != nil {
		return err
	}
	for i, existing := range records {
		if existing.Key() == key {
			return s.store(ctx, c, cm, append(records[:i:i], records[i+1:]...))
		}
	}
	return fmt.Errorf("%s/%s: %w", c, key, backend.ErrNotFound)
}

// classify marks API server back-pressure, timeouts, optimistic-lock
// conflicts and network failures as transient.
func classify(op string, err error) error {
	var netErr net.Error
	switch {
	case apierrors.IsConflict(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsServiceUnavailable(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return backend.Transient(op, err)
	default:
		return fmt.Errorf("kubernetes %s: %w", op, err)
	}
}
