package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// TestDefinition is one entry of a suite file.
type TestDefinition struct {
	Name   string            `yaml:"name" json:"name"`
	Check  string            `yaml:"check" json:"check"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Definition is a suite as written in YAML.
type Definition struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Tests       []TestDefinition `yaml:"tests" json:"tests"`
}

// TestCase is a test bound to its check implementation.
type TestCase struct {
	TestDefinition
	Run Check
}

// Suite is a resolved definition ready to run.
type Suite struct {
	Name        string
	Description string
	Tests       []TestCase
}

// ParseDefinition decodes a suite file. Unknown fields are rejected.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Validate checks the structure of a definition.
func (d Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("suite name is required"))
	}
	if len(d.Tests) == 0 {
		errs = append(errs, fmt.Errorf("suite %q has no tests", d.Name))
	}
	seen := make(map[string]bool, len(d.Tests))
	for i, t := range d.Tests {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tests[%d]: name is required", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("tests[%d]: duplicate test name %q", i, t.Name))
		}
		seen[t.Name] = true
		if t.Check == "" {
			errs = append(errs, fmt.Errorf("tests[%d]: check is required", i))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Resolve binds every test of def to its check.
func (r *Registry) Resolve(def Definition) (Suite, error) {
	suite := Suite{Name: def.Name, Description: def.Description}
	var errs []error
	for _, t := range def.Tests {
		fn, err := r.Lookup(t.Check)
		if err != nil {
			errs = append(errs, fmt.Errorf("suite %q test %q: %w", def.Name, t.Name, err))
			continue
		}
		suite.Tests = append(suite.Tests, TestCase{TestDefinition: t, Run: fn})
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return Suite{}, err
	}
	return suite, nil
}

// LoadDefinitions reads every *.yaml and *.yml file in dir of fsys, sorted
// by file name.
func LoadDefinitions(fsys fs.FS, dir string) ([]Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suites directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var defs []Definition
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		def, err := ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Catalog holds the suites available to run, each already resolved.
type Catalog struct {
	mu       sync.RWMutex
	registry *Registry
	defs     map[string]Definition
	suites   map[string]Suite
}

// NewCatalog creates an empty catalog resolving against registry.
func NewCatalog(registry *Registry) *Catalog {
	return &Catalog{
		registry: registry,
		defs:     make(map[string]Definition),
		suites:   make(map[string]Suite),
	}
}

// Add resolves and stores def. A later definition with the same name
// replaces the earlier one, so project suites can override built-ins.
func (c *Catalog) Add(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	suite, err := c.registry.Resolve(def)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name] = def
	c.suites[def.Name] = suite
	return nil
}

// AddAll adds every definition and reports all failures together.
func (c *Catalog) AddAll(defs []Definition) error {
	var errs []error
	for _, def := range defs {
		if err := c.Add(def); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Suite returns the resolved suite called name.
func (c *Catalog) Suite(name string) (Suite, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.suites[name]
	return s, ok
}

// Definitions returns all definitions sorted by name.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
