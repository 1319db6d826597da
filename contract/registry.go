// Package contract validates HTTP API responses against JSON Schemas during
// end-to-end tests, catching contract drift (renamed fields, type changes,
// dropped properties) that functional assertions slide past.
//
// Schemas are compiled once into a Registry under a caller-chosen name and
// then applied to raw JSON documents or live *http.Response bodies. A failed
// validation is data (a *Violations report), not an error: the test decides
// whether a violation fails it.
package contract

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/studytab/e2ekit/internal/sentinel"
)

// ErrSchemaNotFound is returned by Validate and ValidateResponse when no
// schema is registered under the requested name.
const ErrSchemaNotFound = sentinel.Error("schema not found")

// Registry holds named, compiled JSON Schemas. It is safe for concurrent
// use by multiple goroutines.
type Registry struct {
	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
	logger  *slog.Logger
}

// registryConfig collects option values before NewRegistry assembles the
// Registry.
type registryConfig struct {
	logger *slog.Logger
}

// Option configures a Registry during construction via NewRegistry.
type Option func(*registryConfig)

// WithLogger sets the logger for registration events. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = l
	}
}

// NewRegistry creates an empty schema registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := registryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger,
	}
}

// Register compiles schemaJSON and stores it under name. Registering a name
// twice is an error: silently replacing a schema mid-suite would make test
// results depend on registration order.
func (r *Registry) Register(name string, schemaJSON []byte) error {
	if name == "" {
		return fmt.Errorf("schema name must not be empty")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[name]; exists {
		return fmt.Errorf("schema %q already registered", name)
	}
	r.schemas[name] = schema

	r.logger.Debug("schema registered", "name", name)
	return nil
}

// MustRegister is Register that panics on error. Intended for package-level
// registration of embedded schemas, where a bad schema is a programmer error
// caught on the first run; the pattern mirrors [regexp.MustCompile].
func (r *Registry) MustRegister(name string, schemaJSON []byte) {
	if err := r.Register(name, schemaJSON); err != nil {
		panic(fmt.Sprintf("contract: %v", err))
	}
}

// RegisterFile reads a schema from path and registers it under name.
func (r *Registry) RegisterFile(name, path string) error {
	schemaJSON, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	return r.Register(name, schemaJSON)
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// schema returns the compiled schema for name, or ErrSchemaNotFound.
func (r *Registry) schema(name string) (*gojsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	return s, nil
}
