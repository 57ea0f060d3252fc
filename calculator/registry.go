package calculator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/datar-psa/mtdetect/api"
)

// Factory builds one metric backend from its configuration.
type Factory struct {
	// Keys lists the accepted configuration keys. Any other key is a
	// configuration error.
	Keys []string
	// Validate checks cfg without loading any model. Nil accepts any cfg
	// whose keys are listed in Keys.
	Validate func(cfg api.MetricConfig) error
	// Columns reports the frame columns the backend reads besides the
	// required ones. Nil means none.
	Columns func(cfg api.MetricConfig) []string
	// New instantiates the backend. A missing model or optional
	// dependency is reported as *api.MetricUnavailableError.
	New func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error)
}

// Registry maps metric names to factories. Names are case-sensitive.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("metric name is required")
	}
	if f.New == nil {
		return fmt.Errorf("metric %s: factory has no constructor", name)
	}
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("metric %s already registered", name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// columns returns the extra frame columns name reads under cfg.
func (r *Registry) columns(name string, cfg api.MetricConfig) []string {
	f := r.factories[name]
	if f.Columns == nil {
		return nil
	}
	return f.Columns(cfg)
}

// validate checks cfg against the factory of name.
func (r *Registry) validate(name string, cfg api.MetricConfig) error {
	f := r.factories[name]
	var unknown []string
	for k := range cfg {
		if !slices.Contains(f.Keys, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return api.NewConfigurationError(name, unknown[0],
			fmt.Sprintf("unknown configuration keys %s (accepted: %s)", strings.Join(unknown, ", "), strings.Join(f.Keys, ", ")))
	}
	if f.Validate == nil {
		return nil
	}
	return f.Validate(cfg)
}
