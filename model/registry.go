package model

import (
	"fmt"
	"sort"
)

// Factory constructs a fresh model instance.
type Factory func() (Model, error)

var registry = map[string]Factory{}

// Register adds a model factory under the given name. Model adapter
// packages call this from init. Registering the same name twice panics:
// it indicates two adapters built into one binary claiming the same
// model.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("model: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// New constructs a registered model by name.
func New(name string) (Model, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("model: unknown model %q (available: %v)", name, List())
	}
	return factory()
}

// List returns the registered model names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
