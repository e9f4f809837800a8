package handler

import (
	"fmt"
	"sort"
	"sync"
)

// Builder constructs a handler instance from manifest-supplied
// options. Builders are registered once at program start and looked
// up by name from manifest files during discovery.
type Builder func(options map[string]any) (Handler, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]Builder)
)

// RegisterBuilder makes a handler builder available under the given
// name, in the manner of database/sql driver registration. It panics
// if name is already taken or b is nil; registration happens during
// package init where a failure is a programming error.
func RegisterBuilder(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if b == nil {
		panic("handler: RegisterBuilder with nil builder")
	}
	if _, dup := builders[name]; dup {
		panic("handler: RegisterBuilder called twice for builder " + name)
	}
	builders[name] = b
}

// LookupBuilder returns the builder registered under name.
func LookupBuilder(name string) (Builder, error) {
	buildersMu.RLock()
	b, ok := builders[name]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("handler: unknown builder %q (forgotten import?)", name)
	}
	return b, nil
}

// BuilderNames lists registered builders sorted by name.
func BuilderNames() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unregisterBuilder removes a builder. Tests only.
func unregisterBuilder(name string) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	delete(builders, name)
}
