// Package registry discovers handler implementations declared in a
// directory of manifest files and instantiates them on demand.
//
// Discovery classifies each built handler by structural conformance:
// the instance is probed against the four role contracts and one
// descriptor is recorded per contract it satisfies. Nothing is
// inferred from file or builder names.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/changyy/captcha-ocr-devkit/pkg/handler"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
)

var (
	ErrUnknownRole     = errors.New("unknown handler role")
	ErrHandlerNotFound = errors.New("handler not found")
)

// Descriptor is the catalog entry for one discovered handler role.
type Descriptor struct {
	Role       handler.Role
	Identifier string
	Version    string
	// Source is the manifest file that contributed this entry.
	Source  string
	factory func() (handler.Handler, error)
}

// Registry maps discovered handler descriptors and produces live
// instances on request. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// descriptors[role][identifier], plus an order slice per role so
	// Discover output is reproducible.
	descriptors map[handler.Role]map[string]*Descriptor
	order       map[handler.Role][]string
	// contributions remembers which (role, identifier) pairs each
	// directory produced, so re-discovery replaces rather than
	// accumulates.
	contributions map[string][]roleKey
}

type roleKey struct {
	role handler.Role
	id   string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		descriptors:   make(map[handler.Role]map[string]*Descriptor),
		order:         make(map[handler.Role][]string),
		contributions: make(map[string][]roleKey),
	}
}

// Discover scans the top-level manifest files of dir in lexicographic
// order, builds every declared handler, and records one descriptor per
// role contract each instance satisfies. Files that are not manifests,
// manifests that fail to decode, and entries whose builder is not
// registered are skipped with a warning. Running Discover twice on the
// same directory yields the same catalog contents.
func (r *Registry) Discover(dir string) (map[handler.Role][]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve handlers directory: %w", err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("read handlers directory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropContributionsLocked(absDir)

	// os.ReadDir returns entries sorted by name, which fixes the
	// collision order: a later file overwrites an earlier one.
	for _, entry := range entries {
		if entry.IsDir() || !manifestExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		path := filepath.Join(absDir, entry.Name())
		m, err := LoadManifest(path)
		if err != nil {
			logger.Warn("skipping unreadable handler manifest", "path", path, "error", err)
			continue
		}
		r.registerManifestLocked(absDir, path, m)
	}

	return r.snapshotLocked(), nil
}

func (r *Registry) registerManifestLocked(dir, source string, m *Manifest) {
	for _, entry := range m.Handlers {
		build, err := handler.LookupBuilder(entry.Builder)
		if err != nil {
			logger.Warn("skipping handler with unknown builder",
				"manifest", source, "builder", entry.Builder)
			continue
		}

		options := entry.Options
		probe, err := build(options)
		if err != nil {
			logger.Warn("skipping handler that failed to build",
				"manifest", source, "builder", entry.Builder, "error", err)
			continue
		}

		identifier := probe.Name()
		version := handler.Version(probe)
		factory := func() (handler.Handler, error) { return build(options) }

		registered := 0
		for _, role := range conformingRoles(probe) {
			r.putLocked(dir, &Descriptor{
				Role:       role,
				Identifier: identifier,
				Version:    version,
				Source:     source,
				factory:    factory,
			})
			registered++
		}
		if registered == 0 {
			logger.Warn("handler satisfies no role contract",
				"manifest", source, "builder", entry.Builder, "identifier", identifier)
		}
	}
}

// conformingRoles probes the instance against each role contract.
func conformingRoles(h handler.Handler) []handler.Role {
	var roles []handler.Role
	if _, ok := h.(handler.Preprocess); ok {
		roles = append(roles, handler.RolePreprocess)
	}
	if _, ok := h.(handler.Train); ok {
		roles = append(roles, handler.RoleTrain)
	}
	if _, ok := h.(handler.Evaluate); ok {
		roles = append(roles, handler.RoleEvaluate)
	}
	if _, ok := h.(handler.OCR); ok {
		roles = append(roles, handler.RoleOCR)
	}
	return roles
}

func (r *Registry) putLocked(dir string, d *Descriptor) {
	byID, ok := r.descriptors[d.Role]
	if !ok {
		byID = make(map[string]*Descriptor)
		r.descriptors[d.Role] = byID
	}
	if _, exists := byID[d.Identifier]; !exists {
		r.order[d.Role] = append(r.order[d.Role], d.Identifier)
	}
	byID[d.Identifier] = d
	r.contributions[dir] = append(r.contributions[dir], roleKey{d.Role, d.Identifier})
}

func (r *Registry) dropContributionsLocked(dir string) {
	for _, key := range r.contributions[dir] {
		byID := r.descriptors[key.role]
		if byID == nil {
			continue
		}
		if d, ok := byID[key.id]; ok && filepath.Dir(d.Source) == dir {
			delete(byID, key.id)
			r.order[key.role] = removeString(r.order[key.role], key.id)
		}
	}
	delete(r.contributions, dir)
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (r *Registry) snapshotLocked() map[handler.Role][]string {
	snapshot := make(map[handler.Role][]string, len(handler.Roles()))
	for _, role := range handler.Roles() {
		ids := make([]string, len(r.order[role]))
		copy(ids, r.order[role])
		snapshot[role] = ids
	}
	return snapshot
}

// List returns the discovered identifiers per role.
func (r *Registry) List() map[handler.Role][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Descriptor looks up the catalog entry for (role, identifier).
func (r *Registry) Descriptor(role handler.Role, identifier string) (*Descriptor, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[role][identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrHandlerNotFound, role, identifier)
	}
	return d, nil
}

// Descriptors returns every catalog entry in role order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Descriptor
	for _, role := range handler.Roles() {
		for _, id := range r.order[role] {
			out = append(out, r.descriptors[role][id])
		}
	}
	return out
}

// Create instantiates a fresh handler for (role, identifier). The
// registry is a catalog, not a cache: every call builds a new
// instance, and callers that need a long-lived handler hold on to the
// returned value themselves.
func (r *Registry) Create(role handler.Role, identifier string) (handler.Handler, error) {
	d, err := r.Descriptor(role, identifier)
	if err != nil {
		return nil, err
	}

	h, err := d.factory()
	if err != nil {
		return nil, fmt.Errorf("build handler %s/%s: %w", role, identifier, err)
	}
	return h, nil
}

// CreatePreprocess creates a Preprocess handler instance.
func (r *Registry) CreatePreprocess(identifier string) (handler.Preprocess, error) {
	h, err := r.Create(handler.RolePreprocess, identifier)
	if err != nil {
		return nil, err
	}
	p, ok := h.(handler.Preprocess)
	if !ok {
		return nil, fmt.Errorf("handler %s does not satisfy the preprocess contract", identifier)
	}
	return p, nil
}

// CreateTrain creates a Train handler instance.
func (r *Registry) CreateTrain(identifier string) (handler.Train, error) {
	h, err := r.Create(handler.RoleTrain, identifier)
	if err != nil {
		return nil, err
	}
	t, ok := h.(handler.Train)
	if !ok {
		return nil, fmt.Errorf("handler %s does not satisfy the train contract", identifier)
	}
	return t, nil
}

// CreateEvaluate creates an Evaluate handler instance.
func (r *Registry) CreateEvaluate(identifier string) (handler.Evaluate, error) {
	h, err := r.Create(handler.RoleEvaluate, identifier)
	if err != nil {
		return nil, err
	}
	e, ok := h.(handler.Evaluate)
	if !ok {
		return nil, fmt.Errorf("handler %s does not satisfy the evaluate contract", identifier)
	}
	return e, nil
}

// CreateOCR creates an OCR handler instance.
func (r *Registry) CreateOCR(identifier string) (handler.OCR, error) {
	h, err := r.Create(handler.RoleOCR, identifier)
	if err != nil {
		return nil, err
	}
	o, ok := h.(handler.OCR)
	if !ok {
		return nil, fmt.Errorf("handler %s does not satisfy the ocr contract", identifier)
	}
	return o, nil
}

// Count returns the number of catalog entries across all roles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, byID := range r.descriptors {
		n += len(byID)
	}
	return n
}
