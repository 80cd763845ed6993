package surface

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/surfaceblend/internal/assets"
	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/pkg/blend"
)

// ErrUnknownSurface is returned for names not in the registry.
var ErrUnknownSurface = errors.New("unknown surface")

// Registry holds named surfaces. Readers get the surface current at lookup
// time; a reload swaps in a fully built replacement, so in-flight queries
// keep using the old one.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface

	assets *assets.Manager
	opts   []blend.Option
}

// NewRegistry creates a registry that loads with am and opts.
func NewRegistry(am *assets.Manager, opts ...blend.Option) *Registry {
	if am == nil {
		am = assets.NewManager()
	}
	return &Registry{
		surfaces: make(map[string]*Surface),
		assets:   am,
		opts:     opts,
	}
}

// Get returns the named surface.
func (r *Registry) Get(name string) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[name]
	return s, ok
}

// Put stores s under its name and returns the surface it replaced, if any.
// The replaced surface's batch pool is released; it still resolves queries.
func (r *Registry) Put(s *Surface) *Surface {
	r.mu.Lock()
	old := r.surfaces[s.Name]
	r.surfaces[s.Name] = s
	r.mu.Unlock()

	if old != nil && old != s {
		old.Close()
	}
	return old
}

// Remove deletes the named surface and releases its batch pool.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	old, ok := r.surfaces[name]
	delete(r.surfaces, name)
	r.mu.Unlock()

	if ok {
		old.Close()
	}
}

// Close releases the batch pools of every registered surface. The surfaces
// stay registered and keep resolving.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.surfaces {
		s.Close()
	}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.surfaces))
	for name := range r.surfaces {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces)
}

// LoadFile loads the definition at path and registers it.
func (r *Registry) LoadFile(path string) (*Surface, error) {
	s, err := Load(path, r.assets, r.opts...)
	if err != nil {
		return nil, err
	}
	if old := r.Put(s); old != nil {
		logger.Info("surface replaced", zap.String("name", s.Name), zap.String("path", path))
	}
	return s, nil
}

// Reload rebuilds the named surface from its file. On failure the current
// surface stays registered.
func (r *Registry) Reload(name string) (*Surface, error) {
	cur, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownSurface)
	}
	if cur.Path == "" {
		return nil, fmt.Errorf("%s: not loaded from a file", name)
	}

	r.assets.Close()
	next, err := Load(cur.Path, r.assets, r.opts...)
	if err != nil {
		logger.Warn("surface reload failed, keeping previous",
			zap.String("name", name),
			zap.Error(err))
		return nil, err
	}
	next.Name = name

	r.Put(next)
	logger.Info("surface reloaded", zap.String("name", name), zap.String("path", cur.Path))
	return next, nil
}

// Resolve looks up name and resolves q on it.
func (r *Registry) Resolve(name string, q blend.Query) (blend.Result, error) {
	s, ok := r.Get(name)
	if !ok {
		return blend.Result{}, fmt.Errorf("%s: %w", name, ErrUnknownSurface)
	}
	return s.Resolve(q), nil
}
