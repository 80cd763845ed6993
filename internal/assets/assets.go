// Package assets resolves and caches blend map images.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/surfaceblend/internal/logger"
	"github.com/Faultbox/surfaceblend/internal/texture"
	"github.com/Faultbox/surfaceblend/pkg/blend"
)

// ErrNotFound is returned when no search path holds the requested file.
var ErrNotFound = errors.New("asset not found")

// Manager finds images on a list of search paths and caches the decoded
// textures. It is safe for concurrent use.
type Manager struct {
	paths []string
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates a manager searching paths in order.
func NewManager(paths ...string) *Manager {
	m := &Manager{cache: NewCache()}
	for _, p := range paths {
		m.AddPath(p)
	}
	return m
}

// AddPath appends a search directory. Later paths have lower priority.
func (m *Manager) AddPath(dir string) {
	m.mu.Lock()
	m.paths = append(m.paths, filepath.Clean(dir))
	m.mu.Unlock()
}

// Paths returns a copy of the search paths.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Resolve returns the first existing file for name. Absolute names are used
// as-is; relative ones are tried against base (if set) and then each search
// path.
func (m *Manager) Resolve(name, base string) (string, error) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	var candidates []string
	if base != "" {
		candidates = append(candidates, filepath.Join(base, name))
	}
	m.mu.RLock()
	for _, dir := range m.paths {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	m.mu.RUnlock()

	for _, path := range candidates {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s (searched %d paths): %w", name, len(candidates), ErrNotFound)
}

// Texture loads name as a sampling texture with the given wrap mode.
// Decoded textures are cached by resolved path and wrap mode.
func (m *Manager) Texture(name, base string, wrap blend.WrapMode) (*blend.Texture, error) {
	path, err := m.Resolve(name, base)
	if err != nil {
		return nil, err
	}
	key := Key{Path: path, Wrap: wrap}
	if tex, ok := m.cache.Get(key); ok {
		return tex, nil
	}

	img, err := texture.Load(path)
	if err != nil {
		return nil, err
	}
	tex := blend.NewTexture(img, wrap)
	m.cache.Set(key, tex)

	w, h := tex.Size()
	logger.Debug("texture loaded",
		zap.String("path", path),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Stringer("wrap", wrap))
	return tex, nil
}

// Close drops every cached texture.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Key identifies a cached texture.
type Key struct {
	Path string
	Wrap blend.WrapMode
}

// Cache is an in-memory texture cache.
type Cache struct {
	data map[Key]*blend.Texture
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[Key]*blend.Texture),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key Key) (*blend.Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tex, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return tex, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key Key, tex *blend.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = tex
}

// Len returns the number of cached textures.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[Key]*blend.Texture)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
