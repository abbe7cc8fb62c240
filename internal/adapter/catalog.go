package adapter

import (
	"context"
	"fmt"
	"sync"
)

// Catalog is the ordered model list and the backend that serves each entry.
type Catalog struct {
	mu       sync.RWMutex
	models   []ModelDescriptor
	backends map[string]Backend
	byModel  map[string]Backend
}

func NewCatalog() *Catalog {
	return &Catalog{
		backends: make(map[string]Backend),
		byModel:  make(map[string]Backend),
	}
}

// Add registers desc as served by b. Duplicate model IDs are rejected.
func (c *Catalog) Add(desc ModelDescriptor, b Backend) error {
	if desc.ID == "" {
		return fmt.Errorf("catalog: model id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byModel[desc.ID]; ok {
		return fmt.Errorf("catalog: duplicate model %q", desc.ID)
	}
	c.addLocked(desc, b)
	return nil
}

// addLocked appends desc. c.mu must be held for writing.
func (c *Catalog) addLocked(desc ModelDescriptor, b Backend) {
	if desc.Name == "" {
		desc.Name = desc.ID
	}
	if desc.Provider == "" {
		desc.Provider = b.Provider()
	}
	c.models = append(c.models, desc)
	c.byModel[desc.ID] = b
	c.backends[b.Provider()] = b
}

// Discover appends the models a Lister backend reports, skipping known IDs.
// Backends that cannot list are a no-op.
func (c *Catalog) Discover(ctx context.Context, b Backend) (int, error) {
	l, ok := b.(Lister)
	if !ok {
		return 0, nil
	}
	listed, err := l.Models(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: discover %s: %w", b.Provider(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, d := range listed {
		if d.ID == "" {
			continue
		}
		if _, exists := c.byModel[d.ID]; exists {
			continue
		}
		c.addLocked(d, b)
		added++
	}
	return added, nil
}

// Lookup returns the descriptor and backend for id.
func (c *Catalog) Lookup(id string) (ModelDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.models {
		if d.ID == id {
			return d, true
		}
	}
	return ModelDescriptor{}, false
}

// Backend returns the backend serving model id.
func (c *Catalog) Backend(id string) (Backend, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.byModel[id]
	return b, ok
}

// Models returns a copy of the descriptor list in registration order.
func (c *Catalog) Models() []ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

// Backends returns the registered backends keyed by provider.
func (c *Catalog) Backends() map[string]Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Backend, len(c.backends))
	for k, v := range c.backends {
		out[k] = v
	}
	return out
}

// Len reports the number of registered models.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
