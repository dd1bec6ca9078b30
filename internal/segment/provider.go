package segment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// Provider classifies every pixel of a raster. Implementations wrap a model
// whose internals are opaque to this package; Segment may block for a long
// time and should honor ctx.
//
// Providers must treat the input raster as read-only: the same raster may be
// handed to several providers concurrently.
type Provider interface {
	Segment(ctx context.Context, in *raster.Raster) (*Result, error)
}

// Readiness is implemented by providers whose model loads asynchronously.
// Run refuses to call a provider that reports false.
type Readiness interface {
	Ready() bool
}

// Named is implemented by providers that can report which model they wrap.
type Named interface {
	Name() string
}

// Result is a renderable segmentation: a 4-channel color raster plus the
// legend explaining its colors. Each call produces a fresh Result owned by
// the caller.
type Result struct {
	Raster *raster.Raster `json:"raster"`
	Legend Legend         `json:"legend"`
}

// Factory constructs a ready provider. The model variant is fixed at
// construction time.
type Factory func(ctx context.Context, cfg config.Config) (Provider, error)

// Registration describes a registered provider.
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register adds a named provider. It panics on a duplicate name or a nil
// factory, both of which are programming errors.
func Register(name, description string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, old := registry[name]; old {
		panic(fmt.Sprintf("segment: provider %q registered twice", name))
	}
	if f == nil {
		panic(fmt.Sprintf("segment: nil factory for provider %q", name))
	}
	registry[name] = Registration{Name: name, Description: description, Factory: f}
}

// Lookup returns the registration for name.
func Lookup(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r, ok
}

// Registrations returns every registration sorted by name.
func Registrations() []Registration {
	registryMu.RLock()
	defer registryMu.RUnlock()

	regs := make([]Registration, 0, len(registry))
	for _, r := range registry {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })
	return regs
}

// Names returns the registered provider names in sorted order.
func Names() []string {
	regs := Registrations()
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.Name
	}
	return names
}

// unregister is used by tests to keep the registry clean.
func unregister(name string) {
	registryMu.Lock()
	delete(registry, name)
	registryMu.Unlock()
}
