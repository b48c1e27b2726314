package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/telemetry"
)

// ErrNotLoaded is returned by Registry.Active before the first successful load.
var ErrNotLoaded = errors.New("no catalog loaded")

// Loader builds a fresh catalog.
type Loader func(ctx context.Context) (*Catalog, error)

// LoaderFor returns a Loader reading the manifest at loc.
func LoaderFor(loc content.Location, opts ...Option) Loader {
	return func(ctx context.Context) (*Catalog, error) {
		return Load(ctx, loc, opts...)
	}
}

// SwapFunc observes a successful reload.
type SwapFunc func(ctx context.Context, prev, next *Catalog)

// Registry holds the active catalog. Readers take a snapshot with Current
// and keep using it; Reload replaces the active catalog only when the new
// one loads cleanly.
type Registry struct {
	loader  Loader
	current atomic.Pointer[Catalog]

	mu     sync.Mutex
	onSwap []SwapFunc
}

// NewRegistry returns a registry that loads catalogs with loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader}
}

// NewStaticRegistry returns a registry serving c. Reload on it rebuilds
// nothing and keeps c.
func NewStaticRegistry(c *Catalog) *Registry {
	r := &Registry{loader: func(context.Context) (*Catalog, error) { return c, nil }}
	r.current.Store(c)
	return r
}

// Current returns the active catalog, or nil before the first load.
func (r *Registry) Current() *Catalog {
	return r.current.Load()
}

// Active returns the active catalog or ErrNotLoaded.
func (r *Registry) Active() (*Catalog, error) {
	c := r.current.Load()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c, nil
}

// OnSwap registers fn to run after each successful swap.
func (r *Registry) OnSwap(fn SwapFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwap = append(r.onSwap, fn)
}

// Reload builds a new catalog and makes it active. On failure the previous
// catalog stays active and the error is returned.
func (r *Registry) Reload(ctx context.Context) (next *Catalog, err error) {
	ctx, span := telemetry.Start(ctx, "catalog.reload")
	defer telemetry.Finish(span, &err)

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err = r.loader(ctx)
	if err != nil {
		log := logger.G(ctx).WithError(err)
		if prev := r.current.Load(); prev != nil {
			log = log.WithField("digest", prev.Digest().String())
		}
		log.Warn("catalog reload failed, keeping the active catalog")
		return nil, err
	}

	prev := r.current.Swap(next)
	span.SetAttributes(telemetry.KeyDigest.String(next.Digest().String()))

	fields := logger.G(ctx).
		WithField("plugins", next.Len()).
		WithField("digest", next.Digest().String())
	if prev != nil && prev.Digest() == next.Digest() {
		fields.Debug("catalog reloaded without changes")
	} else {
		fields.Info("catalog activated")
	}

	for _, fn := range r.onSwap {
		fn(ctx, prev, next)
	}
	return next, nil
}
