package source

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Registry holds the adapters keyed by platform, in registration order.
// The first adapter registered for PlatformYouTube is the default used for
// channels whose platform tag is not recognized.
type Registry struct {
	order    []Platform
	adapters map[Platform]Adapter
	fallback Platform
}

// NewRegistry creates a registry from adapters in the given order.
// Registering two adapters for one platform is an error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		adapters: make(map[Platform]Adapter, len(adapters)),
		fallback: PlatformYouTube,
	}
	for _, a := range adapters {
		p := a.Platform()
		if p == PlatformUnknown {
			return nil, fmt.Errorf("source: adapter %T reports unknown platform", a)
		}
		if _, dup := r.adapters[p]; dup {
			return nil, fmt.Errorf("source: duplicate adapter for %s", p)
		}
		r.adapters[p] = a
		r.order = append(r.order, p)
	}
	if len(r.order) == 0 {
		return nil, errors.New("source: no adapters registered")
	}
	if _, ok := r.adapters[r.fallback]; !ok {
		r.fallback = r.order[0]
	}
	return r, nil
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.adapters[p])
	}
	return out
}

// Default returns the adapter used for unrecognized platforms.
func (r *Registry) Default() Adapter {
	return r.adapters[r.fallback]
}

// ForPlatform returns the adapter registered for p, or the default adapter
// when p has none.
func (r *Registry) ForPlatform(p Platform) Adapter {
	if a, ok := r.adapters[p]; ok {
		return a
	}
	return r.Default()
}

// Resolution is a handle resolved to a channel on one platform.
type Resolution struct {
	Handle    string
	ChannelID string
	Platform  Platform
}

// Resolve asks each adapter in registration order to resolve handle; the
// first one that succeeds wins. Adapter failures other than
// ErrChannelNotFound are logged and the next adapter is tried. When no
// adapter resolves the handle, Resolve returns ErrChannelNotFound.
func (r *Registry) Resolve(ctx context.Context, handle string) (Resolution, error) {
	for _, p := range r.order {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		id, err := r.adapters[p].ResolveChannelID(ctx, handle)
		if err == nil && id != "" {
			return Resolution{Handle: handle, ChannelID: id, Platform: p}, nil
		}
		if err != nil && !errors.Is(err, ErrChannelNotFound) {
			log.Printf("source: %s could not resolve %q: %v", p, handle, err)
		}
	}
	return Resolution{}, fmt.Errorf("%w: %q", ErrChannelNotFound, handle)
}
