// Package capability detects optional backend features at runtime.
package capability

import (
	"context"
	"sync"
	"sync/atomic"
)

// Flag is the resolved state of a capability.
type Flag int32

const (
	Unknown Flag = iota
	Supported
	Unsupported
)

func (f Flag) String() string {
	switch f {
	case Supported:
		return "supported"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Prober resolves a capability exactly once, using the first request that
// needs it as the probe. Once resolved the flag never changes.
type Prober struct {
	name  string
	state atomic.Int32
	mu    sync.Mutex

	onResolve func(name string, f Flag)
}

// NewProber creates a prober in the Unknown state. onResolve, if non-nil, is
// called once when the flag resolves.
func NewProber(name string, onResolve func(name string, f Flag)) *Prober {
	return &Prober{name: name, onResolve: onResolve}
}

// State returns the current flag.
func (p *Prober) State() Flag {
	return Flag(p.state.Load())
}

// Do runs a request that would like to use the capability. While the flag is
// Unknown, probe is issued and its outcome resolves the flag: nil error means
// Supported, any error means Unsupported and triggers one call to fallback.
// Once Supported, probe is always used; once Unsupported, fallback is.
//
// The boolean result reports whether the capability was applied by the
// server, so callers know when they must apply it themselves.
func Do[T any](ctx context.Context, p *Prober, probe, fallback func(context.Context) (T, error)) (T, bool, error) {
	switch p.State() {
	case Supported:
		v, err := probe(ctx)
		return v, true, err
	case Unsupported:
		v, err := fallback(ctx)
		return v, false, err
	}

	p.mu.Lock()
	if p.State() != Unknown {
		p.mu.Unlock()
		return Do(ctx, p, probe, fallback)
	}

	v, err := probe(ctx)
	if err == nil {
		p.resolve(Supported)
		p.mu.Unlock()
		return v, true, nil
	}
	if ctx.Err() != nil {
		// The caller gave up; that says nothing about the server.
		p.mu.Unlock()
		var zero T
		return zero, false, ctx.Err()
	}
	p.resolve(Unsupported)
	p.mu.Unlock()

	v, err = fallback(ctx)
	return v, false, err
}

func (p *Prober) resolve(f Flag) {
	p.state.Store(int32(f))
	if p.onResolve != nil {
		p.onResolve(p.name, f)
	}
}
