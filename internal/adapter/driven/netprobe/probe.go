// Package netprobe implements the ConnectivityProbe port by combining a
// reachability dial with network interface classification.
package netprobe

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConnectivityProbe = (*Probe)(nil)

// defaultTarget is a well-known anycast endpoint used purely as a
// reachability check, no payload is exchanged beyond the TCP handshake.
const defaultTarget = "1.1.1.1:443"

// Probe determines the device's current connectivity by dialing a known
// endpoint and classifying the active network interfaces. Results are
// cached briefly so hot read paths don't dial on every call.
type Probe struct {
	target   string
	dialer   *net.Dialer
	cacheTTL time.Duration

	interfaces func() ([]net.Interface, error)
	now        func() time.Time

	mu        sync.Mutex
	cached    model.Connectivity
	checkedAt time.Time
}

// Option configures a Probe.
type Option func(*Probe)

// WithTarget overrides the reachability endpoint. Intended for tests.
func WithTarget(target string) Option {
	return func(p *Probe) { p.target = target }
}

// WithCacheTTL overrides how long a probe result is reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Probe) { p.cacheTTL = ttl }
}

// WithInterfaceLister overrides interface enumeration. Intended for tests.
func WithInterfaceLister(fn func() ([]net.Interface, error)) Option {
	return func(p *Probe) { p.interfaces = fn }
}

// New creates a connectivity probe with a 3 second dial timeout and a
// 5 second result cache.
func New(opts ...Option) *Probe {
	p := &Probe{
		target:     defaultTarget,
		dialer:     &net.Dialer{Timeout: 3 * time.Second},
		cacheTTL:   5 * time.Second,
		interfaces: net.Interfaces,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check reports the current connectivity. A cached result younger than
// the cache TTL is returned without dialing.
func (p *Probe) Check(ctx context.Context) model.Connectivity {
	p.mu.Lock()
	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.cacheTTL {
		cached := p.cached
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	result := p.probe(ctx)

	p.mu.Lock()
	p.cached = result
	p.checkedAt = p.now()
	p.mu.Unlock()

	return result
}

func (p *Probe) probe(ctx context.Context) model.Connectivity {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.target)
	if err != nil {
		return model.ConnectivityNone
	}
	_ = conn.Close()

	return p.classify()
}

// classify inspects the up, non-loopback interfaces to distinguish WiFi
// from cellular. Wired and unrecognized interfaces count as WiFi: what
// matters upstream is the metered/unmetered split.
func (p *Probe) classify() model.Connectivity {
	ifaces, err := p.interfaces()
	if err != nil {
		// The dial already succeeded, so some transport exists.
		return model.ConnectivityWiFi
	}

	sawCellular := false
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		switch {
		case strings.HasPrefix(name, "wl") || strings.HasPrefix(name, "wifi") ||
			strings.HasPrefix(name, "en") || strings.HasPrefix(name, "eth"):
			return model.ConnectivityWiFi
		case strings.HasPrefix(name, "wwan") || strings.HasPrefix(name, "rmnet") ||
			strings.HasPrefix(name, "pdp"):
			sawCellular = true
		}
	}

	if sawCellular {
		return model.ConnectivityCellular
	}
	return model.ConnectivityWiFi
}
