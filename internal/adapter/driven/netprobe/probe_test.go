package netprobe

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvalenta/pilltrack/internal/domain/model"
)

// reachableTarget returns the host:port of a listening local server.
func reachableTarget(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(nil)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func ifaceLister(names ...string) func() ([]net.Interface, error) {
	ifaces := make([]net.Interface, 0, len(names))
	for i, name := range names {
		ifaces = append(ifaces, net.Interface{
			Index: i + 1,
			Name:  name,
			Flags: net.FlagUp,
		})
	}
	return func() ([]net.Interface, error) { return ifaces, nil }
}

func TestCheck_UnreachableTargetIsOffline(t *testing.T) {
	// A closed port on localhost fails the dial immediately.
	probe := New(WithTarget("127.0.0.1:1"), WithCacheTTL(0))

	got := probe.Check(context.Background())
	assert.Equal(t, model.ConnectivityNone, got)
}

func TestCheck_WifiInterface(t *testing.T) {
	probe := New(
		WithTarget(reachableTarget(t)),
		WithCacheTTL(0),
		WithInterfaceLister(ifaceLister("lo", "wlan0")),
	)

	got := probe.Check(context.Background())
	assert.Equal(t, model.ConnectivityWiFi, got)
}

func TestCheck_CellularInterface(t *testing.T) {
	probe := New(
		WithTarget(reachableTarget(t)),
		WithCacheTTL(0),
		WithInterfaceLister(ifaceLister("lo", "rmnet0")),
	)

	got := probe.Check(context.Background())
	assert.Equal(t, model.ConnectivityCellular, got)
}

func TestCheck_WifiWinsOverCellular(t *testing.T) {
	probe := New(
		WithTarget(reachableTarget(t)),
		WithCacheTTL(0),
		WithInterfaceLister(ifaceLister("rmnet0", "wlan0")),
	)

	got := probe.Check(context.Background())
	assert.Equal(t, model.ConnectivityWiFi, got)
}

func TestCheck_CachesResult(t *testing.T) {
	calls := 0
	probe := New(
		WithTarget(reachableTarget(t)),
		WithCacheTTL(time.Minute),
		WithInterfaceLister(func() ([]net.Interface, error) {
			calls++
			return []net.Interface{{Index: 1, Name: "wlan0", Flags: net.FlagUp}}, nil
		}),
	)

	ctx := context.Background()
	require.Equal(t, model.ConnectivityWiFi, probe.Check(ctx))
	require.Equal(t, model.ConnectivityWiFi, probe.Check(ctx))
	assert.Equal(t, 1, calls, "second check within the TTL must use the cached result")
}
