package accessmode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
	"github.com/function61/gokit/logex"
)

func testEndpoints() Endpoints {
	return Endpoints{
		PrivateBaseURL: "http://komero.local",
		PublicBaseURL:  "https://panel.komero.io",
		LocalAlias:     "komero.local",
		PublicHost:     "panel.komero.io",
		PublicDomains:  []string{"nas.example.com"},
		PublicSuffix:   ".komero.direct",
	}
}

func TestResolveMode(t *testing.T) {
	for _, tc := range []struct {
		name     string
		loc      Location
		expected Mode
	}{
		{"local alias", Location{Host: "komero.local"}, ModePrivate},
		{"local alias on default port", Location{Host: "komero.local", Port: 80}, ModePrivate},
		{"remote backend host", Location{Host: "panel.komero.io"}, ModePublic},
		{"registered public domain", Location{Host: "nas.example.com"}, ModePublic},
		{"registered domain, case-insensitive", Location{Host: "NAS.Example.Com"}, ModePublic},
		{"reserved relay suffix", Location{Host: "abc123.komero.direct"}, ModePublic},
		{"secure transport forces public", Location{Host: "komero.local", Secure: true}, ModePublic},
		{"unknown host defaults to private", Location{Host: "192.168.1.10"}, ModePrivate},
		{"empty location defaults to private", Location{}, ModePrivate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualString(t, string(ResolveMode(tc.loc, testEndpoints())), string(tc.expected))
		})
	}
}

type inMemoryModeCache struct {
	mode  Mode
	saved int
}

func (c *inMemoryModeCache) SaveMode(mode Mode) error {
	c.mode = mode
	c.saved++
	return nil
}

func (c *inMemoryModeCache) LoadMode() (Mode, bool, error) {
	return c.mode, c.mode.Valid(), nil
}

func TestResolverKeepsCacheInSync(t *testing.T) {
	cache := &inMemoryModeCache{}

	resolver := NewResolver(Location{Host: "komero.local"}, testEndpoints(), cache, logex.Discard)

	assert.EqualString(t, string(resolver.Current()), "private")
	assert.EqualString(t, string(cache.mode), "private")

	// every read re-resolves and re-persists
	resolver.Current()
	assert.Assert(t, cache.saved == 2)
}

func TestResolverWithoutLocationFallsBackToCachedMode(t *testing.T) {
	// no panel location configured, nothing persisted yet: private
	resolver := NewResolver(Location{}, testEndpoints(), &inMemoryModeCache{}, logex.Discard)
	assert.EqualString(t, string(resolver.Current()), "private")

	// a manually switched mode survives into the next process
	cache := &inMemoryModeCache{mode: ModePublic}
	resolver = NewResolver(Location{}, testEndpoints(), cache, logex.Discard)
	assert.EqualString(t, string(resolver.Current()), "public")
}

func TestResolverSetNotifiesSubscribers(t *testing.T) {
	cache := &inMemoryModeCache{}
	resolver := NewResolver(Location{Host: "komero.local"}, testEndpoints(), cache, logex.Discard)

	changed := resolver.Subscribe()
	defer resolver.Unsubscribe(changed)

	resolver.Set(ModePublic)

	assert.EqualString(t, string(<-changed), "public")
	assert.EqualString(t, string(cache.mode), "public")

	// the override also moved the effective location to the public backend
	assert.EqualString(t, string(resolver.Current()), "public")
}

func TestConnectivity(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.EqualString(t, r.URL.Path, "/status")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"healthy": true, "localAddress": "192.168.1.22"}`))
	}))
	defer backend.Close()

	endpoints := testEndpoints()
	endpoints.PrivateBaseURL = backend.URL

	resolver := NewResolver(Location{Host: "komero.local"}, endpoints, nil, logex.Discard)

	reachable, localAddress := resolver.TestConnectivity(context.Background(), ModePrivate, 2*time.Second)
	assert.Assert(t, reachable)
	assert.EqualString(t, localAddress, "192.168.1.22")
}

func TestConnectivityUnreachable(t *testing.T) {
	endpoints := testEndpoints()
	endpoints.PublicBaseURL = "http://127.0.0.1:1" // nothing listens here

	resolver := NewResolver(Location{Host: "komero.local"}, endpoints, nil, logex.Discard)

	// failure is an answer, not an error
	reachable, _ := resolver.TestConnectivity(context.Background(), ModePublic, 500*time.Millisecond)
	assert.Assert(t, !reachable)
}
