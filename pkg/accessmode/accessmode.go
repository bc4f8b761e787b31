// Resolves which backend instance (LAN-local vs internet-routed) the panel
// client should talk to, and hands out base URLs for it.
package accessmode

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/logex"
	"github.com/komero-io/komero/pkg/komtypes"
)

type Mode string

const (
	ModePrivate Mode = "private"
	ModePublic  Mode = "public"
)

func (m Mode) Valid() bool {
	return m == ModePrivate || m == ModePublic
}

// where the panel itself is being served from. explicit value (instead of
// reading ambient process state) so ResolveMode stays a pure function.
type Location struct {
	Host   string // without port
	Port   int    // 0 = default for scheme
	Secure bool   // https
}

// the appliance's fixed backend identities
type Endpoints struct {
	PrivateBaseURL string   // e.g. "http://komero.local"
	PublicBaseURL  string   // e.g. "https://panel.komero.io"
	LocalAlias     string   // canonical LAN hostname, e.g. "komero.local"
	PublicHost     string   // the remote backend's own hostname
	PublicDomains  []string // operator-registered custom domains
	PublicSuffix   string   // reserved relay suffix, e.g. ".komero.direct"
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		PrivateBaseURL: "http://komero.local",
		PublicBaseURL:  "https://panel.komero.io",
		LocalAlias:     "komero.local",
		PublicHost:     "panel.komero.io",
		PublicSuffix:   ".komero.direct",
	}
}

func (e Endpoints) BaseURL(mode Mode) string {
	if mode == ModePublic {
		return e.PublicBaseURL
	}

	return e.PrivateBaseURL
}

func (e Endpoints) URLs(mode Mode) *komtypes.RestClientUrlBuilder {
	return komtypes.NewRestClientUrlBuilder(e.BaseURL(mode))
}

// ResolveMode derives the access mode from the panel's own location. Never
// fails - anything unrecognized falls back to private.
//
// Priority order:
//  1. host is the remote backend itself, a registered public domain or under
//     the reserved relay suffix => public
//  2. a secure page forces public regardless of host (a https page cannot
//     talk to the plain-http LAN backend without mixed content)
//  3. host is the canonical LAN alias on the default port => private
//  4. default => private
func ResolveMode(loc Location, endpoints Endpoints) Mode {
	host := strings.ToLower(loc.Host)

	switch {
	case host == strings.ToLower(endpoints.PublicHost):
		return ModePublic
	case contains(endpoints.PublicDomains, host):
		return ModePublic
	case endpoints.PublicSuffix != "" && strings.HasSuffix(host, endpoints.PublicSuffix):
		return ModePublic
	case loc.Secure:
		return ModePublic
	case host == strings.ToLower(endpoints.LocalAlias) && (loc.Port == 0 || loc.Port == 80):
		return ModePrivate
	default:
		return ModePrivate
	}
}

// durable cache of the last resolved mode, so every code path (and the next
// process start) observes the same value
type ModeCache interface {
	SaveMode(mode Mode) error
	LoadMode() (Mode, bool, error)
}

// process-wide holder of the current access mode. reads re-resolve from the
// location instead of trusting the cached value; explicit Set() is the
// operator's manual override.
type Resolver struct {
	mu          sync.Mutex
	loc         Location
	endpoints   Endpoints
	cache       ModeCache
	subscribers []chan Mode
	logl        *logex.Leveled
}

func NewResolver(loc Location, endpoints Endpoints, cache ModeCache, logger *log.Logger) *Resolver {
	return &Resolver{
		loc:       loc,
		endpoints: endpoints,
		cache:     cache,
		logl:      logex.Levels(logger),
	}
}

func (r *Resolver) Endpoints() Endpoints {
	return r.endpoints
}

// Current re-resolves on every read and keeps the durable cache in sync with
// what was resolved. With no location configured there is nothing to resolve
// from, so the last persisted mode wins (a manual switch then survives
// restarts).
func (r *Resolver) Current() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode := ModePrivate
	if r.loc.Host != "" {
		mode = ResolveMode(r.loc, r.endpoints)
	} else if r.cache != nil {
		cached, found, err := r.cache.LoadMode()
		if err != nil {
			r.logl.Error.Printf("loading cached mode: %v", err)
		} else if found && cached.Valid() {
			mode = cached
		}
	}

	if r.cache != nil {
		if err := r.cache.SaveMode(mode); err != nil {
			r.logl.Error.Printf("persisting mode: %v", err)
		}
	}

	return mode
}

// Set is the manual override. Persists and notifies subscribers.
func (r *Resolver) Set(mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loc = locationFor(mode, r.endpoints)

	if r.cache != nil {
		if err := r.cache.SaveMode(mode); err != nil {
			r.logl.Error.Printf("persisting mode: %v", err)
		}
	}

	for _, sub := range r.subscribers {
		select {
		case sub <- mode:
		default: // subscriber not keeping up; it'll re-read Current() anyway
		}
	}
}

// Subscribe delivers mode changes caused by Set(). Remember to Unsubscribe.
func (r *Resolver) Subscribe() chan Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := make(chan Mode, 1)
	r.subscribers = append(r.subscribers, sub)

	return sub
}

func (r *Resolver) Unsubscribe(sub chan Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, candidate := range r.subscribers {
		if candidate == sub {
			r.subscribers = append(r.subscribers[0:i], r.subscribers[i+1:]...)
			break
		}
	}
}

// TestConnectivity probes the mode's backend with a bounded timeout. Failures
// come back as reachable=false, never as an error - an unreachable backend is
// an expected answer here. localAddress is the backend-advertised LAN address
// (empty if not known).
func (r *Resolver) TestConnectivity(ctx context.Context, mode Mode, timeout time.Duration) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health := komtypes.HealthResponse{}
	if _, err := ezhttp.Get(
		ctx,
		r.endpoints.URLs(mode).GetStatus(),
		ezhttp.RespondsJson(&health, true),
	); err != nil {
		r.logl.Debug.Printf("connectivity test (%s): %v", mode, err)
		return false, ""
	}

	return true, health.LocalAddress
}

// after a manual switch the panel's effective location is the chosen
// backend's own address
func locationFor(mode Mode, endpoints Endpoints) Location {
	if mode == ModePublic {
		return Location{Host: endpoints.PublicHost, Secure: true}
	}

	return Location{Host: endpoints.LocalAlias}
}

func contains(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}

	return false
}
