package registry

import (
	"net/http"
	"strings"
	"sync"

	"cuelabs.dev/go/oci/ociregistry"
	"cuelabs.dev/go/oci/ociregistry/ociclient"
)

type ClientOptions struct {
	// an already-authenticated transport (see [UserAgentTransport] and ociauth); nil means [net/http.DefaultTransport]
	Transport http.RoundTripper

	// maximum requests per second *per registry host* (zero or negative means unlimited)
	RateLimit float64
	RateBurst int

	// skip the in-memory cache of digest-addressed content (see [RegistryCache])
	NoCache bool
}

// a per-host cache of [ociregistry.Interface] objects that all share one underlying transport (and thus connection pool)
type Clients struct {
	opts  ClientOptions
	cache sync.Map // "host" => OnceValues() => ociregistry.Interface, error
}

func NewClients(opts ClientOptions) *Clients {
	return &Clients{opts: opts}
}

// returns an [ociregistry.Interface] for the given host which reports failures as [*RegistryError] / [*TransportError], is (optionally) rate limited, and (optionally) caches digest-addressed reads in memory (cached such that multiple calls for the same host transparently return the same client object / in-memory cache)
func (c *Clients) Client(host string) (ociregistry.Interface, error) {
	f, _ := c.cache.LoadOrStore(host, sync.OnceValues(func() (ociregistry.Interface, error) {
		transport := c.opts.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}

		// if we have a rate limit configured, shim it in (one limiter per host)
		if limiter := newLimiter(c.opts.RateLimit, c.opts.RateBurst); limiter != nil {
			transport = &rateLimitedRoundTripper{
				roundTripper: transport,
				limiter:      limiter,
			}
		}

		transport = StatusTransport(transport)

		clientOptions := ociclient.Options{
			Transport: transport,
		}
		if host == "localhost" || strings.HasPrefix(host, "localhost:") {
			// assume localhost means HTTP
			clientOptions.Insecure = true
		}

		client, err := ociclient.New(host, &clientOptions)
		if err != nil {
			return nil, err
		}

		if !c.opts.NoCache {
			// make sure this registry gets a dedicated in-memory cache (so we never fetch the same repo@digest twice for the lifetime of our program)
			client = RegistryCache(client)
		}

		return client, nil
	}))
	return f.(func() (ociregistry.Interface, error))()
}
