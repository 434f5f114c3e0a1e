package net

import (
	"fmt"
	"sync"
	"time"

	capi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// ConsulDirectory resolves the endpoint set from the healthy instances of a
// named consul service: each passing instance's service id becomes an
// endpoint. It suits clustered hosts whose peers are other services rather
// than game clients on a socket.
//
// Lookups are cached for a TTL so broadcast resolution at every tick boundary
// does not hammer the consul agent; a stale cache is served when a refresh
// fails, since a briefly outdated endpoint set beats an empty one mid-tick.
type ConsulDirectory struct {
	client  *capi.Client
	service string
	ttl     time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	cached  []Endpoint
	fetched time.Time
}

// NewConsulDirectory creates a directory over the given consul client. A zero
// ttl defaults to one second, roughly one refresh per few dozen ticks.
func NewConsulDirectory(client *capi.Client, service string, ttl time.Duration, logger *zap.Logger) (*ConsulDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("ticknet: nil consul client")
	}
	if service == "" {
		return nil, fmt.Errorf("ticknet: empty consul service name")
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsulDirectory{client: client, service: service, ttl: ttl, log: logger}, nil
}

// Endpoints implements EndpointDirectory.
func (d *ConsulDirectory) Endpoints() []Endpoint {
	eps := d.resolve()
	out := make([]Endpoint, len(eps))
	copy(out, eps)
	return out
}

// Contains implements EndpointDirectory.
func (d *ConsulDirectory) Contains(ep Endpoint) bool {
	for _, e := range d.resolve() {
		if e == ep {
			return true
		}
	}
	return false
}

func (d *ConsulDirectory) resolve() []Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.fetched) < d.ttl {
		return d.cached
	}

	entries, _, err := d.client.Health().Service(d.service, "", true, nil)
	if err != nil {
		d.log.Warn("consul directory refresh failed",
			zap.String("service", d.service), zap.Error(err))
		return d.cached
	}

	eps := make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		eps = append(eps, Endpoint(e.Service.ID))
	}
	d.cached = eps
	d.fetched = time.Now()
	return d.cached
}
