package rpcfetch

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Endpoint is a snapshot of one RPC endpoint and its health.
type Endpoint struct {
	URL         string
	Healthy     bool
	Failures    int // consecutive failed requests
	LastError   error
	LastFailure time.Time
	LastSuccess time.Time
	Latency     time.Duration
}

// Pool hands out endpoints and records the outcome of requests against them.
type Pool interface {
	// GetEndpoint picks the endpoint for the next request. It fails only
	// when no endpoints are configured.
	GetEndpoint(ctx context.Context) (*Endpoint, error)

	MarkUnhealthy(url string, err error)
	MarkHealthy(url string, latency time.Duration)
}

// SimplePool rotates through a fixed endpoint list, skipping endpoints whose
// last request failed. When every endpoint is failing it returns the one that
// failed longest ago.
type SimplePool struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
	next      int
	now       func() time.Time
}

// NewSimplePool creates a pool over urls. Blank and duplicate URLs are
// ignored.
func NewSimplePool(urls []string) *SimplePool {
	p := &SimplePool{now: time.Now}
	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		p.endpoints = append(p.endpoints, &Endpoint{URL: url, Healthy: true})
	}
	return p
}

// GetEndpoint returns a copy of the chosen endpoint.
func (p *SimplePool) GetEndpoint(ctx context.Context) (*Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	if n == 0 {
		return nil, ErrNoEndpoints
	}

	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if ep := p.endpoints[idx]; ep.Healthy {
			p.next = (idx + 1) % n
			out := *ep
			return &out, nil
		}
	}

	stalest := p.endpoints[0]
	for _, ep := range p.endpoints[1:] {
		if ep.LastFailure.Before(stalest.LastFailure) {
			stalest = ep
		}
	}
	out := *stalest
	return &out, nil
}

// MarkUnhealthy takes url out of rotation until it succeeds again.
func (p *SimplePool) MarkUnhealthy(url string, err error) {
	p.update(url, func(ep *Endpoint) {
		ep.Healthy = false
		ep.Failures++
		ep.LastError = err
		ep.LastFailure = p.now()
	})
}

// MarkHealthy returns url to rotation.
func (p *SimplePool) MarkHealthy(url string, latency time.Duration) {
	p.update(url, func(ep *Endpoint) {
		ep.Healthy = true
		ep.Failures = 0
		ep.LastError = nil
		ep.LastSuccess = p.now()
		ep.Latency = latency
	})
}

func (p *SimplePool) update(url string, fn func(*Endpoint)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.URL == url {
			fn(ep)
			return
		}
	}
}

// GetHealthyCount returns the number of endpoints in rotation.
func (p *SimplePool) GetHealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, ep := range p.endpoints {
		if ep.Healthy {
			count++
		}
	}
	return count
}

// Endpoints returns a snapshot of every endpoint in configuration order.
func (p *SimplePool) Endpoints() []Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Endpoint, len(p.endpoints))
	for i, ep := range p.endpoints {
		out[i] = *ep
	}
	return out
}

// URLs returns the configured endpoint URLs.
func (p *SimplePool) URLs() []string {
	eps := p.Endpoints()
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.URL
	}
	return out
}
