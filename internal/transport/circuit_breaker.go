package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// CircuitBreakerTransport wraps an http.RoundTripper with one circuit
// breaker per upstream host, tripping after 5 consecutive failures.
type CircuitBreakerTransport struct {
	next     http.RoundTripper
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewCircuitBreakerTransport wraps next with per-host circuit breaking.
func NewCircuitBreakerTransport(next http.RoundTripper) *CircuitBreakerTransport {
	return &CircuitBreakerTransport{
		next:     next,
		breakers: make(map[string]*circuit.Breaker),
	}
}

func (t *CircuitBreakerTransport) getBreaker(host string) *circuit.Breaker {
	t.mu.RLock()
	breaker, ok := t.breakers[host]
	t.mu.RUnlock()
	if ok {
		return breaker
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if breaker, ok := t.breakers[host]; ok {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(5),
	})
	t.breakers[host] = breaker
	return breaker
}

// RoundTrip implements http.RoundTripper.
func (t *CircuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	breaker := t.getBreaker(host)

	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s", host)
	}

	var resp *http.Response
	err := breaker.Call(func() error {
		var rtErr error
		resp, rtErr = t.next.RoundTrip(req)
		if rtErr != nil {
			return rtErr
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("upstream %s returned %d", host, resp.StatusCode)
		}
		return nil
	}, 0)

	if err != nil && resp == nil {
		return nil, err
	}
	return resp, nil
}

// Tripped reports whether the breaker for host is currently open.
func (t *CircuitBreakerTransport) Tripped(host string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	breaker, ok := t.breakers[host]
	if !ok {
		return false
	}
	return breaker.Tripped()
}
