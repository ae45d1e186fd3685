// Package transport builds the outbound HTTP transport shared by every
// registry and advisory provider: DNS-cached dialing, the CLI's
// proxy/TLS flags, and a per-host circuit breaker.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/dnscache"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// Options mirrors the CLI's global flags (--https-proxy, --ca-cert,
// --insecure-skip-tls-verify).
type Options struct {
	ProxyURL           string
	CACertPath         string
	InsecureSkipVerify bool
}

// New builds an *http.Client with DNS caching and the given proxy/TLS
// options, wrapped in a per-host circuit breaker.
func New(opts Options) (*http.Client, error) {
	tlsConfig, err := buildTLSConfig(opts)
	if err != nil {
		return nil, err
	}

	var proxyFn func(*http.Request) (*url.URL, error)
	if opts.ProxyURL != "" {
		parsed, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, &core.TransportError{Detail: "parsing --https-proxy: " + err.Error()}
		}
		proxyFn = http.ProxyURL(parsed)
	} else {
		proxyFn = http.ProxyFromEnvironment
	}

	resolver := &dnscache.Resolver{}
	stop := make(chan struct{})
	go refreshLoop(resolver, 5*time.Minute, stop)

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	roundTripper := &http.Transport{
		Proxy:     proxyFn,
		TLSClientConfig: tlsConfig,
		DialContext: cachedDialContext(resolver, dialer),
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: NewCircuitBreakerTransport(roundTripper),
	}, nil
}

func refreshLoop(resolver *dnscache.Resolver, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			resolver.Refresh(true)
		case <-stop:
			return
		}
	}
}

func cachedDialContext(resolver *dnscache.Resolver, dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

func buildTLSConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify} //nolint:gosec // explicit opt-in flag

	if opts.CACertPath == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(opts.CACertPath)
	if err != nil {
		return nil, &core.TransportError{Detail: "reading --ca-cert: " + err.Error()}
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, &core.TransportError{Detail: "--ca-cert does not contain a valid PEM certificate"}
	}
	cfg.RootCAs = pool
	return cfg, nil
}
