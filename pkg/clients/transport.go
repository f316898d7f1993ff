package clients

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns the shared HTTP transport for upstream clients.
// Connection counts are capped per host so a stalled upstream exhausts its
// own connection budget instead of the process's file descriptors.
func DefaultTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,

		// Klaxon fronts a small, fixed set of upstreams, so idle slots
		// go further per host than they would behind a fan-out proxy.
		MaxConnsPerHost:     100,
		MaxIdleConnsPerHost: 16,
		MaxIdleConns:        64,
		IdleConnTimeout:     90 * time.Second,
	}
}
