package crawl

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/hostscope/hostscope/pkg/discovery"
)

// RandomUserAgent returns one of the shared canned User-Agent strings.
func RandomUserAgent() string {
	return discovery.RandomUserAgent()
}

// NewHTTPClient builds a client tuned for one-shot fetches against many
// distinct hosts: no keep-alive, lax TLS, every stage bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Dial: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 0,
		}).Dial,
		TLSHandshakeTimeout:   timeout,
		IdleConnTimeout:       timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: timeout,
		DisableKeepAlives:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
