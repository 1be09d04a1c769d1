package discovery

import (
	"context"
	"net/http"
	"time"
)

// Verifier probes whether a discovered host answers HTTP(S). HTTPS is tried
// first, then plain HTTP; the first success fills status, latency and server
// header, and any probe outcome simply marks accessibility.
type Verifier struct {
	client  *http.Client
	timeout time.Duration
}

// NewVerifier creates a verifier with the given per-probe timeout.
func NewVerifier(client *http.Client, timeout time.Duration) *Verifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Verifier{client: client, timeout: timeout}
}

// Verify probes host and returns the outcome. It never errors: all failures
// mean the host is inaccessible.
func (v *Verifier) Verify(ctx context.Context, host string) *Probe {
	for _, protocol := range []string{"https", "http"} {
		pctx, cancel := context.WithTimeout(ctx, v.timeout)
		req, err := http.NewRequestWithContext(pctx, http.MethodHead, protocol+"://"+host+"/", nil)
		if err != nil {
			cancel()
			continue
		}

		start := time.Now()
		resp, err := v.client.Do(req)
		latency := time.Since(start)
		cancel()
		if err != nil {
			continue
		}
		resp.Body.Close()

		return &Probe{
			Accessible: true,
			StatusCode: resp.StatusCode,
			Latency:    latency,
			Server:     resp.Header.Get("Server"),
			Protocol:   protocol,
		}
	}
	return &Probe{Accessible: false}
}
