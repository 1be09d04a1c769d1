package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiConfidence = 0.7

// maxAPIBody bounds how much of an API response is read.
const maxAPIBody = 10 * 1024 * 1024

// vtSubdomainsResponse is the slice of a VirusTotal v3 subdomains listing we
// decode; unknown fields are ignored, missing ones default to zero values.
type vtSubdomainsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// stSubdomainsResponse is SecurityTrails' subdomain listing shape.
type stSubdomainsResponse struct {
	Subdomains []string `json:"subdomains"`
}

// APICredentials holds optional third-party API keys. Providers without a
// configured credential are skipped.
type APICredentials struct {
	VirusTotal     string
	SecurityTrails string
}

// Empty reports whether no provider is configured.
func (c APICredentials) Empty() bool {
	return c.VirusTotal == "" && c.SecurityTrails == ""
}

// APISource queries external subdomain-intelligence APIs, best effort. With
// no credentials configured the method is a silent no-op.
type APISource struct {
	client  *http.Client
	creds   APICredentials
	timeout time.Duration
}

// NewAPISource creates the method.
func NewAPISource(client *http.Client, creds APICredentials, timeout time.Duration) *APISource {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &APISource{client: client, creds: creds, timeout: timeout}
}

// Name implements Method.
func (a *APISource) Name() string {
	return MethodAPI
}

// Run implements Method.
func (a *APISource) Run(ctx context.Context, domain string) ([]Candidate, error) {
	if a.creds.Empty() {
		return nil, nil
	}

	seen := make(map[string]bool)
	var candidates []Candidate
	attempted, failed := 0, 0

	add := func(hosts []string) {
		for _, host := range hosts {
			host = strings.ToLower(strings.TrimSpace(host))
			if host == "" || seen[host] {
				continue
			}
			seen[host] = true
			candidates = append(candidates, Candidate{Host: host, Confidence: apiConfidence})
		}
	}

	if a.creds.VirusTotal != "" {
		attempted++
		hosts, err := a.fetchVirusTotal(ctx, domain)
		if err != nil {
			failed++
		} else {
			add(hosts)
		}
	}
	if a.creds.SecurityTrails != "" {
		attempted++
		hosts, err := a.fetchSecurityTrails(ctx, domain)
		if err != nil {
			failed++
		} else {
			add(hosts)
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("all %d configured api providers failed", attempted)
	}
	return candidates, nil
}

func (a *APISource) fetchVirusTotal(ctx context.Context, domain string) ([]string, error) {
	u := "https://www.virustotal.com/api/v3/domains/" + url.PathEscape(domain) + "/subdomains?limit=40"
	body, err := a.get(ctx, u, map[string]string{"x-apikey": a.creds.VirusTotal})
	if err != nil {
		return nil, err
	}

	var decoded vtSubdomainsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode virustotal response: %w", err)
	}

	var hosts []string
	for _, item := range decoded.Data {
		hosts = append(hosts, item.ID)
	}
	return hosts, nil
}

func (a *APISource) fetchSecurityTrails(ctx context.Context, domain string) ([]string, error) {
	u := "https://api.securitytrails.com/v1/domain/" + url.PathEscape(domain) + "/subdomains"
	body, err := a.get(ctx, u, map[string]string{"APIKEY": a.creds.SecurityTrails})
	if err != nil {
		return nil, err
	}

	var decoded stSubdomainsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode securitytrails response: %w", err)
	}

	var hosts []string
	for _, prefix := range decoded.Subdomains {
		if prefix != "" {
			hosts = append(hosts, prefix+"."+domain)
		}
	}
	return hosts, nil
}

func (a *APISource) get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
}
