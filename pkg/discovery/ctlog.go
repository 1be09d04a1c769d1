package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const ctConfidence = 0.8

// maxCTBody bounds how much of a CT-log response is read.
const maxCTBody = 20 * 1024 * 1024

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// crtshEntry is the subset of a crt.sh row we care about. Missing fields
// decode to their zero values.
type crtshEntry struct {
	NameValue  string `json:"name_value"`
	CommonName string `json:"common_name"`
}

// certspotterEntry is one certspotter issuance.
type certspotterEntry struct {
	DNSNames []string `json:"dns_names"`
}

// CertTransparency queries certificate-transparency log aggregators for
// names issued under "%.<domain>".
type CertTransparency struct {
	client  *http.Client
	timeout time.Duration

	crtshBase       string
	certspotterBase string
}

// NewCertTransparency creates the method.
func NewCertTransparency(client *http.Client, timeout time.Duration) *CertTransparency {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &CertTransparency{
		client:          client,
		timeout:         timeout,
		crtshBase:       "https://crt.sh",
		certspotterBase: "https://api.certspotter.com",
	}
}

// Name implements Method.
func (ct *CertTransparency) Name() string {
	return MethodCertTransparency
}

// Run implements Method. Each endpoint failure is tolerated; the method
// errors only when every endpoint fails.
func (ct *CertTransparency) Run(ctx context.Context, domain string) ([]Candidate, error) {
	type fetch func(context.Context, string) ([]string, error)
	endpoints := []struct {
		name string
		fn   fetch
	}{
		{"crt.sh", ct.fetchCrtSh},
		{"certspotter", ct.fetchCertspotter},
	}

	seen := make(map[string]bool)
	var candidates []Candidate
	var failures []string

	for _, ep := range endpoints {
		names, err := ep.fn(ctx, domain)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ep.name, err))
			continue
		}
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || strings.Contains(name, "*") || strings.Contains(name, " ") {
				continue
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			candidates = append(candidates, Candidate{Host: name, Confidence: ctConfidence})
		}
	}

	if len(candidates) == 0 && len(failures) == len(endpoints) {
		return nil, fmt.Errorf("all ct endpoints failed: %s", strings.Join(failures, "; "))
	}
	return candidates, nil
}

func (ct *CertTransparency) fetchCrtSh(ctx context.Context, domain string) ([]string, error) {
	u := ct.crtshBase + "/?q=" + url.QueryEscape("%."+domain) + "&output=json"
	body, err := ct.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode crt.sh response: %w", err)
	}

	var names []string
	for _, entry := range entries {
		// name_value packs several names separated by newlines.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			names = append(names, name)
		}
		if entry.CommonName != "" {
			names = append(names, entry.CommonName)
		}
	}
	return names, nil
}

func (ct *CertTransparency) fetchCertspotter(ctx context.Context, domain string) ([]string, error) {
	u := ct.certspotterBase + "/v1/issuances?domain=" + url.QueryEscape(domain) +
		"&include_subdomains=true&expand=dns_names"
	body, err := ct.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var entries []certspotterEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode certspotter response: %w", err)
	}

	var names []string
	for _, entry := range entries {
		names = append(names, entry.DNSNames...)
	}
	return names, nil
}

func (ct *CertTransparency) get(ctx context.Context, u string) ([]byte, error) {
	rctx, cancel := context.WithTimeout(ctx, ct.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ct.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCTBody))
}
