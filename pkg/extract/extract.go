package extract

import (
	"net/http"
	"regexp"
	"strings"
)

// headerNames are the response headers worth scanning for hostnames.
var headerNames = []string{
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
	"Link",
	"Location",
	"Set-Cookie",
	"Access-Control-Allow-Origin",
}

// Extractor pulls hostname-shaped strings out of text. One instance per run.
type Extractor struct {
	hostRegex *regexp.Regexp
}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{
		hostRegex: regexp.MustCompile(`(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-_]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}`),
	}
}

// FromString returns the distinct hostname candidates found in input, in
// order of first appearance.
func (e *Extractor) FromString(input string) []string {
	matches := e.hostRegex.FindAllString(input, -1)
	seen := make(map[string]bool)
	var result []string
	for _, match := range matches {
		match = strings.ToLower(strings.TrimSpace(match))
		if match != "" && !seen[match] {
			seen[match] = true
			result = append(result, match)
		}
	}
	return result
}

// FromHeaders scans the headers that commonly reference other hosts.
func (e *Extractor) FromHeaders(headers http.Header) []string {
	seen := make(map[string]bool)
	var result []string
	for _, name := range headerNames {
		for _, value := range headers.Values(name) {
			for _, host := range e.FromString(value) {
				if !seen[host] {
					seen[host] = true
					result = append(result, host)
				}
			}
		}
	}
	return result
}

// FilterBySuffix keeps only hosts equal to suffix or ending in "."+suffix.
// An empty suffix matches nothing.
func FilterBySuffix(hosts []string, suffix string) []string {
	if suffix == "" {
		return nil
	}
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	var result []string
	for _, host := range hosts {
		h := strings.ToLower(strings.TrimSpace(host))
		if h == suffix || strings.HasSuffix(h, "."+suffix) {
			result = append(result, h)
		}
	}
	return result
}
