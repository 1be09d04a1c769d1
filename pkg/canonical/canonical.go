package canonical

import (
	"net"
	"strings"
)

// resourceSuffixes lists file extensions that the body/header extractors
// routinely mistake for hostnames (e.g. "jquery.min.js").
var resourceSuffixes = []string{
	".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".map", ".json", ".xml",
	".pdf", ".zip", ".gz", ".webp", ".mp4", ".mp3", ".avi",
}

// Normalize reduces a raw hostname or URL fragment to its canonical form.
// It lowercases, strips scheme/credentials/path/query/fragment, drops the
// default ports 80 and 443 while keeping any other port, and rejects values
// that cannot name a crawlable host: empty strings, bare IP literals,
// localhost, malformed labels, and resource-file suffixes.
func Normalize(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	// Strip scheme ("https://", "ftp://", or protocol-relative "//").
	if idx := strings.Index(s, "://"); idx != -1 {
		s = s[idx+3:]
	}
	s = strings.TrimPrefix(s, "//")

	// Cut path, query and fragment.
	if idx := strings.IndexAny(s, "/?#"); idx != -1 {
		s = s[:idx]
	}

	// Strip credentials.
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		s = s[idx+1:]
	}

	host, port := splitHostPort(s)
	if host == "" {
		return "", false
	}
	if port == "80" || port == "443" {
		port = ""
	}

	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", false
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return "", false
	}
	if hasResourceSuffix(host) {
		return "", false
	}
	if !isValidHost(host) {
		return "", false
	}

	if port != "" {
		return host + ":" + port, true
	}
	return host, true
}

// splitHostPort splits a trailing ":port" off without requiring one.
func splitHostPort(s string) (host, port string) {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return s, ""
	}
	// IPv6 literals contain colons; only treat the suffix as a port when
	// everything after the colon is digits.
	candidate := s[idx+1:]
	if candidate == "" {
		return s[:idx], ""
	}
	for _, r := range candidate {
		if r < '0' || r > '9' {
			return s, ""
		}
	}
	return s[:idx], candidate
}

func hasResourceSuffix(host string) bool {
	h := strings.TrimSuffix(host, ".")
	for _, suffix := range resourceSuffixes {
		if strings.HasSuffix(h, suffix) {
			return true
		}
	}
	return false
}

// isValidHost applies DNS label rules: 1-63 chars per label, alphanumeric
// ends, hyphens inside, at least two labels, alphabetic TLD of length >= 2.
// A single trailing dot (FQDN spelling) is tolerated.
func isValidHost(host string) bool {
	h := strings.TrimSuffix(host, ".")
	if len(h) == 0 || len(h) > 253 {
		return false
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !isAlphanumeric(rune(label[0])) || !isAlphanumeric(rune(label[len(label)-1])) {
			return false
		}
		for _, r := range label {
			if !isAlphanumeric(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
