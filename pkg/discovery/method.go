package discovery

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Method names for the built-in techniques.
const (
	MethodBruteForce       = "bruteforce"
	MethodCertTransparency = "ctlog"
	MethodSearchEngine     = "searchengine"
	MethodAPI              = "api"
	MethodCrawl            = "crawl"
	MethodSeed             = "seed"
)

// Candidate is one hostname proposed by a single method.
type Candidate struct {
	Host       string
	Confidence float64
	Addresses  []string
}

// Method is one independent discovery technique. Implementations must be
// safe to run concurrently with each other and must treat "nothing found"
// as a normal zero-candidate outcome, not an error.
type Method interface {
	Name() string
	Run(ctx context.Context, domain string) ([]Candidate, error)
}

// Probe is the outcome of an accessibility check.
type Probe struct {
	Accessible bool          `json:"accessible"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency,omitempty"`
	Server     string        `json:"server,omitempty"`
	Protocol   string        `json:"protocol,omitempty"`
}

// Result is the merged view of one candidate host across all contributing
// methods: method set is the union, confidence the maximum, scalar metadata
// last-write-wins.
type Result struct {
	Host       string
	Confidence float64
	Methods    mapset.Set[string]
	Addresses  []string
	Probe      *Probe

	// order preserves discovery order for the truncation tiebreak.
	order int
}

func (r *Result) merge(method string, c Candidate) {
	r.Methods.Add(method)
	if c.Confidence > r.Confidence {
		r.Confidence = c.Confidence
	}
	if len(c.Addresses) > 0 {
		r.Addresses = c.Addresses
	}
}
