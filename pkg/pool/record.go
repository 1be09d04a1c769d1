package pool

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// DomainType classifies a host relative to the scan seed. It is decided once
// at insertion and never changes afterwards.
type DomainType string

const (
	TargetMain      DomainType = "target_main"
	TargetSubdomain DomainType = "target_subdomain"
	ThirdParty      DomainType = "third_party"
)

// Phase names one processing stage a host moves through.
type Phase string

const (
	PhaseSubdomainDiscovery Phase = "subdomain_discovered"
	PhaseContentCrawl       Phase = "content_crawled"
	PhaseThirdPartyAnalysis Phase = "third_party_analyzed"
)

// MaxSourceURLs bounds the per-record source URL list.
const MaxSourceURLs = 10

// DomainRecord is the authoritative entry for one canonical host.
type DomainRecord struct {
	Domain         string             `json:"domain"`
	Type           DomainType         `json:"type"`
	Methods        mapset.Set[string] `json:"-"`
	SourceURLs     []string           `json:"source_urls,omitempty"`
	FirstSeen      time.Time          `json:"first_seen"`
	LastSeen       time.Time          `json:"last_seen"`
	DiscoveryCount int                `json:"discovery_count"`

	SubdomainDiscovered bool `json:"subdomain_discovered"`
	ContentCrawled      bool `json:"content_crawled"`
	ThirdPartyAnalyzed  bool `json:"third_party_analyzed"`

	RiskLevel  string `json:"risk_level,omitempty"`
	Accessible bool   `json:"accessible"`
}

// MethodNames returns the contributing discovery methods in sorted order.
func (r *DomainRecord) MethodNames() []string {
	names := r.Methods.ToSlice()
	sort.Strings(names)
	return names
}

// PhaseComplete reports whether the given phase flag is set.
func (r *DomainRecord) PhaseComplete(phase Phase) bool {
	switch phase {
	case PhaseSubdomainDiscovery:
		return r.SubdomainDiscovered
	case PhaseContentCrawl:
		return r.ContentCrawled
	case PhaseThirdPartyAnalysis:
		return r.ThirdPartyAnalyzed
	}
	return false
}

func (r *DomainRecord) addSourceURLs(urls []string) {
	for _, u := range urls {
		if len(r.SourceURLs) >= MaxSourceURLs {
			return
		}
		if u == "" {
			continue
		}
		seen := false
		for _, existing := range r.SourceURLs {
			if existing == u {
				seen = true
				break
			}
		}
		if !seen {
			r.SourceURLs = append(r.SourceURLs, u)
		}
	}
}
