package pool

import (
	"fmt"
	"time"

	"github.com/hostscope/hostscope/pkg/canonical"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// Pool is the registry of every discovered host. It is single-writer: all
// mutation happens on the engine's iteration goroutine, so no lock is held.
// Size is monotonically non-decreasing and bounded by capacity; records are
// never deleted within a run.
type Pool struct {
	capacity int
	records  map[string]*DomainRecord
	order    []string
	index    *canonical.Index
	rejected int
	log      *logrus.Logger
}

// FilterOptions narrows Filter results. Nil/empty fields match everything.
type FilterOptions struct {
	Type      DomainType
	RiskLevel string
	// HasRisk, when non-nil, selects records whose risk level is set (true)
	// or unset/none (false).
	HasRisk *bool
}

// New creates a pool bounded at capacity records.
func New(capacity int, log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.New()
	}
	return &Pool{
		capacity: capacity,
		records:  make(map[string]*DomainRecord),
		index:    canonical.NewIndex(),
		log:      log,
	}
}

// AddOrUpdate inserts a host or merges a re-sighting into its record. The
// host must already be in canonical form. Insertion beyond capacity is a
// logged no-op returning (false, nil). The domain type is fixed by the first
// insertion; later sightings never change it.
func (p *Pool) AddOrUpdate(host string, domainType DomainType, method string, sourceURLs []string) (bool, *DomainRecord) {
	key := canonical.Key(host)
	now := time.Now()

	if record, ok := p.records[key]; ok {
		// Cosmetic: the shortest observed spelling wins as representative.
		record.Domain = p.index.Observe(host)
		if method != "" {
			record.Methods.Add(method)
		}
		record.addSourceURLs(sourceURLs)
		record.DiscoveryCount++
		record.LastSeen = now
		return false, record
	}

	if len(p.records) >= p.capacity {
		p.rejected++
		p.log.WithFields(logrus.Fields{
			"domain":   host,
			"capacity": p.capacity,
		}).Warn("domain pool at capacity, insertion rejected")
		return false, nil
	}

	rep := p.index.Observe(host)
	record := &DomainRecord{
		Domain:         rep,
		Type:           domainType,
		Methods:        mapset.NewSet[string](),
		FirstSeen:      now,
		LastSeen:       now,
		DiscoveryCount: 1,
	}
	if method != "" {
		record.Methods.Add(method)
	}
	record.addSourceURLs(sourceURLs)

	if _, clash := p.records[key]; clash {
		// Reaching this line means the dedup invariant is broken, which is a
		// programming error rather than a runtime condition.
		panic(fmt.Sprintf("pool: duplicate canonical key %q", key))
	}
	p.records[key] = record
	p.order = append(p.order, key)
	return true, record
}

// Get returns the record for a canonical host.
func (p *Pool) Get(host string) (*DomainRecord, bool) {
	record, ok := p.records[canonical.Key(host)]
	return record, ok
}

// MarkPhaseComplete flips a completion flag. Flags only move false to true.
func (p *Pool) MarkPhaseComplete(host string, phase Phase) bool {
	record, ok := p.records[canonical.Key(host)]
	if !ok {
		return false
	}
	switch phase {
	case PhaseSubdomainDiscovery:
		record.SubdomainDiscovered = true
	case PhaseContentCrawl:
		record.ContentCrawled = true
	case PhaseThirdPartyAnalysis:
		record.ThirdPartyAnalyzed = true
	default:
		return false
	}
	return true
}

// SetRisk stores the externally supplied risk level for a host.
func (p *Pool) SetRisk(host, riskLevel string) {
	if record, ok := p.records[canonical.Key(host)]; ok {
		record.RiskLevel = riskLevel
	}
}

// SetAccessible stores the accessibility probe outcome for a host.
func (p *Pool) SetAccessible(host string, accessible bool) {
	if record, ok := p.records[canonical.Key(host)]; ok {
		record.Accessible = accessible
	}
}

// Filter returns records matching opts, in insertion order. Reporting only.
func (p *Pool) Filter(opts FilterOptions) []*DomainRecord {
	var out []*DomainRecord
	for _, key := range p.order {
		record := p.records[key]
		if opts.Type != "" && record.Type != opts.Type {
			continue
		}
		if opts.RiskLevel != "" && record.RiskLevel != opts.RiskLevel {
			continue
		}
		if opts.HasRisk != nil {
			flagged := record.RiskLevel != "" && record.RiskLevel != "none"
			if flagged != *opts.HasRisk {
				continue
			}
		}
		out = append(out, record)
	}
	return out
}

// Records returns every record in insertion order.
func (p *Pool) Records() []*DomainRecord {
	return p.Filter(FilterOptions{})
}

// Size returns the number of stored records.
func (p *Pool) Size() int {
	return len(p.records)
}

// Rejected returns how many insertions were refused at capacity.
func (p *Pool) Rejected() int {
	return p.rejected
}

// CountByType tallies records per domain type.
func (p *Pool) CountByType() map[DomainType]int {
	counts := make(map[DomainType]int)
	for _, record := range p.records {
		counts[record.Type]++
	}
	return counts
}

// MethodHistogram tallies how many records each discovery method contributed
// to.
func (p *Pool) MethodHistogram() map[string]int {
	hist := make(map[string]int)
	for _, record := range p.records {
		for _, name := range record.Methods.ToSlice() {
			hist[name]++
		}
	}
	return hist
}
