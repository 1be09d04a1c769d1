package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hostscope/hostscope/pkg/controller"
	"github.com/hostscope/hostscope/pkg/pool"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

// Summary is the run-level digest of a finished scan.
type Summary struct {
	SeedDomain         string         `json:"seed_domain"`
	StartedAt          time.Time      `json:"started_at"`
	Duration           time.Duration  `json:"duration"`
	DurationSeconds    float64        `json:"duration_seconds"`
	TotalDomains       int            `json:"total_domains"`
	DomainsByType      map[string]int `json:"domains_by_type"`
	MethodHistogram    map[string]int `json:"method_histogram"`
	Iterations         int            `json:"iterations"`
	StopReason         string         `json:"stop_reason"`
	TotalErrors        int            `json:"total_errors"`
	RejectedInsertions int            `json:"rejected_insertions"`
}

// DomainEntry is one host in the final listing.
type DomainEntry struct {
	Domain              string   `json:"domain"`
	Type                string   `json:"type"`
	Methods             []string `json:"methods"`
	SourceURLs          []string `json:"source_urls,omitempty"`
	DiscoveryCount      int      `json:"discovery_count"`
	SubdomainDiscovered bool     `json:"subdomain_discovered"`
	ContentCrawled      bool     `json:"content_crawled"`
	ThirdPartyAnalyzed  bool     `json:"third_party_analyzed"`
	RiskLevel           string   `json:"risk_level,omitempty"`
	Accessible          bool     `json:"accessible"`
}

// FinalReport is what every run terminates with, no matter how badly the
// network behaved.
type FinalReport struct {
	Summary              Summary                        `json:"summary"`
	Iterations           []*controller.IterationMetrics `json:"iterations"`
	Domains              []DomainEntry                  `json:"domains"`
	DiscoveryRateHistory []float64                      `json:"discovery_rate_history"`
}

// Build assembles the report from the pool and controller state.
func Build(seed string, startedAt time.Time, p *pool.Pool, ctrl *controller.Controller) *FinalReport {
	byType := make(map[string]int)
	for t, n := range p.CountByType() {
		byType[string(t)] = n
	}

	totalErrors := 0
	for _, m := range ctrl.History() {
		totalErrors += m.Errors
	}

	duration := time.Since(startedAt)
	r := &FinalReport{
		Summary: Summary{
			SeedDomain:         seed,
			StartedAt:          startedAt,
			Duration:           duration,
			DurationSeconds:    duration.Seconds(),
			TotalDomains:       p.Size(),
			DomainsByType:      byType,
			MethodHistogram:    p.MethodHistogram(),
			Iterations:         len(ctrl.History()),
			StopReason:         ctrl.StopReason(),
			TotalErrors:        totalErrors,
			RejectedInsertions: p.Rejected(),
		},
		Iterations:           ctrl.History(),
		DiscoveryRateHistory: ctrl.RateHistory(),
	}

	for _, record := range p.Records() {
		r.Domains = append(r.Domains, DomainEntry{
			Domain:              record.Domain,
			Type:                string(record.Type),
			Methods:             record.MethodNames(),
			SourceURLs:          record.SourceURLs,
			DiscoveryCount:      record.DiscoveryCount,
			SubdomainDiscovered: record.SubdomainDiscovered,
			ContentCrawled:      record.ContentCrawled,
			ThirdPartyAnalyzed:  record.ThirdPartyAnalyzed,
			RiskLevel:           record.RiskLevel,
			Accessible:          record.Accessible,
		})
	}
	return r
}

// PrintSummary renders the human-readable run summary.
func (r *FinalReport) PrintSummary(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true).
		Render("Scan complete: " + r.Summary.SeedDomain)
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "duration %s, %d iterations, stop reason: %s\n\n",
		r.Summary.Duration.Round(time.Millisecond), r.Summary.Iterations, r.Summary.StopReason)

	overview := tablewriter.NewWriter(w)
	overview.SetHeader([]string{"Type", "Count"})
	for _, t := range []string{string(pool.TargetMain), string(pool.TargetSubdomain), string(pool.ThirdParty)} {
		overview.Append([]string{t, strconv.Itoa(r.Summary.DomainsByType[t])})
	}
	overview.Append([]string{"total", strconv.Itoa(r.Summary.TotalDomains)})
	overview.Render()

	if len(r.Summary.MethodHistogram) > 0 {
		fmt.Fprintln(w)
		methods := tablewriter.NewWriter(w)
		methods.SetHeader([]string{"Method", "Domains"})
		for name, count := range r.Summary.MethodHistogram {
			methods.Append([]string{name, strconv.Itoa(count)})
		}
		methods.Render()
	}

	if r.Summary.TotalErrors > 0 || r.Summary.RejectedInsertions > 0 {
		fmt.Fprintf(w, "\nerrors: %d, rejected insertions: %d\n",
			r.Summary.TotalErrors, r.Summary.RejectedInsertions)
	}
}
