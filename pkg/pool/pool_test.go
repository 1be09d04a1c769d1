package pool

import (
	"io"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAddOrUpdateNewAndResight(t *testing.T) {
	p := New(100, quietLogger())

	isNew, record := p.AddOrUpdate("www.example.com", TargetSubdomain, "bruteforce", []string{"https://example.com/"})
	if !isNew || record == nil {
		t.Fatalf("first insertion should be new")
	}
	if record.DiscoveryCount != 1 {
		t.Errorf("DiscoveryCount = %d, expected 1", record.DiscoveryCount)
	}

	isNew, record = p.AddOrUpdate("www.example.com", ThirdParty, "ctlog", []string{"https://crt.sh/"})
	if isNew {
		t.Errorf("re-sighting should not be new")
	}
	if record.Type != TargetSubdomain {
		t.Errorf("domain type changed on re-sighting: %v", record.Type)
	}
	if record.DiscoveryCount != 2 {
		t.Errorf("DiscoveryCount = %d, expected 2", record.DiscoveryCount)
	}
	expected := mapset.NewSet("bruteforce", "ctlog")
	if !record.Methods.Equal(expected) {
		t.Errorf("Methods = %v, expected %v", record.Methods, expected)
	}
	if len(record.SourceURLs) != 2 {
		t.Errorf("SourceURLs = %v, expected 2 entries", record.SourceURLs)
	}
	if p.Size() != 1 {
		t.Errorf("Size = %d, expected 1", p.Size())
	}
}

func TestCapacityRejection(t *testing.T) {
	p := New(2, quietLogger())

	p.AddOrUpdate("a.example.com", TargetSubdomain, "bruteforce", nil)
	p.AddOrUpdate("b.example.com", TargetSubdomain, "bruteforce", nil)

	isNew, record := p.AddOrUpdate("c.example.com", TargetSubdomain, "bruteforce", nil)
	if isNew || record != nil {
		t.Errorf("insertion beyond capacity should be rejected")
	}
	if p.Size() != 2 {
		t.Errorf("Size = %d, expected 2", p.Size())
	}
	if p.Rejected() != 1 {
		t.Errorf("Rejected = %d, expected 1", p.Rejected())
	}

	// Updates to existing records still work at capacity.
	isNew, record = p.AddOrUpdate("a.example.com", TargetSubdomain, "ctlog", nil)
	if isNew || record == nil {
		t.Errorf("re-sighting at capacity should merge, not reject")
	}
}

func TestPhaseFlagsMonotonic(t *testing.T) {
	p := New(10, quietLogger())
	p.AddOrUpdate("www.example.com", TargetSubdomain, "bruteforce", nil)

	if !p.MarkPhaseComplete("www.example.com", PhaseContentCrawl) {
		t.Fatalf("MarkPhaseComplete failed for existing host")
	}
	record, _ := p.Get("www.example.com")
	if !record.ContentCrawled || record.SubdomainDiscovered {
		t.Errorf("unexpected flag state: %+v", record)
	}

	// Marking again keeps the flag set.
	p.MarkPhaseComplete("www.example.com", PhaseContentCrawl)
	if !record.ContentCrawled {
		t.Errorf("flag regressed")
	}

	if p.MarkPhaseComplete("missing.example.com", PhaseContentCrawl) {
		t.Errorf("MarkPhaseComplete should fail for unknown host")
	}
}

func TestFilter(t *testing.T) {
	p := New(10, quietLogger())
	p.AddOrUpdate("example.com", TargetMain, "seed", nil)
	p.AddOrUpdate("www.example.com", TargetSubdomain, "bruteforce", nil)
	p.AddOrUpdate("cdn.example.org", ThirdParty, "crawl", nil)
	p.SetRisk("cdn.example.org", "high")

	if got := len(p.Filter(FilterOptions{Type: TargetSubdomain})); got != 1 {
		t.Errorf("Filter by type = %d records, expected 1", got)
	}
	if got := len(p.Filter(FilterOptions{RiskLevel: "high"})); got != 1 {
		t.Errorf("Filter by risk = %d records, expected 1", got)
	}
	flagged := true
	if got := len(p.Filter(FilterOptions{HasRisk: &flagged})); got != 1 {
		t.Errorf("Filter by HasRisk = %d records, expected 1", got)
	}

	counts := p.CountByType()
	if counts[TargetMain] != 1 || counts[TargetSubdomain] != 1 || counts[ThirdParty] != 1 {
		t.Errorf("CountByType = %v", counts)
	}
}

func TestFQDNSpellingSharesRecord(t *testing.T) {
	p := New(10, quietLogger())
	p.AddOrUpdate("example.com.", TargetMain, "seed", nil)
	isNew, _ := p.AddOrUpdate("example.com", TargetMain, "seed", nil)
	if isNew || p.Size() != 1 {
		t.Errorf("FQDN spelling should merge into one record, size=%d", p.Size())
	}
}

func TestMethodNamesSorted(t *testing.T) {
	p := New(10, quietLogger())
	_, record := p.AddOrUpdate("www.example.com", TargetSubdomain, "searchengine", nil)
	record.Methods.Add("bruteforce")
	record.Methods.Add("ctlog")

	got := record.MethodNames()
	want := []string{"bruteforce", "ctlog", "searchengine"}
	if len(got) != len(want) {
		t.Fatalf("MethodNames = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MethodNames[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}
