package report

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hostscope/hostscope/pkg/controller"
	"github.com/hostscope/hostscope/pkg/pool"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testReport(t *testing.T) *FinalReport {
	t.Helper()
	log := quietLogger()

	p := pool.New(100, log)
	p.AddOrUpdate("example.com", pool.TargetMain, "seed", nil)
	p.AddOrUpdate("www.example.com", pool.TargetSubdomain, "bruteforce", nil)
	p.AddOrUpdate("www.example.com", pool.TargetSubdomain, "ctlog", nil)
	p.AddOrUpdate("cdn.example.org", pool.ThirdParty, "crawl", []string{"https://www.example.com/"})
	p.SetRisk("cdn.example.org", "low")

	ctrl := controller.New(controller.StoppingCondition{MaxIterations: 10}, controller.Tuning{
		BatchSize:        20,
		ConcurrencyLimit: 10,
		Delay:            time.Second,
	}, nil, log)
	m := ctrl.StartIteration(1)
	m.NewDomains = 2
	ctrl.EndIteration(2, 3)

	return Build("example.com", time.Now().Add(-time.Minute), p, ctrl)
}

func TestBuild(t *testing.T) {
	r := testReport(t)

	if r.Summary.SeedDomain != "example.com" {
		t.Fatalf("seed = %q", r.Summary.SeedDomain)
	}
	if r.Summary.TotalDomains != 3 {
		t.Fatalf("total = %d, want 3", r.Summary.TotalDomains)
	}
	if r.Summary.DomainsByType[string(pool.TargetSubdomain)] != 1 {
		t.Fatalf("by type = %v", r.Summary.DomainsByType)
	}
	if r.Summary.MethodHistogram["bruteforce"] != 1 || r.Summary.MethodHistogram["ctlog"] != 1 {
		t.Fatalf("method histogram = %v", r.Summary.MethodHistogram)
	}
	if r.Summary.Iterations != 1 {
		t.Fatalf("iterations = %d", r.Summary.Iterations)
	}
	if len(r.Domains) != 3 {
		t.Fatalf("domains listed = %d", len(r.Domains))
	}

	var cdn *DomainEntry
	for i := range r.Domains {
		if r.Domains[i].Domain == "cdn.example.org" {
			cdn = &r.Domains[i]
		}
	}
	if cdn == nil {
		t.Fatal("cdn.example.org missing from listing")
	}
	if cdn.RiskLevel != "low" || len(cdn.SourceURLs) != 1 {
		t.Fatalf("cdn entry = %+v", cdn)
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	r := testReport(t)

	data, err := r.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var artifact exportArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if artifact.Summary.TotalDomains != 3 {
		t.Fatalf("exported total = %d", artifact.Summary.TotalDomains)
	}
	if len(artifact.Domains) != 3 {
		t.Fatalf("exported domains = %d", len(artifact.Domains))
	}
	if len(artifact.IterationDetails) != 1 {
		t.Fatalf("exported iterations = %d", len(artifact.IterationDetails))
	}
}

func TestPrintSummary(t *testing.T) {
	r := testReport(t)

	var buf bytes.Buffer
	r.PrintSummary(&buf)

	out := buf.String()
	for _, want := range []string{"example.com", string(pool.ThirdParty), "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}
