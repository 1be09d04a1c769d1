package discovery

import (
	"context"
	"errors"
	"io"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

type fakeMethod struct {
	name       string
	candidates []Candidate
	err        error
}

func (f *fakeMethod) Name() string { return f.name }

func (f *fakeMethod) Run(_ context.Context, _ string) ([]Candidate, error) {
	return f.candidates, f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestMergeConfidenceAndMethods(t *testing.T) {
	a := NewAggregator(AggregatorConfig{
		Methods: []Method{
			&fakeMethod{name: "bruteforce", candidates: []Candidate{
				{Host: "www.example.com", Confidence: 0.4},
			}},
			&fakeMethod{name: "ctlog", candidates: []Candidate{
				{Host: "WWW.example.com", Confidence: 0.9},
			}},
		},
		Log: quietLogger(),
	})

	outcome := a.Discover(context.Background(), "example.com")
	if len(outcome.Results) != 1 {
		t.Fatalf("expected 1 merged result, got %d", len(outcome.Results))
	}
	result := outcome.Results[0]
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, expected 0.9 (max)", result.Confidence)
	}
	expected := mapset.NewSet("bruteforce", "ctlog")
	if !result.Methods.Equal(expected) {
		t.Errorf("Methods = %v, expected %v", result.Methods, expected)
	}
	if result.Host != "www.example.com" {
		t.Errorf("Host = %q, expected canonical form", result.Host)
	}
}

func TestFailureIsolation(t *testing.T) {
	a := NewAggregator(AggregatorConfig{
		Methods: []Method{
			&fakeMethod{name: "bruteforce", err: errors.New("resolver unreachable")},
			&fakeMethod{name: "ctlog", candidates: []Candidate{
				{Host: "api.example.com", Confidence: 0.8},
			}},
		},
		Log: quietLogger(),
	})

	outcome := a.Discover(context.Background(), "example.com")
	if outcome.Failures != 1 {
		t.Errorf("Failures = %d, expected 1", outcome.Failures)
	}
	if len(outcome.Results) != 1 || outcome.Results[0].Host != "api.example.com" {
		t.Errorf("sibling method's results lost: %v", outcome.Results)
	}
}

func TestAllMethodsFail(t *testing.T) {
	a := NewAggregator(AggregatorConfig{
		Methods: []Method{
			&fakeMethod{name: "bruteforce", err: errors.New("network down")},
			&fakeMethod{name: "ctlog", err: errors.New("network down")},
			&fakeMethod{name: "searchengine", err: errors.New("network down")},
		},
		Log: quietLogger(),
	})

	outcome := a.Discover(context.Background(), "example.com")
	if len(outcome.Results) != 0 {
		t.Errorf("expected empty result set, got %v", outcome.Results)
	}
	if outcome.Failures != 3 {
		t.Errorf("Failures = %d, expected 3", outcome.Failures)
	}
}

func TestTruncationByConfidence(t *testing.T) {
	a := NewAggregator(AggregatorConfig{
		Methods: []Method{
			&fakeMethod{name: "searchengine", candidates: []Candidate{
				{Host: "low1.example.com", Confidence: 0.3},
				{Host: "high.example.com", Confidence: 0.9},
				{Host: "low2.example.com", Confidence: 0.3},
				{Host: "mid.example.com", Confidence: 0.6},
			}},
		},
		MaxResults: 3,
		Log:        quietLogger(),
	})

	outcome := a.Discover(context.Background(), "example.com")
	if len(outcome.Results) != 3 {
		t.Fatalf("expected 3 results after truncation, got %d", len(outcome.Results))
	}
	expected := []string{"high.example.com", "mid.example.com", "low1.example.com"}
	for i, host := range expected {
		if outcome.Results[i].Host != host {
			t.Errorf("result %d = %q, expected %q (confidence desc, discovery order tiebreak)", i, outcome.Results[i].Host, host)
		}
	}
}

func TestMalformedCandidatesDropped(t *testing.T) {
	a := NewAggregator(AggregatorConfig{
		Methods: []Method{
			&fakeMethod{name: "ctlog", candidates: []Candidate{
				{Host: "valid.example.com", Confidence: 0.8},
				{Host: "192.168.0.1", Confidence: 0.8},
				{Host: "localhost", Confidence: 0.8},
				{Host: "", Confidence: 0.8},
			}},
		},
		Log: quietLogger(),
	})

	outcome := a.Discover(context.Background(), "example.com")
	if len(outcome.Results) != 1 || outcome.Results[0].Host != "valid.example.com" {
		t.Errorf("expected only the valid host, got %v", outcome.Results)
	}
}
