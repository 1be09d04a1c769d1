package discovery

import (
	"context"
	"sort"
	"sync"

	"github.com/hostscope/hostscope/pkg/canonical"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Aggregator runs the configured discovery methods concurrently and merges
// their candidates by canonical host. A method's total failure yields zero
// results for that method only; siblings are never aborted.
type Aggregator struct {
	methods     []Method
	verifier    *Verifier
	maxResults  int
	verifyLimit int
	log         *logrus.Logger
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	Methods []Method
	// Verifier, when set, probes each merged result for accessibility.
	Verifier *Verifier
	// MaxResults caps the merged set per invocation; 0 means unlimited.
	// Truncation keeps the highest confidence first, discovery order as
	// tiebreak.
	MaxResults int
	// VerifyLimit bounds concurrent accessibility probes; defaults to 8.
	VerifyLimit int
	Log         *logrus.Logger
}

// Outcome is one aggregator invocation's merged result set plus the number
// of method failures encountered.
type Outcome struct {
	Results  []*Result
	Failures int
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.VerifyLimit == 0 {
		cfg.VerifyLimit = 8
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	return &Aggregator{
		methods:     cfg.Methods,
		verifier:    cfg.Verifier,
		maxResults:  cfg.MaxResults,
		verifyLimit: cfg.VerifyLimit,
		log:         cfg.Log,
	}
}

type methodOutput struct {
	name       string
	candidates []Candidate
	err        error
}

// Discover runs every method against domain and returns the merged set.
func (a *Aggregator) Discover(ctx context.Context, domain string) Outcome {
	outputs := make(chan methodOutput, len(a.methods))
	var wg sync.WaitGroup
	for _, method := range a.methods {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidates, err := method.Run(ctx, domain)
			outputs <- methodOutput{name: method.Name(), candidates: candidates, err: err}
		}()
	}
	wg.Wait()
	close(outputs)

	merged := make(map[string]*Result)
	var order []string
	failures := 0

	for out := range outputs {
		if out.err != nil {
			failures++
			a.log.WithFields(logrus.Fields{
				"method": out.name,
				"domain": domain,
			}).WithError(out.err).Debug("discovery method failed")
			continue
		}
		for _, c := range out.candidates {
			host, ok := canonical.Normalize(c.Host)
			if !ok {
				continue
			}
			key := canonical.Key(host)
			result, seen := merged[key]
			if !seen {
				result = &Result{
					Host:    host,
					Methods: mapset.NewSet[string](),
					order:   len(order),
				}
				merged[key] = result
				order = append(order, key)
			}
			result.merge(out.name, c)
		}
	}

	results := make([]*Result, 0, len(order))
	for _, key := range order {
		results = append(results, merged[key])
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].order < results[j].order
	})
	if a.maxResults > 0 && len(results) > a.maxResults {
		results = results[:a.maxResults]
	}

	if a.verifier != nil {
		a.verifyAll(ctx, results)
	}

	return Outcome{Results: results, Failures: failures}
}

func (a *Aggregator) verifyAll(ctx context.Context, results []*Result) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.verifyLimit)
	for _, result := range results {
		g.Go(func() error {
			result.Probe = a.verifier.Verify(ctx, result.Host)
			return nil
		})
	}
	_ = g.Wait()
}
