package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hostscope/hostscope/pkg/canonical"
	"github.com/hostscope/hostscope/pkg/config"
	"github.com/hostscope/hostscope/pkg/controller"
	"github.com/hostscope/hostscope/pkg/discovery"
	"github.com/hostscope/hostscope/pkg/metrics"
	"github.com/hostscope/hostscope/pkg/pool"
	"github.com/hostscope/hostscope/pkg/queue"
	"github.com/hostscope/hostscope/pkg/report"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

// Engine is the pipeline executor. It owns the domain pool and the three
// phase queues; all mutation happens on the goroutine running Start, while
// network-bound work is fanned out to bounded worker tasks that return pure
// results. One Engine instance serves one scan and is discarded afterwards.
type Engine struct {
	cfg        *config.ScanConfig
	log        *logrus.Logger
	pool       *pool.Pool
	discoverQ  *queue.HostQueue
	crawlQ     *queue.HostQueue
	thirdPtyQ  *queue.HostQueue
	aggregator *discovery.Aggregator
	crawler    Crawler
	analyzer   Analyzer
	ctrl       *controller.Controller
	collector  *metrics.Collector

	// linkSeen memoizes (page, raw link) pairs so a page's repeated
	// references are canonicalized once per run.
	linkSeen *bloom.BloomFilter

	seedHost     string
	seedRoot     string
	lastRejected int

	onIteration func(*controller.IterationMetrics)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCrawler substitutes the crawl collaborator.
func WithCrawler(c Crawler) Option {
	return func(e *Engine) { e.crawler = c }
}

// WithAnalyzer sets the third-party analysis collaborator.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithAggregator substitutes the discovery aggregator.
func WithAggregator(a *discovery.Aggregator) Option {
	return func(e *Engine) { e.aggregator = a }
}

// WithLogger sets the run logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithIterationHook registers a callback invoked after every iteration,
// used by the CLI for progress display.
func WithIterationHook(fn func(*controller.IterationMetrics)) Option {
	return func(e *Engine) { e.onIteration = fn }
}

// New creates an engine for one scan run.
func New(cfg *config.ScanConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		log:       logrus.New(),
		discoverQ: queue.NewHostQueue(),
		crawlQ:    queue.NewHostQueue(),
		thirdPtyQ: queue.NewHostQueue(),
		linkSeen:  bloom.NewWithEstimates(cfg.LinkFilterSize, cfg.LinkFilterFalsePositive),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pool = pool.New(cfg.MaxTotalDomains, e.log)
	if e.collector == nil {
		e.collector = metrics.NewCollector()
	}
	if e.aggregator == nil {
		e.aggregator = e.defaultAggregator()
	}
	return e, nil
}

func (e *Engine) defaultAggregator() *discovery.Aggregator {
	methods := []discovery.Method{
		discovery.NewBruteForce(discovery.BruteForceConfig{
			Servers: e.cfg.DNSServers,
			Timeout: e.cfg.DNSTimeout,
			Limit:   e.cfg.DNSConcurrency,
		}),
		discovery.NewCertTransparency(nil, e.cfg.HTTPTimeout),
		discovery.NewSearchEngine(discovery.SearchEngineConfig{
			Pages: e.cfg.SearchPages,
			Delay: e.cfg.SearchDelay,
		}),
		discovery.NewAPISource(nil, discovery.APICredentials{
			VirusTotal:     e.cfg.VirusTotalAPIKey,
			SecurityTrails: e.cfg.SecurityTrailsAPIKey,
		}, e.cfg.HTTPTimeout),
	}
	var verifier *discovery.Verifier
	if e.cfg.VerifyAccessibility {
		verifier = discovery.NewVerifier(nil, e.cfg.ProbeTimeout)
	}
	return discovery.NewAggregator(discovery.AggregatorConfig{
		Methods:    methods,
		Verifier:   verifier,
		MaxResults: e.cfg.MaxDiscoveryResults,
		Log:        e.log,
	})
}

// Pool exposes the registry for reporting and tests.
func (e *Engine) Pool() *pool.Pool {
	return e.pool
}

// QueueSizes snapshots the three phase queues.
func (e *Engine) QueueSizes() controller.QueueSizes {
	return controller.QueueSizes{
		Discover:   e.discoverQ.Len(),
		Crawl:      e.crawlQ.Len(),
		ThirdParty: e.thirdPtyQ.Len(),
	}
}

// Start runs the scan. It errors only on an invalid seed; every network
// failure during the run is absorbed and counted, and a FinalReport is
// always produced.
func (e *Engine) Start(ctx context.Context, seedDomain string) (*report.FinalReport, error) {
	seed, ok := canonical.Normalize(seedDomain)
	if !ok {
		return nil, fmt.Errorf("invalid seed domain %q", seedDomain)
	}
	e.seedHost = canonical.Key(bareHost(seed))
	e.seedRoot = registrableRoot(seed)
	startedAt := time.Now()

	e.ctrl = controller.New(
		controller.StoppingCondition{
			MaxIterations:              e.cfg.MaxIterations,
			MaxTotalDomains:            e.cfg.MaxTotalDomains,
			MaxRuntime:                 e.cfg.MaxRuntime(),
			ConsecutiveEmptyIterations: e.cfg.ConsecutiveEmptyIterations,
			MemoryLimitMB:              e.cfg.MemoryLimitMB,
			CPULimitPercent:            e.cfg.CPULimitPercent,
			MinDiscoveryRate:           e.cfg.MinDiscoveryRate,
		},
		controller.Tuning{
			BatchSize:        e.cfg.BatchSize,
			ConcurrencyLimit: e.cfg.ConcurrencyLimit,
			Delay:            e.cfg.IterationDelay,
		},
		e.QueueSizes,
		e.log,
	)

	e.insertHost(seed, pool.TargetMain, discovery.MethodSeed, nil)
	e.log.WithFields(logrus.Fields{
		"seed": seed,
		"root": e.seedRoot,
	}).Info("scan started")

	e.runLoop(ctx)
	e.drainThirdParty(ctx)
	e.ctrl.SetState(controller.StateCompleted)

	final := report.Build(seed, startedAt, e.pool, e.ctrl)
	e.log.WithFields(logrus.Fields{
		"domains":    final.Summary.TotalDomains,
		"iterations": final.Summary.Iterations,
		"reason":     final.Summary.StopReason,
	}).Info("scan finished")
	return final, nil
}

// runLoop drives the iteration cycle until the controller signals stop or
// the context is cancelled. Cancellation takes effect only at iteration
// boundaries; in-flight batch tasks always finish.
func (e *Engine) runLoop(ctx context.Context) {
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return
		}

		m := e.ctrl.StartIteration(n)
		tuning := e.ctrl.Tuning()

		newCount := e.discoveryPhase(ctx, m, tuning)
		e.ctrl.UpdatePhase(controller.StateContentCrawling)
		newCount += e.crawlPhase(ctx, m, tuning)

		m.Warnings = e.pool.Rejected() - e.lastRejected
		e.lastRejected = e.pool.Rejected()

		e.observeIteration(m, tuning)
		cont := e.ctrl.EndIteration(newCount, e.pool.Size())
		if e.onIteration != nil {
			e.onIteration(m)
		}
		if !cont {
			return
		}

		select {
		case <-time.After(e.ctrl.Tuning().Delay):
		case <-ctx.Done():
			return
		}
	}
}

type discoveryOutput struct {
	host    string
	outcome discovery.Outcome
}

// discoveryPhase drains one batch from the discovery queue and runs the
// aggregator on each host. Worker tasks only return results; all pool and
// queue mutation happens here afterwards.
func (e *Engine) discoveryPhase(ctx context.Context, m *controller.IterationMetrics, tuning controller.Tuning) int {
	batch := e.discoverQ.PopBatch(tuning.BatchSize, func(host string) bool {
		record, ok := e.pool.Get(host)
		return !ok || record.SubdomainDiscovered
	})
	if len(batch) == 0 {
		return 0
	}

	var mu sync.Mutex
	outputs := make([]discoveryOutput, 0, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tuning.ConcurrencyLimit)
	for _, host := range batch {
		g.Go(func() error {
			outcome := e.aggregator.Discover(gctx, bareHost(host))
			mu.Lock()
			outputs = append(outputs, discoveryOutput{host: host, outcome: outcome})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	newCount := 0
	for _, out := range outputs {
		e.pool.MarkPhaseComplete(out.host, pool.PhaseSubdomainDiscovery)
		m.Errors += out.outcome.Failures
		for _, result := range out.outcome.Results {
			if e.insertDiscovered(result) {
				newCount++
			}
		}
	}
	return newCount
}

type crawlOutput struct {
	host   string
	result *CrawlResult
	err    error
}

// crawlPhase drains one batch from the crawl queue and invokes the crawl
// collaborator. A failed crawl marks the host crawled with an empty result.
func (e *Engine) crawlPhase(ctx context.Context, m *controller.IterationMetrics, tuning controller.Tuning) int {
	batch := e.crawlQ.PopBatch(tuning.BatchSize, func(host string) bool {
		record, ok := e.pool.Get(host)
		return !ok || record.ContentCrawled
	})
	if len(batch) == 0 {
		return 0
	}
	if e.crawler == nil {
		for _, host := range batch {
			e.pool.MarkPhaseComplete(host, pool.PhaseContentCrawl)
		}
		e.ctrl.UpdatePhase(controller.StateDomainExtraction)
		return 0
	}

	var mu sync.Mutex
	outputs := make([]crawlOutput, 0, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tuning.ConcurrencyLimit)
	for _, host := range batch {
		g.Go(func() error {
			result, err := e.crawler.Crawl(gctx, host)
			mu.Lock()
			outputs = append(outputs, crawlOutput{host: host, result: result, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	e.ctrl.UpdatePhase(controller.StateDomainExtraction)

	newCount := 0
	for _, out := range outputs {
		e.pool.MarkPhaseComplete(out.host, pool.PhaseContentCrawl)
		if out.err != nil {
			m.Errors++
			e.log.WithField("domain", out.host).WithError(out.err).Debug("crawl failed")
			continue
		}
		m.PagesCrawled += out.result.Pages
		m.LinksExtracted += len(out.result.Links)
		sourceURL := "https://" + out.host + "/"
		for _, link := range out.result.Links {
			if e.insertLink(link, sourceURL) {
				newCount++
			}
		}
	}
	return newCount
}

// insertDiscovered classifies and registers one merged discovery result.
func (e *Engine) insertDiscovered(result *discovery.Result) bool {
	methods := result.Methods.ToSlice()
	method := ""
	if len(methods) > 0 {
		method = methods[0]
	}
	isNew, record := e.insertHost(result.Host, e.classify(result.Host), method, nil)
	if record == nil {
		return false
	}
	for _, name := range methods {
		record.Methods.Add(name)
	}
	if result.Probe != nil {
		e.pool.SetAccessible(result.Host, result.Probe.Accessible)
	}
	return isNew
}

// insertLink canonicalizes a raw extracted link and registers its host. The
// bloom filter memoizes per-page link strings, so a page re-submitting the
// same raw link is processed once while sightings from other pages always
// reach the pool and merge their source URL. A false positive drops one
// page-to-link edge, never the host itself when any other page or method
// reports it.
func (e *Engine) insertLink(rawLink, sourceURL string) bool {
	if e.linkSeen.TestAndAdd([]byte(sourceURL + "\x00" + rawLink)) {
		return false
	}
	host, ok := canonical.Normalize(rawLink)
	if !ok {
		return false
	}
	isNew, _ := e.insertHost(host, e.classify(host), discovery.MethodCrawl, []string{sourceURL})
	return isNew
}

// insertHost performs the single-writer pool insertion plus queue fan-out:
// every new host enters the discovery and crawl queues together, and
// third-party hosts additionally enter the analysis queue.
func (e *Engine) insertHost(host string, domainType pool.DomainType, method string, sourceURLs []string) (bool, *pool.DomainRecord) {
	isNew, record := e.pool.AddOrUpdate(host, domainType, method, sourceURLs)
	if record == nil {
		return false, nil
	}
	if isNew {
		e.collector.DomainsDiscovered.WithLabelValues(string(record.Type)).Inc()
		e.discoverQ.Enqueue(host)
		e.crawlQ.Enqueue(host)
		if record.Type == pool.ThirdParty {
			e.thirdPtyQ.Enqueue(host)
		}
	}
	return isNew, record
}

// classify decides a host's type from its suffix relation to the seed's
// registrable root. The decision is made once, at insertion; trailing FQDN
// dots are folded so spelling variants classify identically.
func (e *Engine) classify(host string) pool.DomainType {
	h := canonical.Key(bareHost(host))
	if h == e.seedHost || h == e.seedRoot {
		return pool.TargetMain
	}
	if strings.HasSuffix(h, "."+e.seedRoot) {
		return pool.TargetSubdomain
	}
	return pool.ThirdParty
}

type analysisOutput struct {
	host     string
	analysis *Analysis
	err      error
}

// drainThirdParty performs the final drain: every queued third-party host is
// handed to the analysis collaborator under the configured rate limiting.
// Failures mark the host analyzed with no risk verdict.
func (e *Engine) drainThirdParty(ctx context.Context) {
	e.ctrl.SetState(controller.StateThirdPartyAnalysis)

	var hosts []string
	for _, host := range e.thirdPtyQ.Drain() {
		record, ok := e.pool.Get(host)
		if ok && !record.ThirdPartyAnalyzed {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return
	}

	if e.analyzer == nil {
		for _, host := range hosts {
			e.pool.MarkPhaseComplete(host, pool.PhaseThirdPartyAnalysis)
		}
		return
	}

	var mu sync.Mutex
	outputs := make([]analysisOutput, 0, len(hosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.AnalysisConcurrency)
	for _, host := range hosts {
		record, _ := e.pool.Get(host)
		sourceURLs := record.SourceURLs
		g.Go(func() error {
			e.analysisDelay(gctx)
			analysis, err := e.analyzer.AnalyzeThirdParty(gctx, host, sourceURLs)
			mu.Lock()
			outputs = append(outputs, analysisOutput{host: host, analysis: analysis, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outputs {
		e.pool.MarkPhaseComplete(out.host, pool.PhaseThirdPartyAnalysis)
		if out.err != nil {
			e.log.WithField("domain", out.host).WithError(out.err).Debug("third-party analysis failed")
			continue
		}
		if out.analysis != nil {
			e.pool.SetRisk(out.host, out.analysis.RiskLevel)
		}
	}
}

// analysisDelay sleeps a random duration within the configured rate-limit
// window.
func (e *Engine) analysisDelay(ctx context.Context) {
	min, max := e.cfg.AnalysisDelayMin, e.cfg.AnalysisDelayMax
	delay := min
	if max > min {
		delay = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (e *Engine) observeIteration(m *controller.IterationMetrics, tuning controller.Tuning) {
	sizes := e.QueueSizes()
	e.collector.IterationsTotal.Inc()
	e.collector.ErrorsTotal.Add(float64(m.Errors))
	e.collector.QueueDepth.WithLabelValues("discover").Set(float64(sizes.Discover))
	e.collector.QueueDepth.WithLabelValues("crawl").Set(float64(sizes.Crawl))
	e.collector.QueueDepth.WithLabelValues("third_party").Set(float64(sizes.ThirdParty))
	e.collector.BatchSize.Set(float64(tuning.BatchSize))
	e.collector.ConcurrencyLimit.Set(float64(tuning.ConcurrencyLimit))
}

// bareHost strips a retained non-default port for suffix comparisons and
// discovery queries.
func bareHost(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

// registrableRoot reduces a host to its registrable domain (eTLD+1),
// falling back to the host itself when the public-suffix list cannot place
// it.
func registrableRoot(host string) string {
	h := canonical.Key(bareHost(host))
	root, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil || root == "" {
		return h
	}
	return strings.ToLower(root)
}
