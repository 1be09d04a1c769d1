package controller

import "time"

// State names one phase of the run's state machine.
type State string

const (
	StateInitializing       State = "initializing"
	StateSubdomainDiscovery State = "subdomain_discovery"
	StateContentCrawling    State = "content_crawling"
	StateDomainExtraction   State = "domain_extraction"
	StateThirdPartyAnalysis State = "third_party_analysis"
	StateCompleted          State = "completed"
	StateError              State = "error"
)

// StoppingCondition is the immutable run configuration evaluated after every
// iteration. Zero values disable the corresponding predicate.
type StoppingCondition struct {
	MaxIterations              int
	MaxTotalDomains            int
	MaxRuntime                 time.Duration
	ConsecutiveEmptyIterations int
	MemoryLimitMB              int
	CPULimitPercent            float64
	MinDiscoveryRate           float64
}

// Tuning holds the knobs the controller retunes after every iteration.
type Tuning struct {
	BatchSize        int
	ConcurrencyLimit int
	Delay            time.Duration
}

// Tuning clamp bounds.
const (
	MinBatchSize   = 10
	MaxBatchSize   = 200
	MinConcurrency = 5
	MaxConcurrency = 50
	MinDelay       = 100 * time.Millisecond
	MaxDelay       = 5 * time.Second
)

// CPU thresholds steering the concurrency adjustment.
const (
	cpuHighWater = 80.0
	cpuLowWater  = 50.0
)

// errorDelayThreshold is the per-iteration error count above which the
// adaptive delay grows.
const errorDelayThreshold = 10

// ResourceSnapshot is one point-in-time resource reading.
type ResourceSnapshot struct {
	HeapMB        float64 `json:"heap_mb"`
	SysMB         float64 `json:"sys_mb"`
	TotalSystemMB float64 `json:"total_system_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
}

// QueueSizes snapshots the three phase queues.
type QueueSizes struct {
	Discover   int `json:"discover"`
	Crawl      int `json:"crawl"`
	ThirdParty int `json:"third_party"`
}

func (q QueueSizes) empty() bool {
	return q.Discover == 0 && q.Crawl == 0 && q.ThirdParty == 0
}

// IterationMetrics records one iteration. It is appended to the history by
// EndIteration and immutable thereafter.
type IterationMetrics struct {
	Iteration      int              `json:"iteration"`
	Phase          State            `json:"phase"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        time.Time        `json:"ended_at"`
	NewDomains     int              `json:"new_domains"`
	PagesCrawled   int              `json:"pages_crawled"`
	LinksExtracted int              `json:"links_extracted"`
	Errors         int              `json:"errors"`
	Warnings       int              `json:"warnings"`
	DiscoveryRate  float64          `json:"discovery_rate"`
	Resources      ResourceSnapshot `json:"resources"`
	QueueSizes     QueueSizes       `json:"queue_sizes"`
}
