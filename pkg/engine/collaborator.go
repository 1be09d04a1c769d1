package engine

import "context"

// CrawlResult is what the external crawl collaborator returns for one host:
// how many pages it rendered and every raw link it extracted.
type CrawlResult struct {
	Pages int
	Links []string
}

// Crawler renders/fetches a host's content. Failures are tolerated: the
// engine marks the host crawled with an empty result and counts the error.
type Crawler interface {
	Crawl(ctx context.Context, host string) (*CrawlResult, error)
}

// Analysis is the external classification verdict for a third-party host.
type Analysis struct {
	RiskLevel      string
	Classification string
}

// Analyzer classifies third-party hosts after the discovery loop ends. It is
// invoked under the configured rate limiting.
type Analyzer interface {
	AnalyzeThirdParty(ctx context.Context, host string, sourceURLs []string) (*Analysis, error)
}
