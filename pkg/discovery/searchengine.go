package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hostscope/hostscope/pkg/extract"

	"github.com/PuerkitoBio/goquery"
)

const searchConfidence = 0.6

// maxSearchBody bounds how much of a result page is read.
const maxSearchBody = 5 * 1024 * 1024

// engine describes one search engine's paginated site-restricted query URL.
type engine struct {
	name    string
	pageURL func(domain string, page int) string
}

var defaultEngines = []engine{
	{
		name: "bing",
		pageURL: func(domain string, page int) string {
			return "https://www.bing.com/search?q=" + url.QueryEscape("site:"+domain) +
				"&first=" + strconv.Itoa(page*10+1)
		},
	},
	{
		name: "duckduckgo",
		pageURL: func(domain string, page int) string {
			return "https://html.duckduckgo.com/html/?q=" + url.QueryEscape("site:"+domain) +
				"&s=" + strconv.Itoa(page*30)
		},
	},
}

// SearchEngine scrapes site-restricted queries for hostnames mentioned in
// result pages.
type SearchEngine struct {
	client    *http.Client
	engines   []engine
	extractor *extract.Extractor
	pages     int
	delay     time.Duration
}

// SearchEngineConfig configures the scraper.
type SearchEngineConfig struct {
	Client *http.Client
	// Pages per engine; defaults to 3.
	Pages int
	// Delay between requests to one engine; defaults to 1s.
	Delay time.Duration
}

// NewSearchEngine creates the method.
func NewSearchEngine(cfg SearchEngineConfig) *SearchEngine {
	if cfg.Pages == 0 {
		cfg.Pages = 3
	}
	if cfg.Delay == 0 {
		cfg.Delay = time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SearchEngine{
		client:    cfg.Client,
		engines:   defaultEngines,
		extractor: extract.New(),
		pages:     cfg.Pages,
		delay:     cfg.Delay,
	}
}

// Name implements Method.
func (se *SearchEngine) Name() string {
	return MethodSearchEngine
}

// Run implements Method. Per-engine failures are tolerated; the method
// errors only when every engine yields nothing but failures.
func (se *SearchEngine) Run(ctx context.Context, domain string) ([]Candidate, error) {
	seen := make(map[string]bool)
	var candidates []Candidate
	failed := 0

	for _, eng := range se.engines {
		hosts, err := se.scrapeEngine(ctx, eng, domain)
		if err != nil {
			failed++
			continue
		}
		for _, host := range hosts {
			if !seen[host] {
				seen[host] = true
				candidates = append(candidates, Candidate{Host: host, Confidence: searchConfidence})
			}
		}
	}

	if len(candidates) == 0 && failed == len(se.engines) {
		return nil, fmt.Errorf("all %d search engines failed", failed)
	}
	return candidates, nil
}

func (se *SearchEngine) scrapeEngine(ctx context.Context, eng engine, domain string) ([]string, error) {
	var hosts []string
	var lastErr error
	got := false

	for page := 0; page < se.pages; page++ {
		if page > 0 {
			select {
			case <-time.After(se.delay):
			case <-ctx.Done():
				return hosts, ctx.Err()
			}
		}

		pageHosts, err := se.scrapePage(ctx, eng.pageURL(domain, page), domain)
		if err != nil {
			lastErr = err
			continue
		}
		got = true
		hosts = append(hosts, pageHosts...)
		// An empty page means pagination is exhausted.
		if len(pageHosts) == 0 {
			break
		}
	}

	if !got {
		return nil, lastErr
	}
	return hosts, nil
}

func (se *SearchEngine) scrapePage(ctx context.Context, pageURL, domain string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", RandomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := se.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hosts []string
	add := func(candidates []string) {
		for _, host := range extract.FilterBySuffix(candidates, domain) {
			if !seen[host] {
				seen[host] = true
				hosts = append(hosts, host)
			}
		}
	}

	// Result links first, then a regex sweep over the raw page for cite
	// blocks and snippets.
	if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(string(body))); derr == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			add(se.extractor.FromString(href))
		})
	}
	add(se.extractor.FromString(string(body)))

	return hosts, nil
}
