package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hostscope/hostscope/pkg/engine"
	"github.com/hostscope/hostscope/pkg/extract"

	"github.com/PuerkitoBio/goquery"
)

// maxBodySize bounds how much of a page is read.
const maxBodySize = 10 * 1024 * 1024

// protocols to try, in order.
var protocols = []string{"https", "http"}

// HTTPCrawler is the default crawl collaborator: a plain GET of the host's
// root page over HTTPS then HTTP, extracting links from anchors, the raw
// body and host-bearing response headers. Deployments with a rendering
// pipeline substitute their own engine.Crawler.
type HTTPCrawler struct {
	client    *http.Client
	extractor *extract.Extractor
	timeout   time.Duration
}

// New creates an HTTPCrawler.
func New(timeout time.Duration) *HTTPCrawler {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCrawler{
		client:    NewHTTPClient(timeout),
		extractor: extract.New(),
		timeout:   timeout,
	}
}

// Crawl implements engine.Crawler.
func (c *HTTPCrawler) Crawl(ctx context.Context, host string) (*engine.CrawlResult, error) {
	var lastErr error

	for _, protocol := range protocols {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(pctx, http.MethodGet, protocol+"://"+host+"/", nil)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", RandomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := c.client.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			cancel()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		result := c.extractLinks(host, protocol, resp)
		resp.Body.Close()
		cancel()
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no response from %s", host)
	}
	return nil, lastErr
}

func (c *HTTPCrawler) extractLinks(host, protocol string, resp *http.Response) *engine.CrawlResult {
	seen := make(map[string]bool)
	var links []string
	add := func(candidates ...string) {
		for _, link := range candidates {
			link = strings.TrimSpace(link)
			if link != "" && !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err == nil && len(body) > 0 {
		if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(string(body))); derr == nil {
			doc.Find("a[href], link[href], script[src], img[src], iframe[src]").Each(func(_ int, sel *goquery.Selection) {
				for _, attr := range []string{"href", "src"} {
					if v, ok := sel.Attr(attr); ok {
						add(v)
					}
				}
			})
		}
		add(c.extractor.FromString(string(body))...)
	}
	add(c.extractor.FromHeaders(resp.Header)...)

	return &engine.CrawlResult{
		Pages: 1,
		Links: resolveRelative(protocol, host, links),
	}
}

// resolveRelative rewrites relative links against the fetched page so the
// canonicalizer sees absolute references; already-absolute links pass
// through untouched.
func resolveRelative(protocol, host string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		switch {
		case strings.HasPrefix(link, "//") || strings.Contains(link, "://"):
			out = append(out, link)
		case strings.HasPrefix(link, "/"):
			out = append(out, protocol+"://"+host+link)
		default:
			out = append(out, link)
		}
	}
	return out
}
