package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const searchResultPage = `<html><body>
<a href="https://www.example.com/docs">Docs</a>
<p>See also mail.example.com for webmail.</p>
</body></html>`

func testSearchEngine(srvURL string) *SearchEngine {
	se := NewSearchEngine(SearchEngineConfig{
		Pages: 1,
		Delay: time.Millisecond,
	})
	se.engines = []engine{{
		name: "test",
		pageURL: func(domain string, page int) string {
			return srvURL + "/?q=site:" + domain
		},
	}}
	return se
}

func TestSearchEngineRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchResultPage))
	}))
	defer srv.Close()

	se := testSearchEngine(srv.URL)
	candidates, err := se.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	hosts := make(map[string]float64)
	for _, c := range candidates {
		hosts[c.Host] = c.Confidence
	}
	for _, want := range []string{"www.example.com", "mail.example.com"} {
		if hosts[want] != searchConfidence {
			t.Errorf("candidate %q missing or wrong confidence: %v", want, hosts)
		}
	}
}

// One SearchEngine instance is shared by every concurrent aggregator
// invocation, so Run must be safe without external locking.
func TestSearchEngineConcurrentRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchResultPage))
	}))
	defer srv.Close()

	se := testSearchEngine(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidates, err := se.Run(context.Background(), "example.com")
			if err != nil {
				t.Errorf("Run: %v", err)
				return
			}
			if len(candidates) == 0 {
				t.Error("no candidates from concurrent run")
			}
		}()
	}
	wg.Wait()
}

func TestRandomUserAgentIsKnown(t *testing.T) {
	known := make(map[string]bool, len(UserAgents))
	for _, ua := range UserAgents {
		known[ua] = true
	}
	for i := 0; i < 20; i++ {
		if ua := RandomUserAgent(); !known[ua] {
			t.Fatalf("unknown user agent %q", ua)
		}
	}
}
