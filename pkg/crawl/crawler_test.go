package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="https://static.example.net/site.css">
  <script src="//cdn.example.org/app.js"></script>
</head>
<body>
  <a href="/about">About</a>
  <a href="https://partner.example.io/signup">Partner</a>
  <img src="/logo.png">
  Contact us at support.example.com for help.
</body>
</html>`

func TestCrawlExtractsLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "script-src https://trusted.example.edu")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	c := New(5 * time.Second)

	result, err := c.Crawl(context.Background(), host)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if result.Pages != 1 {
		t.Fatalf("pages = %d", result.Pages)
	}

	links := mapset.NewSet(result.Links...)
	for _, want := range []string{
		"https://static.example.net/site.css",
		"//cdn.example.org/app.js",
		"https://partner.example.io/signup",
		"http://" + host + "/about",
		"support.example.com",
		"trusted.example.edu",
	} {
		if !links.Contains(want) {
			t.Errorf("missing link %q in %v", want, result.Links)
		}
	}
}

func TestCrawlServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(2 * time.Second)
	if _, err := c.Crawl(context.Background(), strings.TrimPrefix(srv.URL, "http://")); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestCrawlUnreachableHostFails(t *testing.T) {
	c := New(500 * time.Millisecond)
	if _, err := c.Crawl(context.Background(), "127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable host")
	}
}

func TestResolveRelative(t *testing.T) {
	got := resolveRelative("https", "www.example.com", []string{
		"/about",
		"https://cdn.example.org/app.js",
		"//static.example.net/x.css",
		"mail.example.com",
	})
	want := []string{
		"https://www.example.com/about",
		"https://cdn.example.org/app.js",
		"//static.example.net/x.css",
		"mail.example.com",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resolveRelative[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
