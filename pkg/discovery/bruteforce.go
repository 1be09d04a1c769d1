package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const bruteForceConfidence = 0.9

// BruteForce resolves a fixed wordlist of common labels under the target
// domain. NXDOMAIN and lookup timeouts are normal misses, never errors.
type BruteForce struct {
	wordlist []string
	servers  []string
	timeout  time.Duration
	limit    int
	client   *dns.Client
}

// BruteForceConfig configures the brute-force resolver.
type BruteForceConfig struct {
	Wordlist []string
	Servers  []string
	Timeout  time.Duration
	// Limit bounds concurrent in-flight queries.
	Limit int
}

// NewBruteForce creates the method. Zero-value fields fall back to the
// default wordlist, public resolvers, a 3s timeout and 16 in-flight queries.
func NewBruteForce(cfg BruteForceConfig) *BruteForce {
	if len(cfg.Wordlist) == 0 {
		cfg.Wordlist = DefaultWordlist
	}
	if len(cfg.Servers) == 0 {
		cfg.Servers = []string{
			"8.8.8.8:53",
			"8.8.4.4:53",
			"1.1.1.1:53",
			"1.0.0.1:53",
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Limit == 0 {
		cfg.Limit = 16
	}
	return &BruteForce{
		wordlist: cfg.Wordlist,
		servers:  cfg.Servers,
		timeout:  cfg.Timeout,
		limit:    cfg.Limit,
		client:   &dns.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Method.
func (b *BruteForce) Name() string {
	return MethodBruteForce
}

// Run implements Method.
func (b *BruteForce) Run(ctx context.Context, domain string) ([]Candidate, error) {
	var (
		mu         sync.Mutex
		candidates []Candidate
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	for i, label := range b.wordlist {
		host := label + "." + domain
		server := b.servers[i%len(b.servers)]
		g.Go(func() error {
			addrs := b.resolve(ctx, host, server)
			if len(addrs) == 0 {
				return nil
			}
			mu.Lock()
			candidates = append(candidates, Candidate{
				Host:       host,
				Confidence: bruteForceConfidence,
				Addresses:  addrs,
			})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return candidates, nil
}

// resolve performs a single A query against one server. All failures are
// treated as misses.
func (b *BruteForce) resolve(ctx context.Context, host, server string) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	qctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	in, _, err := b.client.ExchangeContext(qctx, msg, server)
	if err != nil || in == nil || in.Rcode != dns.RcodeSuccess {
		return nil
	}

	var addrs []string
	for _, rr := range in.Answer {
		switch record := rr.(type) {
		case *dns.A:
			addrs = append(addrs, record.A.String())
		case *dns.AAAA:
			addrs = append(addrs, record.AAAA.String())
		}
	}
	return addrs
}
