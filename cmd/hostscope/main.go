package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostscope/hostscope/pkg/config"
	"github.com/hostscope/hostscope/pkg/controller"
	"github.com/hostscope/hostscope/pkg/crawl"
	"github.com/hostscope/hostscope/pkg/engine"
	"github.com/hostscope/hostscope/pkg/metrics"

	"github.com/jessevdk/go-flags"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Options holds the command line configuration
type Options struct {
	Domain     string `short:"d" long:"domain" description:"Seed domain to scan" required:"true"`
	OutputFile string `short:"o" long:"output" description:"JSON report output file" default:"report.json"`

	// Stopping conditions
	MaxIterations   int     `long:"max-iterations" description:"Maximum exploration iterations" default:"50"`
	MaxDomains      int     `long:"max-domains" description:"Maximum domains in the pool" default:"10000"`
	MaxRuntimeHours float64 `long:"max-runtime" description:"Maximum runtime in hours" default:"12"`
	MemoryLimitMB   int     `long:"memory-limit" description:"Heap limit in MB before the run stops" default:"2048"`

	// Initial tuning
	BatchSize   int `long:"batch-size" description:"Initial per-iteration batch size" default:"20"`
	Concurrency int `long:"concurrency" description:"Initial worker concurrency" default:"10"`

	// Discovery
	DNSServers []string `long:"dns-server" description:"DNS resolver (repeatable)"`
	NoVerify   bool     `long:"no-verify" description:"Skip HTTP accessibility probes"`

	// Optional API credentials; empty means the provider is skipped
	VirusTotalKey     string `long:"virustotal-key" description:"VirusTotal API key" env:"HOSTSCOPE_VT_KEY"`
	SecurityTrailsKey string `long:"securitytrails-key" description:"SecurityTrails API key" env:"HOSTSCOPE_ST_KEY"`

	// Observability
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g. :9090)"`
	LogLevel    string `long:"log-level" description:"Log level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	NoProgress  bool   `long:"no-progress" description:"Disable the progress display"`
}

// ParseFlags parses command line flags
func ParseFlags() (*Options, error) {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, err
	}
	return opts, nil
}

func (o *Options) scanConfig() *config.ScanConfig {
	cfg := config.Default()
	cfg.MaxIterations = o.MaxIterations
	cfg.MaxTotalDomains = o.MaxDomains
	cfg.MaxRuntimeHours = o.MaxRuntimeHours
	cfg.MemoryLimitMB = o.MemoryLimitMB
	cfg.BatchSize = o.BatchSize
	cfg.ConcurrencyLimit = o.Concurrency
	cfg.DNSServers = o.DNSServers
	cfg.VerifyAccessibility = !o.NoVerify
	cfg.VirusTotalAPIKey = o.VirusTotalKey
	cfg.SecurityTrailsAPIKey = o.SecurityTrailsKey
	return cfg
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
	return log
}

func main() {
	opts, err := ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(opts.LogLevel)
	cfg := opts.scanConfig()

	collector := metrics.NewCollector()
	if opts.MetricsAddr != "" {
		go func() {
			if err := collector.Serve(opts.MetricsAddr); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithCollector(collector),
		engine.WithCrawler(crawl.New(cfg.HTTPTimeout)),
	}

	var bar *progressbar.ProgressBar
	if !opts.NoProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("exploring "+opts.Domain),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("iterations"),
		)
		engineOpts = append(engineOpts, engine.WithIterationHook(func(m *controller.IterationMetrics) {
			_ = bar.Add(1)
			bar.Describe(fmt.Sprintf("iteration %d: %d new domains", m.Iteration, m.NewDomains))
		}))
	}

	scanner, err := engine.New(cfg, engineOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, finishing current iteration...")
		cancel()
	}()

	report, err := scanner.Start(ctx, opts.Domain)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	report.PrintSummary(os.Stdout)

	if opts.OutputFile != "" {
		if err := report.WriteJSON(opts.OutputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
		log.WithField("path", opts.OutputFile).Info("report written")
	}
}
