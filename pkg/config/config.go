package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// ScanConfig is the run configuration handed to the engine. Defaults follow
// the struct tags; Validate rejects only malformed top-level settings.
type ScanConfig struct {
	// Stopping conditions.
	MaxIterations              int     `default:"50"`
	MaxTotalDomains            int     `default:"10000"`
	MaxRuntimeHours            float64 `default:"12"`
	ConsecutiveEmptyIterations int     `default:"3"`
	MemoryLimitMB              int     `default:"2048"`
	CPULimitPercent            float64 `default:"85"`
	MinDiscoveryRate           float64 `default:"0.001"`

	// Initial adaptive knobs; the controller retunes them every iteration.
	BatchSize        int           `default:"20"`
	ConcurrencyLimit int           `default:"10"`
	IterationDelay   time.Duration `default:"500ms"`

	// Discovery.
	MaxDiscoveryResults int           `default:"500"`
	DNSServers          []string      `default:"[]"`
	DNSTimeout          time.Duration `default:"3s"`
	DNSConcurrency      int           `default:"16"`
	SearchPages         int           `default:"3"`
	SearchDelay         time.Duration `default:"1s"`
	HTTPTimeout         time.Duration `default:"10s"`
	ProbeTimeout        time.Duration `default:"5s"`
	VerifyAccessibility bool          `default:"true"`

	// Optional API credentials; providers without one are skipped.
	VirusTotalAPIKey     string
	SecurityTrailsAPIKey string

	// Third-party analysis drain rate limiting.
	AnalysisDelayMin    time.Duration `default:"200ms"`
	AnalysisDelayMax    time.Duration `default:"1s"`
	AnalysisConcurrency int           `default:"4"`

	// Raw-link pre-filter sizing.
	LinkFilterSize          uint    `default:"1000000"`
	LinkFilterFalsePositive float64 `default:"0.01"`
}

// Default returns a ScanConfig with every default applied.
func Default() *ScanConfig {
	cfg := &ScanConfig{}
	_ = defaults.Set(cfg)
	return cfg
}

// MaxRuntime converts the configured hours to a duration.
func (c *ScanConfig) MaxRuntime() time.Duration {
	return time.Duration(c.MaxRuntimeHours * float64(time.Hour))
}

// Validate checks the top-level configuration.
func (c *ScanConfig) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be non-negative, got %d", c.MaxIterations)
	}
	if c.MaxTotalDomains <= 0 {
		return fmt.Errorf("max total domains must be positive, got %d", c.MaxTotalDomains)
	}
	if c.MaxRuntimeHours < 0 {
		return fmt.Errorf("max runtime must be non-negative, got %v", c.MaxRuntimeHours)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("concurrency limit must be positive, got %d", c.ConcurrencyLimit)
	}
	if c.CPULimitPercent < 0 || c.CPULimitPercent > 100 {
		return fmt.Errorf("cpu limit percent must be within [0,100], got %v", c.CPULimitPercent)
	}
	if c.MinDiscoveryRate < 0 || c.MinDiscoveryRate > 1 {
		return fmt.Errorf("min discovery rate must be within [0,1], got %v", c.MinDiscoveryRate)
	}
	if c.AnalysisDelayMax < c.AnalysisDelayMin {
		return fmt.Errorf("analysis delay range inverted: %v > %v", c.AnalysisDelayMin, c.AnalysisDelayMax)
	}
	return nil
}
