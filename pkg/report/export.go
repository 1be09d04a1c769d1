package report

import (
	"os"

	"github.com/hostscope/hostscope/pkg/controller"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// exportArtifact is the JSON export layout consumed by downstream tooling.
type exportArtifact struct {
	Summary              Summary                        `json:"summary"`
	IterationDetails     []*controller.IterationMetrics `json:"iterationDetails"`
	DiscoveryRateHistory []float64                      `json:"discoveryRateHistory"`
	PerformanceHistory   []controller.ResourceSnapshot  `json:"performanceHistory"`
	Domains              []DomainEntry                  `json:"domains"`
}

// ExportJSON serializes the report artifact.
func (r *FinalReport) ExportJSON() ([]byte, error) {
	performance := make([]controller.ResourceSnapshot, 0, len(r.Iterations))
	for _, m := range r.Iterations {
		performance = append(performance, m.Resources)
	}
	artifact := exportArtifact{
		Summary:              r.Summary,
		IterationDetails:     r.Iterations,
		DiscoveryRateHistory: r.DiscoveryRateHistory,
		PerformanceHistory:   performance,
		Domains:              r.Domains,
	}
	return json.MarshalIndent(artifact, "", "  ")
}

// WriteJSON writes the export artifact to path.
func (r *FinalReport) WriteJSON(path string) error {
	data, err := r.ExportJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
