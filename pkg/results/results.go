// Package results provides utilities for loading, filtering, and analyzing
// saved scenario results.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/clipcheck/clipcheck/pkg/harness"
)

// Stats holds computed statistics from a results file.
type Stats struct {
	ResultsFile       string  `json:"resultsFile"`
	ScenariosTotal    int     `json:"scenariosTotal"`
	ScenariosPassed   int     `json:"scenariosPassed"`
	ScenarioPassRate  float64 `json:"scenarioPassRate"`
	AssertionsTotal   int     `json:"assertionsTotal"`
	AssertionsPassed  int     `json:"assertionsPassed"`
	AssertionPassRate float64 `json:"assertionPassRate"`
	TotalInputTokens  int64   `json:"totalInputTokens"`
	TotalOutputTokens int64   `json:"totalOutputTokens"`
	AvgDurationMs     int64   `json:"avgDurationMs"`
}

// Save writes a suite result as indented JSON.
func Save(path string, suite *harness.SuiteResult) error {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}

// Load reads a JSON results file and returns the parsed suite.
func Load(path string) (*harness.SuiteResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	suite := &harness.SuiteResult{}
	if err := json.Unmarshal(data, suite); err != nil {
		return nil, fmt.Errorf("failed to parse results JSON: %w", err)
	}
	return suite, nil
}

// Filter returns the subset of results whose scenario names contain the
// filter substring.
func Filter(results []*harness.TestResult, filter string) []*harness.TestResult {
	if filter == "" {
		return results
	}

	filter = strings.ToLower(filter)
	filtered := make([]*harness.TestResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.ScenarioName), filter) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// CalculateStats computes statistics over a set of scenario results.
func CalculateStats(resultsFile string, results []*harness.TestResult) Stats {
	stats := Stats{
		ResultsFile:    resultsFile,
		ScenariosTotal: len(results),
	}

	var totalDuration int64
	for _, result := range results {
		if result.Passed {
			stats.ScenariosPassed++
		}
		for _, a := range result.Assertions {
			stats.AssertionsTotal++
			if a.Passed || a.SoftCheck {
				stats.AssertionsPassed++
			}
		}
		stats.TotalInputTokens += result.Metrics.InputTokens
		stats.TotalOutputTokens += result.Metrics.OutputTokens
		totalDuration += result.DurationMs
	}

	if stats.ScenariosTotal > 0 {
		stats.ScenarioPassRate = float64(stats.ScenariosPassed) / float64(stats.ScenariosTotal)
		stats.AvgDurationMs = totalDuration / int64(stats.ScenariosTotal)
	}
	if stats.AssertionsTotal > 0 {
		stats.AssertionPassRate = float64(stats.AssertionsPassed) / float64(stats.AssertionsTotal)
	}
	return stats
}

// FailureReason returns the first actionable failure message from a result.
func FailureReason(r *harness.TestResult) string {
	if r.Error != "" {
		return r.Error
	}
	for _, a := range r.Assertions {
		if !a.Passed && !a.SoftCheck && a.Message != "" {
			return fmt.Sprintf("%s: %s", a.Name, a.Message)
		}
	}
	return ""
}
