// Package harness orchestrates scenario runs: fixtures in, agent run under
// timeout, diff and assertion evaluation out. Errors never escape a run;
// they are folded into the TestResult so a whole suite always completes.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipcheck/clipcheck/pkg/agentrun"
	"github.com/clipcheck/clipcheck/pkg/expect"
	"github.com/clipcheck/clipcheck/pkg/fixture"
	"github.com/clipcheck/clipcheck/pkg/scenario"
	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// TestResult is the complete record of one scenario run, including partial
// data salvaged from timed-out or failed runs.
type TestResult struct {
	ID           string                   `json:"id"`
	ScenarioName string                   `json:"scenarioName"`
	AgentType    string                   `json:"agentType"`
	Passed       bool                     `json:"passed"`
	Error        string                   `json:"error,omitempty"`
	Assertions   []expect.AssertionResult `json:"assertions"`
	ToolCalls    []*tracker.ToolCall      `json:"toolCalls"`
	Diff         *store.Diff              `json:"diff,omitempty"`
	Response     string                   `json:"response"`
	Metrics      agentrun.Metrics         `json:"metrics"`
	Messages     []agentrun.Message       `json:"messages,omitempty"`
	Prompt       *agentrun.ResolvedPrompt `json:"prompt,omitempty"`
	StartedAt    time.Time                `json:"startedAt"`
	DurationMs   int64                    `json:"durationMs"`
}

// SuiteStats aggregates token and latency figures over one run of many
// scenarios.
type SuiteStats struct {
	Total             int   `json:"total"`
	Passed            int   `json:"passed"`
	Failed            int   `json:"failed"`
	TotalInputTokens  int64 `json:"totalInputTokens"`
	TotalOutputTokens int64 `json:"totalOutputTokens"`
	TotalDurationMs   int64 `json:"totalDurationMs"`
	AvgDurationMs     int64 `json:"avgDurationMs"`
}

type SuiteResult struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Results   []*TestResult `json:"results"`
	Stats     SuiteStats    `json:"stats"`
}

func (s *SuiteResult) AllPassed() bool {
	for _, r := range s.Results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Config holds the collaborators shared by every scenario in a run.
type Config struct {
	Loader  fixture.Loader
	Runtime agentrun.Runtime

	// DefaultSystemPrompt applies when a scenario declares none.
	DefaultSystemPrompt *scenario.PromptConfig
	// DefaultTimeoutSeconds applies when a scenario declares none. Zero
	// falls back to the scenario package default.
	DefaultTimeoutSeconds int
}

type Runner struct {
	cfg      Config
	progress ProgressCallback
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("a fixture loader is required to create a runner")
	}
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("an agent runtime is required to create a runner")
	}
	return &Runner{cfg: cfg, progress: NoopProgressCallback}, nil
}

// RunScenario executes one scenario end to end. It never returns an error;
// every failure mode is folded into the result.
func (r *Runner) RunScenario(ctx context.Context, sc *scenario.Scenario) *TestResult {
	result := &TestResult{
		ID:           uuid.NewString(),
		ScenarioName: sc.Metadata.Name,
		AgentType:    sc.Metadata.AgentType,
		StartedAt:    time.Now(),
	}
	defer func() {
		result.DurationMs = time.Since(result.StartedAt).Milliseconds()
	}()

	if err := sc.Validate(); err != nil {
		return failResult(result, "invalid scenario", err)
	}

	st, err := r.cfg.Loader.Load(ctx, sc.Input.ProjectID, sc.Input.ChapterID)
	if err != nil {
		return failResult(result, "fixture loading failed", err)
	}
	before := st.Snapshot()

	trk := tracker.New()
	adapter, err := agentrun.NewAdapter(agentrun.Config{
		AgentType:            sc.Metadata.AgentType,
		Store:                st,
		Tracker:              trk,
		Runtime:              r.cfg.Runtime,
		SystemPrompt:         r.promptConfig(sc),
		PlaceholderOverrides: placeholderOverrides(sc),
	})
	if err != nil {
		return failResult(result, "agent configuration failed", err)
	}
	defer adapter.Teardown()

	prompt := adapter.Prompt()
	result.Prompt = &prompt

	runCtx := agentrun.Context{ProjectID: sc.Input.ProjectID, ChapterID: sc.Input.ChapterID}
	chatResult, chatErr := r.chatWithTimeout(ctx, adapter, sc, runCtx)

	// The diff is always computed, even for failed or cancelled runs, so
	// partial mutations stay visible in the report.
	after := st.Snapshot()
	result.Diff = store.ComputeDiff(before, after)

	systemMsg := agentrun.TextMessage("system", adapter.SystemPrompt(runCtx))
	userMsg := agentrun.TextMessage("user", sc.Input.Message)

	if chatErr != nil {
		messages, metrics := adapter.Partial()
		result.Messages = prependSynthesized(systemMsg, userMsg, messages)
		result.Metrics = metrics
		result.ToolCalls = mergeToolCalls(trk, messages)
		result.Response = agentrun.FinalResponse(messages)
		return failResult(result, "agent run failed", chatErr)
	}

	result.Messages = prependSynthesized(systemMsg, userMsg, chatResult.Messages)
	result.Metrics = chatResult.Metrics
	result.Response = chatResult.Response
	result.ToolCalls = mergeToolCalls(trk, chatResult.Messages)

	r.progress(ProgressEvent{
		Type:    EventScenarioEvaluating,
		Message: fmt.Sprintf("Evaluating expectations for scenario: %s", sc.Metadata.Name),
	})
	result.Assertions, result.Passed = expect.Check(sc.Expectations, expect.Outcome{
		Calls:    result.ToolCalls,
		Diff:     result.Diff,
		Response: result.Response,
	})
	return result
}

// RunScenarios runs scenarios in strict sequence and groups the results
// into a suite with aggregate stats.
func (r *Runner) RunScenarios(ctx context.Context, name string, scenarios []*scenario.Scenario) *SuiteResult {
	return r.RunScenariosWithProgress(ctx, name, scenarios, NoopProgressCallback)
}

func (r *Runner) RunScenariosWithProgress(ctx context.Context, name string, scenarios []*scenario.Scenario, callback ProgressCallback) *SuiteResult {
	r.progress = callback

	suite := &SuiteResult{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now(),
	}

	r.progress(ProgressEvent{
		Type:    EventRunStart,
		Message: fmt.Sprintf("Running %d scenarios", len(scenarios)),
	})

	for _, sc := range scenarios {
		r.progress(ProgressEvent{
			Type:    EventScenarioStart,
			Message: fmt.Sprintf("Starting scenario: %s", sc.Metadata.Name),
		})
		r.progress(ProgressEvent{
			Type:    EventScenarioRunning,
			Message: fmt.Sprintf("Running agent for scenario: %s", sc.Metadata.Name),
		})

		result := r.RunScenario(ctx, sc)

		eventType := EventScenarioComplete
		if result.Error != "" {
			eventType = EventScenarioError
		}
		r.progress(ProgressEvent{
			Type:     eventType,
			Message:  fmt.Sprintf("Completed scenario: %s (passed: %v)", sc.Metadata.Name, result.Passed),
			Scenario: result,
		})

		suite.Results = append(suite.Results, result)
	}

	suite.Stats = computeStats(suite.Results)
	r.progress(ProgressEvent{
		Type:    EventRunComplete,
		Message: fmt.Sprintf("Completed %d scenarios (%d passed)", suite.Stats.Total, suite.Stats.Passed),
	})
	return suite
}

func (r *Runner) promptConfig(sc *scenario.Scenario) *scenario.PromptConfig {
	if sc.SystemPrompt != nil {
		return sc.SystemPrompt
	}
	return r.cfg.DefaultSystemPrompt
}

func (r *Runner) timeout(sc *scenario.Scenario) time.Duration {
	if sc.TimeoutSeconds == nil && r.cfg.DefaultTimeoutSeconds > 0 {
		return time.Duration(r.cfg.DefaultTimeoutSeconds) * time.Second
	}
	return time.Duration(sc.Timeout()) * time.Second
}

// chatWithTimeout races the chat against the scenario timeout. On timeout
// the adapter is cancelled cooperatively; in-flight mutations are kept.
func (r *Runner) chatWithTimeout(ctx context.Context, adapter *agentrun.Adapter, sc *scenario.Scenario, runCtx agentrun.Context) (*agentrun.ChatResult, error) {
	type chatOutcome struct {
		result *agentrun.ChatResult
		err    error
	}

	done := make(chan chatOutcome, 1)
	go func() {
		result, err := adapter.Chat(ctx, uuid.NewString(), sc.Input.Message, agentrun.ChatOptions{}, runCtx, nil)
		done <- chatOutcome{result: result, err: err}
	}()

	timeout := r.timeout(sc)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-done:
		return outcome.result, outcome.err
	case <-timer.C:
		adapter.Cancel()
		return nil, fmt.Errorf("scenario timed out after %s", timeout)
	case <-ctx.Done():
		adapter.Cancel()
		return nil, ctx.Err()
	}
}

func placeholderOverrides(sc *scenario.Scenario) map[string]string {
	if sc.Input.FPS == nil {
		return nil
	}
	return map[string]string{"fps": fmt.Sprintf("%g", *sc.Input.FPS)}
}

func prependSynthesized(systemMsg, userMsg agentrun.Message, messages []agentrun.Message) []agentrun.Message {
	out := make([]agentrun.Message, 0, len(messages)+2)
	out = append(out, systemMsg, userMsg)
	return append(out, messages...)
}

// mergeToolCalls combines tracker-observed calls with calls only visible in
// the message stream, deduplicated by tool name. Tracker records win.
func mergeToolCalls(trk *tracker.Tracker, messages []agentrun.Message) []*tracker.ToolCall {
	calls := trk.Calls()
	seen := make(map[string]bool, len(calls))
	for _, call := range calls {
		seen[call.ToolName] = true
	}

	order := len(calls)
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Type != agentrun.BlockTypeToolUse || seen[block.ToolName] {
				continue
			}
			seen[block.ToolName] = true
			calls = append(calls, &tracker.ToolCall{
				ToolName:  block.ToolName,
				Input:     block.Input,
				Timestamp: time.Now(),
				Order:     order,
			})
			order++
		}
	}
	return calls
}

func computeStats(results []*TestResult) SuiteStats {
	stats := SuiteStats{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
		stats.TotalInputTokens += r.Metrics.InputTokens
		stats.TotalOutputTokens += r.Metrics.OutputTokens
		stats.TotalDurationMs += r.DurationMs
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = stats.TotalDurationMs / int64(stats.Total)
	}
	return stats
}

func failResult(result *TestResult, label string, err error) *TestResult {
	result.Passed = false
	result.Error = fmt.Sprintf("%s: %v", label, err)
	result.Assertions = append(result.Assertions, expect.AssertionResult{
		Name:    "execution",
		Passed:  false,
		Message: result.Error,
	})
	return result
}
