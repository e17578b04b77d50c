// Package tracker wraps the tool functions handed to an agent so that
// every invocation becomes an observable, ordered record.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ToolFunc is the shape of every domain tool exposed to an agent.
type ToolFunc func(ctx context.Context, input map[string]any) (any, error)

// ToolCall records one tool invocation. Order is assigned at invocation
// start from a counter shared by wrapped and manually recorded calls; it
// is the only ordering consumers may rely on. Timestamps are diagnostic.
type ToolCall struct {
	ToolName   string         `json:"toolName"`
	Input      map[string]any `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Order      int            `json:"order"`
	DurationMs int64          `json:"durationMs"`
}

// Stats summarizes a run's tool usage.
type Stats struct {
	TotalCalls      int            `json:"totalCalls"`
	UniqueTools     int            `json:"uniqueTools"`
	TotalDurationMs int64          `json:"totalDurationMs"`
	AvgDurationMs   float64        `json:"avgDurationMs"`
	CallsPerTool    map[string]int `json:"callsPerTool"`
}

type Tracker struct {
	mu        sync.Mutex
	calls     []*ToolCall
	nextOrder int
}

func New() *Tracker {
	return &Tracker{
		calls: make([]*ToolCall, 0),
	}
}

// Wrap returns a function with identical external behavior that records a
// ToolCall for every invocation. When fn fails, the call is still recorded
// with its error before the error is returned unchanged.
func (t *Tracker) Wrap(toolName string, fn ToolFunc) ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		call := t.begin(toolName, input)

		start := time.Now()
		out, err := fn(ctx, input)
		elapsed := time.Since(start).Milliseconds()

		t.mu.Lock()
		call.DurationMs = elapsed
		if err != nil {
			call.Error = err.Error()
		} else {
			call.Output = out
		}
		t.mu.Unlock()

		return out, err
	}
}

// RecordCall is the manual recording path for tool calls that never went
// through Wrap, e.g. calls surfaced only by an agent's message stream. It
// shares the order counter with wrapped calls.
func (t *Tracker) RecordCall(toolName string, input map[string]any, output any, timestamp time.Time, durationMs int64) *ToolCall {
	call := t.begin(toolName, input)

	t.mu.Lock()
	defer t.mu.Unlock()
	call.Output = output
	call.Timestamp = timestamp
	call.DurationMs = durationMs
	return call
}

func (t *Tracker) begin(toolName string, input map[string]any) *ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	call := &ToolCall{
		ToolName:  toolName,
		Input:     input,
		Timestamp: time.Now(),
		Order:     t.nextOrder,
	}
	t.nextOrder++
	t.calls = append(t.calls, call)
	return call
}

// Calls returns all recorded calls in insertion order.
func (t *Tracker) Calls() []*ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*ToolCall, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallsFor returns every call to the named tool, in order.
func (t *Tracker) CallsFor(toolName string) []*ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*ToolCall, 0)
	for _, c := range t.calls {
		if c.ToolName == toolName {
			out = append(out, c)
		}
	}
	return out
}

// Sequence returns the ordered list of tool names that were called.
func (t *Tracker) Sequence() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.calls))
	for i, c := range t.calls {
		out[i] = c.ToolName
	}
	return out
}

// UniqueTools returns the sorted set of distinct tool names called.
func (t *Tracker) UniqueTools() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{})
	for _, c := range t.calls {
		seen[c.ToolName] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) WasCalled(toolName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.calls {
		if c.ToolName == toolName {
			return true
		}
	}
	return false
}

// OccurredInOrder reports whether the named tools occur as an
// order-preserving, not necessarily contiguous, subsequence of the actual
// call sequence. Matching is greedy leftmost: each expected name matches
// the first occurrence after the previously matched position.
func (t *Tracker) OccurredInOrder(names []string) bool {
	return IsSubsequence(names, t.Sequence())
}

// IsSubsequence is the greedy leftmost subsequence check shared with the
// assertion layer. An empty expected list vacuously matches.
func IsSubsequence(expected, actual []string) bool {
	if len(expected) == 0 {
		return true
	}

	idx := 0
	for _, name := range actual {
		if name == expected[idx] {
			idx++
			if idx == len(expected) {
				return true
			}
		}
	}
	return false
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		TotalCalls:   len(t.calls),
		CallsPerTool: make(map[string]int),
	}
	for _, c := range t.calls {
		stats.CallsPerTool[c.ToolName]++
		stats.TotalDurationMs += c.DurationMs
	}
	stats.UniqueTools = len(stats.CallsPerTool)
	if stats.TotalCalls > 0 {
		stats.AvgDurationMs = float64(stats.TotalDurationMs) / float64(stats.TotalCalls)
	}
	return stats
}

// Reset clears all recorded calls and restarts the order counter. Used
// between scenario runs sharing one tracker instance.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = t.calls[:0]
	t.nextOrder = 0
}
