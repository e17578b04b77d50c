// Package agentrun executes one agent turn against a scenario's input. The
// Adapter owns prompt resolution, tool enablement, and normalization of the
// runtime's native event stream into uniform messages; the Runtime interface
// is the single boundary to the underlying LLM agent.
package agentrun

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clipcheck/clipcheck/pkg/scenario"
	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/toolset"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// Context carries the identifiers the agent's tools operate within.
type Context struct {
	ProjectID string
	ChapterID string
}

type ChatOptions struct {
	Model    string
	Thinking bool
}

// Request is one user turn handed to a Runtime, with everything it needs to
// drive the agent: resolved prompt, wrapped tools, and the cancel flag it
// must poll between turns.
type Request struct {
	ThreadID     string
	SystemPrompt string
	Message      string
	Tools        []toolset.Tool
	Options      ChatOptions
	Cancel       *CancelFlag
	OnMessage    func(Message)
}

type RuntimeResult struct {
	Metrics Metrics
}

// Runtime drives one concrete agent implementation. It emits every
// normalized message through req.OnMessage as it happens and returns
// aggregate metrics when the agent stops.
type Runtime interface {
	Send(ctx context.Context, req Request) (*RuntimeResult, error)
}

// ChatResult is the full outcome of one chat invocation.
type ChatResult struct {
	Response string
	Metrics  Metrics
	Messages []Message
}

type Config struct {
	AgentType string
	Store     *store.Store
	Tracker   *tracker.Tracker
	Runtime   Runtime

	SystemPrompt *scenario.PromptConfig

	// EnabledTools is used verbatim when set. Otherwise all tools for the
	// agent type minus DisabledTools are enabled.
	EnabledTools  []string
	DisabledTools []string

	// PlaceholderOverrides win over fixture-derived placeholder values.
	PlaceholderOverrides map[string]string
}

type Adapter struct {
	agentType string
	st        *store.Store
	runtime   Runtime
	tools     []toolset.Tool
	prompt    *ResolvedPrompt
	overrides map[string]string
	cancel    *CancelFlag

	mu       sync.Mutex
	messages []Message
	metrics  Metrics
}

// NewAdapter resolves the system prompt and tool set up front so
// configuration errors surface before any agent invocation.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("a store is required to create an agent adapter")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("a tracker is required to create an agent adapter")
	}
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("a runtime is required to create an agent adapter")
	}

	prompt, err := resolvePrompt(cfg.AgentType, cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}

	tools, err := toolset.ForAgentType(cfg.AgentType, cfg.Store)
	if err != nil {
		return nil, err
	}
	tools = enabledTools(tools, cfg.EnabledTools, cfg.DisabledTools)

	// Every handler goes through the tracker so forbidden-tool checks see
	// each attempt, including the ones that error.
	wrapped := make([]toolset.Tool, len(tools))
	for i, t := range tools {
		wrapped[i] = t
		wrapped[i].Handler = cfg.Tracker.Wrap(t.Name, t.Handler)
	}

	return &Adapter{
		agentType: cfg.AgentType,
		st:        cfg.Store,
		runtime:   cfg.Runtime,
		tools:     wrapped,
		prompt:    prompt,
		overrides: cfg.PlaceholderOverrides,
		cancel:    &CancelFlag{},
	}, nil
}

func enabledTools(tools []toolset.Tool, enabled, disabled []string) []toolset.Tool {
	if len(enabled) > 0 {
		return toolset.Filter(tools, enabled)
	}
	if len(disabled) > 0 {
		blocked := make(map[string]bool, len(disabled))
		for _, name := range disabled {
			blocked[name] = true
		}
		var names []string
		for _, t := range tools {
			if !blocked[t.Name] {
				names = append(names, t.Name)
			}
		}
		return toolset.Filter(tools, names)
	}
	return tools
}

// Prompt returns the resolved system prompt diagnostics.
func (a *Adapter) Prompt() ResolvedPrompt {
	return *a.prompt
}

// ToolNames returns the enabled tool names in declaration order.
func (a *Adapter) ToolNames() []string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name
	}
	return names
}

// SystemPrompt returns the prompt text after placeholder substitution for
// the given run context.
func (a *Adapter) SystemPrompt(runCtx Context) string {
	return substitutePlaceholders(a.prompt.Raw, a.st, runCtx, a.overrides)
}

// Cancel requests a cooperative stop of the running chat.
func (a *Adapter) Cancel() {
	a.cancel.Set()
}

// Chat sends one user message and waits for the agent's full response.
func (a *Adapter) Chat(ctx context.Context, threadID, message string, opts ChatOptions, runCtx Context, onMessage func(Message)) (*ChatResult, error) {
	if runCtx.ProjectID == "" {
		return nil, fmt.Errorf("projectId is required to chat with the '%s' agent", a.agentType)
	}
	if a.agentType == toolset.AgentTypeEditor && runCtx.ChapterID == "" {
		return nil, fmt.Errorf("chapterId is required to chat with the '%s' agent", a.agentType)
	}

	a.mu.Lock()
	a.messages = nil
	a.metrics = Metrics{}
	a.mu.Unlock()

	req := Request{
		ThreadID:     threadID,
		SystemPrompt: a.SystemPrompt(runCtx),
		Message:      message,
		Tools:        a.tools,
		Options:      opts,
		Cancel:       a.cancel,
		OnMessage: func(msg Message) {
			a.mu.Lock()
			a.messages = append(a.messages, msg)
			a.mu.Unlock()
			if onMessage != nil {
				onMessage(msg)
			}
		},
	}

	start := time.Now()
	result, err := a.runtime.Send(ctx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.add(result.Metrics)
	a.metrics.DurationMs = elapsed

	return &ChatResult{
		Response: FinalResponse(a.messages),
		Metrics:  a.metrics,
		Messages: append([]Message(nil), a.messages...),
	}, nil
}

// Partial returns whatever messages and metrics have accumulated so far.
// Used by callers that cancel a run due to timeout.
func (a *Adapter) Partial() ([]Message, Metrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.messages...), a.metrics
}

// Teardown clears the per-run accumulators. It is safe to call multiple
// times and must run regardless of how the chat ended.
func (a *Adapter) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = nil
	a.metrics = Metrics{}
}

// FinalResponse concatenates the text blocks of the last assistant message.
// Callers salvaging a partial message log use it the same way Chat does.
func FinalResponse(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return messages[i].Text()
		}
	}
	return ""
}
