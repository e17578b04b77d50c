package agentrun

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcheck/clipcheck/pkg/scenario"
	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/toolset"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// scriptedRuntime replays a fixed message sequence and optionally invokes
// enabled tools by name.
type scriptedRuntime struct {
	messages  []Message
	callTools []string
	metrics   Metrics
	lastReq   Request
}

func (s *scriptedRuntime) Send(ctx context.Context, req Request) (*RuntimeResult, error) {
	s.lastReq = req
	for _, name := range s.callTools {
		for _, t := range req.Tools {
			if t.Name == name {
				_, _ = t.Handler(ctx, map[string]any{})
			}
		}
	}
	for _, msg := range s.messages {
		req.OnMessage(msg)
	}
	return &RuntimeResult{Metrics: s.metrics}, nil
}

func testStore() *store.Store {
	st := store.New()
	st.PutProject("p-1", store.Entity{"id": "p-1", "name": "Launch Video", "fps": float64(30)})
	st.PutChapter("ch-1", store.Entity{"id": "ch-1", "title": "Intro"})
	st.PutTimeline("tl-1", store.Entity{"id": "tl-1", "name": "Main"})
	return st
}

func newTestAdapter(t *testing.T, rt Runtime, cfg Config) *Adapter {
	t.Helper()
	if cfg.AgentType == "" {
		cfg.AgentType = toolset.AgentTypeEditor
	}
	if cfg.Store == nil {
		cfg.Store = testStore()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = tracker.New()
	}
	cfg.Runtime = rt
	adapter, err := NewAdapter(cfg)
	require.NoError(t, err)
	return adapter
}

func TestChatReturnsLastAssistantText(t *testing.T) {
	rt := &scriptedRuntime{
		messages: []Message{
			TextMessage("assistant", "Working on it."),
			{Role: "tool", Content: []ContentBlock{{Type: BlockTypeToolResult, ToolName: "listBlocks", Output: "[]"}}},
			TextMessage("assistant", "Done, the block was moved."),
		},
		metrics: Metrics{InputTokens: 100, OutputTokens: 40, Turns: 2},
	}
	adapter := newTestAdapter(t, rt, Config{})

	var streamed []Message
	result, err := adapter.Chat(context.Background(), "thread-1", "move the block", ChatOptions{},
		Context{ProjectID: "p-1", ChapterID: "ch-1"},
		func(msg Message) { streamed = append(streamed, msg) })
	require.NoError(t, err)

	assert.Equal(t, "Done, the block was moved.", result.Response)
	assert.Len(t, result.Messages, 3)
	assert.Len(t, streamed, 3)
	assert.Equal(t, int64(100), result.Metrics.InputTokens)
	assert.Equal(t, 2, result.Metrics.Turns)
}

func TestChatValidatesContext(t *testing.T) {
	adapter := newTestAdapter(t, &scriptedRuntime{}, Config{})
	ctx := context.Background()

	_, err := adapter.Chat(ctx, "t", "hi", ChatOptions{}, Context{}, nil)
	assert.ErrorContains(t, err, "projectId is required")

	_, err = adapter.Chat(ctx, "t", "hi", ChatOptions{}, Context{ProjectID: "p-1"}, nil)
	assert.ErrorContains(t, err, "chapterId is required")
}

func TestChatWrapsToolsThroughTracker(t *testing.T) {
	trk := tracker.New()
	rt := &scriptedRuntime{callTools: []string{"listBlocks", "listTimelines"}}
	adapter := newTestAdapter(t, rt, Config{Tracker: trk})

	_, err := adapter.Chat(context.Background(), "t", "hi", ChatOptions{},
		Context{ProjectID: "p-1", ChapterID: "ch-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"listBlocks", "listTimelines"}, trk.Sequence())
}

func TestToolEnablement(t *testing.T) {
	t.Run("enabled list is used verbatim", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			EnabledTools: []string{"listBlocks", "getBlock"},
		})
		assert.Equal(t, []string{"listBlocks", "getBlock"}, adapter.ToolNames())
	})

	t.Run("disabled list subtracts from the agent type's tools", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			DisabledTools: []string{"deleteBlocks", "splitBlock"},
		})
		names := adapter.ToolNames()
		assert.NotContains(t, names, "deleteBlocks")
		assert.NotContains(t, names, "splitBlock")
		assert.Contains(t, names, "moveBlocks")
	})

	t.Run("no config enables everything", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{})
		all, err := toolset.AllowedToolNames(toolset.AgentTypeEditor)
		require.NoError(t, err)
		assert.Equal(t, all, adapter.ToolNames())
	})
}

func TestPromptResolution(t *testing.T) {
	t.Run("raw wins over everything", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			SystemPrompt: &scenario.PromptConfig{
				Raw:     "You only answer in haiku.",
				Patches: []scenario.PromptPatch{{Find: "a", Replace: "b"}},
			},
		})
		prompt := adapter.Prompt()
		assert.Equal(t, PromptSourceRaw, prompt.Source)
		assert.Equal(t, "You only answer in haiku.", prompt.Raw)
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		_, err := NewAdapter(Config{
			AgentType:    toolset.AgentTypeEditor,
			Store:        testStore(),
			Tracker:      tracker.New(),
			Runtime:      &scriptedRuntime{},
			SystemPrompt: &scenario.PromptConfig{File: "/nonexistent/prompt.txt"},
		})
		assert.ErrorContains(t, err, "failed to read system prompt file")
	})

	t.Run("patches apply to the default prompt", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			SystemPrompt: &scenario.PromptConfig{
				Patches: []scenario.PromptPatch{
					{Find: "video editing assistant", Replace: "ruthless video editor"},
				},
			},
		})
		prompt := adapter.Prompt()
		assert.Equal(t, PromptSourcePatched, prompt.Source)
		assert.Contains(t, prompt.Raw, "ruthless video editor")
	})

	t.Run("patches without a default prompt fail", func(t *testing.T) {
		_, err := NewAdapter(Config{
			AgentType:    "composer",
			Store:        testStore(),
			Tracker:      tracker.New(),
			Runtime:      &scriptedRuntime{},
			SystemPrompt: &scenario.PromptConfig{Patches: []scenario.PromptPatch{{Find: "x", Replace: "y"}}},
		})
		assert.ErrorContains(t, err, "no default prompt exists")
	})

	t.Run("default prompt otherwise", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{})
		assert.Equal(t, PromptSourceDefault, adapter.Prompt().Source)
	})
}

func TestPlaceholderSubstitution(t *testing.T) {
	runCtx := Context{ProjectID: "p-1", ChapterID: "ch-1"}

	t.Run("fixture values fill placeholders", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			SystemPrompt: &scenario.PromptConfig{
				Raw: `Project {{projectName}} at {{fps}} fps, chapter "{{chapterTitle}}", timelines: {{timelineNames}}.`,
			},
		})
		assert.Equal(t,
			`Project Launch Video at 30 fps, chapter "Intro", timelines: Main.`,
			adapter.SystemPrompt(runCtx))
	})

	t.Run("overrides win over fixture values", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			SystemPrompt:         &scenario.PromptConfig{Raw: "{{fps}} fps"},
			PlaceholderOverrides: map[string]string{"fps": "60"},
		})
		assert.Equal(t, "60 fps", adapter.SystemPrompt(runCtx))
	})

	t.Run("unknown placeholders stay verbatim", func(t *testing.T) {
		adapter := newTestAdapter(t, &scriptedRuntime{}, Config{
			SystemPrompt: &scenario.PromptConfig{Raw: "keep {{mystery}} as is"},
		})
		assert.Equal(t, "keep {{mystery}} as is", adapter.SystemPrompt(runCtx))
	})
}

func TestPartialAndTeardown(t *testing.T) {
	rt := &scriptedRuntime{messages: []Message{TextMessage("assistant", "partial text")}}
	adapter := newTestAdapter(t, rt, Config{})

	_, err := adapter.Chat(context.Background(), "t", "hi", ChatOptions{},
		Context{ProjectID: "p-1", ChapterID: "ch-1"}, nil)
	require.NoError(t, err)

	messages, _ := adapter.Partial()
	assert.Len(t, messages, 1)

	adapter.Teardown()
	messages, metrics := adapter.Partial()
	assert.Empty(t, messages)
	assert.Equal(t, Metrics{}, metrics)
}

func TestCancelFlagReachesRuntime(t *testing.T) {
	rt := &scriptedRuntime{}
	adapter := newTestAdapter(t, rt, Config{})

	adapter.Cancel()
	_, err := adapter.Chat(context.Background(), "t", "hi", ChatOptions{},
		Context{ProjectID: "p-1", ChapterID: "ch-1"}, nil)
	require.NoError(t, err)

	require.NotNil(t, rt.lastReq.Cancel)
	assert.True(t, rt.lastReq.Cancel.IsSet())
}
