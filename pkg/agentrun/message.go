package agentrun

import "sync/atomic"

const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
	BlockTypeThinking   = "thinking"
)

// ContentBlock is the uniform shape every runtime event is normalized into.
// Exactly one group of fields is populated depending on Type.
type ContentBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ToolName string         `json:"toolName,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Output   any            `json:"output,omitempty"`
}

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			out += block.Text
		}
	}
	return out
}

func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: BlockTypeText, Text: text}}}
}

// Metrics are best-effort token and turn counts for one chat invocation.
type Metrics struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	Turns        int   `json:"turns"`
	DurationMs   int64 `json:"durationMs"`
}

func (m *Metrics) add(other Metrics) {
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.Turns += other.Turns
}

// CancelFlag is the cooperative cancellation signal shared between the
// orchestrator and a running agent. Runtimes poll it between turns; setting
// it never forcibly terminates in-flight work.
type CancelFlag struct {
	set atomic.Bool
}

func (c *CancelFlag) Set() {
	c.set.Store(true)
}

func (c *CancelFlag) IsSet() bool {
	return c.set.Load()
}
