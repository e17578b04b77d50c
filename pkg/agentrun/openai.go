package agentrun

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/clipcheck/clipcheck/pkg/toolset"
)

// OpenAIRuntime drives an OpenAI-compatible chat completion endpoint with a
// standard tool-calling loop.
type OpenAIRuntime struct {
	client *openai.Client
	model  shared.ChatModel
}

func NewOpenAIRuntime(baseURL, apiKey, model string) (*OpenAIRuntime, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("both url and API key must be provided to create an openai runtime")
	}

	chatModel := openai.ChatModelGPT4
	if model != "" {
		chatModel = shared.ChatModel(model)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenAIRuntime{client: &client, model: chatModel}, nil
}

func (r *OpenAIRuntime) Send(ctx context.Context, req Request) (*RuntimeResult, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Message))

	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(req.Tools))
	handlers := make(map[string]func(context.Context, map[string]any) (any, error), len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, toOpenAITool(t))
		handlers[t.Name] = t.Handler
	}

	model := r.model
	if req.Options.Model != "" {
		model = shared.ChatModel(req.Options.Model)
	}

	result := &RuntimeResult{}

	// Loop until the model answers without tool calls, or the run is
	// cancelled.
	for {
		if req.Cancel != nil && req.Cancel.IsSet() {
			return result, nil
		}

		params := openai.ChatCompletionNewParams{
			Model:    model,
			Messages: messages,
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		completion, err := r.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return result, fmt.Errorf("failed to create chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return result, fmt.Errorf("no completion choices returned")
		}

		result.Metrics.Turns++
		result.Metrics.InputTokens += completion.Usage.PromptTokens
		result.Metrics.OutputTokens += completion.Usage.CompletionTokens

		message := completion.Choices[0].Message
		emit(req, normalizeAssistantMessage(message))

		if len(message.ToolCalls) == 0 {
			messages = append(messages, openai.AssistantMessage(message.Content))
			return result, nil
		}
		messages = append(messages, message.ToParam())

		for _, toolCall := range message.ToolCalls {
			if toolCall.Function.Name == "" {
				continue
			}
			if req.Cancel != nil && req.Cancel.IsSet() {
				return result, nil
			}

			var args map[string]any
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return result, fmt.Errorf("failed to parse tool arguments: %w", err)
			}

			output := callTool(ctx, handlers, toolCall.Function.Name, args)
			emit(req, Message{
				Role: "tool",
				Content: []ContentBlock{{
					Type:     BlockTypeToolResult,
					ToolName: toolCall.Function.Name,
					Output:   output,
				}},
			})
			messages = append(messages, openai.ToolMessage(output, toolCall.ID))
		}
	}
}

func callTool(ctx context.Context, handlers map[string]func(context.Context, map[string]any) (any, error), name string, args map[string]any) string {
	handler, ok := handlers[name]
	if !ok {
		return fmt.Sprintf("Error calling tool: unknown tool '%s'", name)
	}
	result, err := handler(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error calling tool: %v", err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error encoding tool result: %v", err)
	}
	return string(encoded)
}

// normalizeAssistantMessage maps the SDK's message shape onto the uniform
// content-block form. This is the only place the loose upstream typing is
// handled.
func normalizeAssistantMessage(message openai.ChatCompletionMessage) Message {
	var blocks []ContentBlock
	if message.Content != "" {
		blocks = append(blocks, ContentBlock{Type: BlockTypeText, Text: message.Content})
	}
	for _, toolCall := range message.ToolCalls {
		if toolCall.Function.Name == "" {
			continue
		}
		var args map[string]any
		_ = json.Unmarshal([]byte(toolCall.Function.Arguments), &args)
		blocks = append(blocks, ContentBlock{
			Type:     BlockTypeToolUse,
			ToolName: toolCall.Function.Name,
			Input:    args,
		})
	}
	return Message{Role: "assistant", Content: blocks}
}

func emit(req Request, msg Message) {
	if req.OnMessage != nil {
		req.OnMessage(msg)
	}
}

func toOpenAITool(t toolset.Tool) openai.ChatCompletionToolUnionParam {
	function := shared.FunctionDefinitionParam{
		Name: t.Name,
	}
	if t.Description != "" {
		function.Description = openai.String(t.Description)
	}
	if t.InputSchema != nil {
		raw, err := json.Marshal(t.InputSchema)
		if err == nil {
			var params map[string]any
			if err := json.Unmarshal(raw, &params); err == nil {
				function.Parameters = shared.FunctionParameters(params)
			}
		}
	}
	return openai.ChatCompletionFunctionTool(function)
}
