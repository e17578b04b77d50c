// Package toolset defines the video-editing tools exposed to agents under
// evaluation. Tools are thin shims over the run's snapshot store; the
// tracker wraps their handlers so every invocation is recorded.
package toolset

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

const (
	AgentTypeEditor = "editor"
	AgentTypeMedia  = "media"
)

// Tool pairs a schema-described tool definition with its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     tracker.ToolFunc
}

// ForAgentType returns the tools normally allowed for the agent type, all
// backed by st.
func ForAgentType(agentType string, st *store.Store) ([]Tool, error) {
	switch agentType {
	case AgentTypeEditor:
		return editorTools(st), nil
	case AgentTypeMedia:
		return mediaTools(st), nil
	default:
		return nil, fmt.Errorf("unknown agent type: '%s'", agentType)
	}
}

// AllowedToolNames returns just the names, in declaration order.
func AllowedToolNames(agentType string) ([]string, error) {
	tools, err := ForAgentType(agentType, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names, nil
}

// Filter keeps only the named tools, preserving order.
func Filter(tools []Tool, enabled []string) []Tool {
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}

	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if allow[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func editorTools(st *store.Store) []Tool {
	return []Tool{
		{
			Name:        "listBlocks",
			Description: "List all blocks, optionally filtered by timeline.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"timelineId": {Type: "string", Description: "Restrict to one timeline."},
			}),
			Handler: listBlocks(st),
		},
		{
			Name:        "getBlock",
			Description: "Fetch a single block by id.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"blockId": {Type: "string"},
			}, "blockId"),
			Handler: getBlock(st),
		},
		{
			Name:        "createBlock",
			Description: "Create a new block on a timeline.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"timelineId":       {Type: "string"},
				"type":             {Type: "string", Description: "Block type, e.g. video, audio, text."},
				"startFrame":       {Type: "integer"},
				"durationInFrames": {Type: "integer"},
				"settings":         {Type: "object"},
			}, "timelineId", "type", "startFrame", "durationInFrames"),
			Handler: createBlock(st),
		},
		{
			Name:        "updateBlock",
			Description: "Apply field changes to an existing block.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"blockId": {Type: "string"},
				"changes": {Type: "object"},
			}, "blockId", "changes"),
			Handler: updateBlock(st),
		},
		{
			Name:        "moveBlocks",
			Description: "Shift blocks by a frame offset (negative moves earlier).",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"blockIds":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"offsetFrames": {Type: "integer"},
			}, "blockIds", "offsetFrames"),
			Handler: moveBlocks(st),
		},
		{
			Name:        "deleteBlocks",
			Description: "Delete blocks by id.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"blockIds": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			}, "blockIds"),
			Handler: deleteBlocks(st),
		},
		{
			Name:        "splitBlock",
			Description: "Split a block at a frame, producing a second block.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"blockId": {Type: "string"},
				"frame":   {Type: "integer", Description: "Absolute frame to split at."},
			}, "blockId", "frame"),
			Handler: splitBlock(st),
		},
		{
			Name:        "listTimelines",
			Description: "List all timelines.",
			InputSchema: objectSchema(nil),
			Handler:     listTimelines(st),
		},
		{
			Name:        "updateTimeline",
			Description: "Apply field changes to a timeline.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"timelineId": {Type: "string"},
				"changes":    {Type: "object"},
			}, "timelineId", "changes"),
			Handler: updateTimeline(st),
		},
		{
			Name:        "getChapter",
			Description: "Fetch a chapter by id.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"chapterId": {Type: "string"},
			}, "chapterId"),
			Handler: getChapter(st),
		},
	}
}

func mediaTools(st *store.Store) []Tool {
	return []Tool{
		{
			Name:        "listMediaAssets",
			Description: "List all media assets in the project.",
			InputSchema: objectSchema(nil),
			Handler:     listMediaAssets(st),
		},
		{
			Name:        "updateMediaAsset",
			Description: "Apply field changes to a media asset.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"assetId": {Type: "string"},
				"changes": {Type: "object"},
			}, "assetId", "changes"),
			Handler: updateMediaAsset(st),
		},
		{
			Name:        "deleteMediaAsset",
			Description: "Remove a media asset from the project.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"assetId": {Type: "string"},
			}, "assetId"),
			Handler: deleteMediaAsset(st),
		},
		{
			Name:        "listBlocks",
			Description: "List all blocks, optionally filtered by timeline.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"timelineId": {Type: "string"},
			}),
			Handler: listBlocks(st),
		},
	}
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func listBlocks(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		blocks := st.Blocks()
		timelineID, _ := input["timelineId"].(string)
		if timelineID == "" {
			return blocks, nil
		}

		filtered := make([]store.Entity, 0, len(blocks))
		for _, b := range blocks {
			if b["timelineId"] == timelineID {
				filtered = append(filtered, b)
			}
		}
		return filtered, nil
	}
}

func getBlock(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "blockId")
		if err != nil {
			return nil, err
		}
		block, ok := st.Block(id)
		if !ok {
			return nil, fmt.Errorf("block '%s' not found", id)
		}
		return block, nil
	}
}

func createBlock(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		timelineID, err := stringArg(input, "timelineId")
		if err != nil {
			return nil, err
		}
		if _, ok := st.Timeline(timelineID); !ok {
			return nil, fmt.Errorf("timeline '%s' not found", timelineID)
		}

		block := store.Entity{
			"id":               uuid.NewString(),
			"timelineId":       timelineID,
			"type":             input["type"],
			"startFrame":       input["startFrame"],
			"durationInFrames": input["durationInFrames"],
		}
		if settings, ok := input["settings"].(map[string]any); ok {
			block["settings"] = settings
		}

		st.PutBlock(block["id"].(string), block)
		return block, nil
	}
}

func updateBlock(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "blockId")
		if err != nil {
			return nil, err
		}
		changes, ok := input["changes"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("changes must be an object")
		}
		if !st.UpdateBlock(id, changes) {
			return nil, fmt.Errorf("block '%s' not found", id)
		}
		block, _ := st.Block(id)
		return block, nil
	}
}

func moveBlocks(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		ids, err := stringSliceArg(input, "blockIds")
		if err != nil {
			return nil, err
		}
		offset, ok := toInt(input["offsetFrames"])
		if !ok {
			return nil, fmt.Errorf("offsetFrames must be an integer")
		}

		moved := make([]store.Entity, 0, len(ids))
		for _, id := range ids {
			block, found := st.Block(id)
			if !found {
				return nil, fmt.Errorf("block '%s' not found", id)
			}
			start, _ := toInt(block["startFrame"])
			if !st.UpdateBlock(id, map[string]any{"startFrame": start + offset}) {
				return nil, fmt.Errorf("block '%s' not found", id)
			}
			block, _ = st.Block(id)
			moved = append(moved, block)
		}
		return moved, nil
	}
}

func deleteBlocks(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		ids, err := stringSliceArg(input, "blockIds")
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !st.DeleteBlock(id) {
				return nil, fmt.Errorf("block '%s' not found", id)
			}
		}
		return map[string]any{"deleted": ids}, nil
	}
}

func splitBlock(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "blockId")
		if err != nil {
			return nil, err
		}
		frame, ok := toInt(input["frame"])
		if !ok {
			return nil, fmt.Errorf("frame must be an integer")
		}

		block, found := st.Block(id)
		if !found {
			return nil, fmt.Errorf("block '%s' not found", id)
		}
		start, _ := toInt(block["startFrame"])
		duration, _ := toInt(block["durationInFrames"])
		if frame <= start || frame >= start+duration {
			return nil, fmt.Errorf("split frame %d is outside block '%s' (%d..%d)", frame, id, start, start+duration)
		}

		st.UpdateBlock(id, map[string]any{"durationInFrames": frame - start})

		second := store.Entity{
			"id":               uuid.NewString(),
			"timelineId":       block["timelineId"],
			"type":             block["type"],
			"startFrame":       frame,
			"durationInFrames": start + duration - frame,
		}
		if settings, ok := block["settings"].(map[string]any); ok {
			second["settings"] = settings
		}
		st.PutBlock(second["id"].(string), second)

		first, _ := st.Block(id)
		return []store.Entity{first, second}, nil
	}
}

func listTimelines(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		return st.Timelines(), nil
	}
}

func updateTimeline(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "timelineId")
		if err != nil {
			return nil, err
		}
		changes, ok := input["changes"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("changes must be an object")
		}
		if !st.UpdateTimeline(id, changes) {
			return nil, fmt.Errorf("timeline '%s' not found", id)
		}
		timeline, _ := st.Timeline(id)
		return timeline, nil
	}
}

func getChapter(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "chapterId")
		if err != nil {
			return nil, err
		}
		chapter, ok := st.Chapter(id)
		if !ok {
			return nil, fmt.Errorf("chapter '%s' not found", id)
		}
		return chapter, nil
	}
}

func listMediaAssets(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		return st.MediaAssets(), nil
	}
}

func updateMediaAsset(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "assetId")
		if err != nil {
			return nil, err
		}
		changes, ok := input["changes"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("changes must be an object")
		}
		if !st.UpdateMediaAsset(id, changes) {
			return nil, fmt.Errorf("media asset '%s' not found", id)
		}
		asset, _ := st.MediaAsset(id)
		return asset, nil
	}
}

func deleteMediaAsset(st *store.Store) tracker.ToolFunc {
	return func(ctx context.Context, input map[string]any) (any, error) {
		id, err := stringArg(input, "assetId")
		if err != nil {
			return nil, err
		}
		if !st.DeleteMediaAsset(id) {
			return nil, fmt.Errorf("media asset '%s' not found", id)
		}
		return map[string]any{"deleted": id}, nil
	}
}

func stringArg(input map[string]any, key string) (string, error) {
	s, ok := input[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return s, nil
}

func stringSliceArg(input map[string]any, key string) ([]string, error) {
	raw, ok := input[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an array of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
