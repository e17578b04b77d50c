package toolset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcheck/clipcheck/pkg/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()
	st.PutChapter("ch-1", store.Entity{"id": "ch-1", "title": "Intro"})
	st.PutTimeline("tl-1", store.Entity{"id": "tl-1", "name": "Main"})
	st.PutTimeline("tl-2", store.Entity{"id": "tl-2", "name": "Overlay"})
	st.PutBlock("b-1", store.Entity{
		"id": "b-1", "timelineId": "tl-1", "type": "video",
		"startFrame": 0, "durationInFrames": 120,
	})
	st.PutBlock("b-2", store.Entity{
		"id": "b-2", "timelineId": "tl-2", "type": "text",
		"startFrame": 30, "durationInFrames": 60,
	})
	st.PutMediaAsset("m-1", store.Entity{"id": "m-1", "name": "clip.mp4"})
	return st
}

func handler(t *testing.T, st *store.Store, agentType, name string) func(context.Context, map[string]any) (any, error) {
	t.Helper()
	tools, err := ForAgentType(agentType, st)
	require.NoError(t, err)
	for _, tool := range tools {
		if tool.Name == name {
			return tool.Handler
		}
	}
	t.Fatalf("tool %s not found for agent type %s", name, agentType)
	return nil
}

func TestForAgentType(t *testing.T) {
	st := seededStore(t)

	editor, err := ForAgentType(AgentTypeEditor, st)
	require.NoError(t, err)
	media, err := ForAgentType(AgentTypeMedia, st)
	require.NoError(t, err)

	assert.NotEmpty(t, editor)
	assert.NotEmpty(t, media)

	_, err = ForAgentType("composer", st)
	assert.ErrorContains(t, err, "unknown agent type")
}

func TestFilter(t *testing.T) {
	st := seededStore(t)
	tools, err := ForAgentType(AgentTypeEditor, st)
	require.NoError(t, err)

	kept := Filter(tools, []string{"getBlock", "listBlocks"})
	require.Len(t, kept, 2)
	// Declaration order wins over the enabled list's order.
	assert.Equal(t, "listBlocks", kept[0].Name)
	assert.Equal(t, "getBlock", kept[1].Name)
}

func TestListBlocksFiltersByTimeline(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	list := handler(t, st, AgentTypeEditor, "listBlocks")

	out, err := list(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, out.([]store.Entity), 2)

	out, err = list(ctx, map[string]any{"timelineId": "tl-2"})
	require.NoError(t, err)
	blocks := out.([]store.Entity)
	require.Len(t, blocks, 1)
	assert.Equal(t, "b-2", blocks[0]["id"])
}

func TestCreateBlock(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	create := handler(t, st, AgentTypeEditor, "createBlock")

	out, err := create(ctx, map[string]any{
		"timelineId":       "tl-1",
		"type":             "audio",
		"startFrame":       float64(10),
		"durationInFrames": float64(90),
		"settings":         map[string]any{"volume": 0.5},
	})
	require.NoError(t, err)

	block := out.(store.Entity)
	id := block["id"].(string)
	assert.NotEmpty(t, id)

	stored, ok := st.Block(id)
	require.True(t, ok)
	assert.Equal(t, "audio", stored["type"])
	assert.Equal(t, map[string]any{"volume": 0.5}, stored["settings"])

	_, err = create(ctx, map[string]any{
		"timelineId": "tl-missing", "type": "audio",
		"startFrame": float64(0), "durationInFrames": float64(1),
	})
	assert.ErrorContains(t, err, "not found")
}

func TestUpdateBlock(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	update := handler(t, st, AgentTypeEditor, "updateBlock")

	out, err := update(ctx, map[string]any{
		"blockId": "b-1",
		"changes": map[string]any{"startFrame": float64(15)},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(15), out.(store.Entity)["startFrame"])

	_, err = update(ctx, map[string]any{"blockId": "nope", "changes": map[string]any{}})
	assert.ErrorContains(t, err, "not found")

	_, err = update(ctx, map[string]any{"blockId": "b-1", "changes": "oops"})
	assert.ErrorContains(t, err, "changes must be an object")
}

func TestMoveBlocks(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	move := handler(t, st, AgentTypeEditor, "moveBlocks")

	out, err := move(ctx, map[string]any{
		"blockIds":     []any{"b-1", "b-2"},
		"offsetFrames": float64(-10),
	})
	require.NoError(t, err)
	require.Len(t, out.([]store.Entity), 2)

	b1, _ := st.Block("b-1")
	b2, _ := st.Block("b-2")
	assert.Equal(t, -10, b1["startFrame"])
	assert.Equal(t, 20, b2["startFrame"])

	_, err = move(ctx, map[string]any{"blockIds": []any{"ghost"}, "offsetFrames": float64(5)})
	assert.ErrorContains(t, err, "not found")
}

func TestDeleteBlocks(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	del := handler(t, st, AgentTypeEditor, "deleteBlocks")

	_, err := del(ctx, map[string]any{"blockIds": []any{"b-1"}})
	require.NoError(t, err)
	_, ok := st.Block("b-1")
	assert.False(t, ok)

	_, err = del(ctx, map[string]any{"blockIds": []any{"b-1"}})
	assert.ErrorContains(t, err, "not found")
}

func TestSplitBlock(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	split := handler(t, st, AgentTypeEditor, "splitBlock")

	out, err := split(ctx, map[string]any{"blockId": "b-1", "frame": float64(40)})
	require.NoError(t, err)

	halves := out.([]store.Entity)
	require.Len(t, halves, 2)
	assert.Equal(t, "b-1", halves[0]["id"])
	assert.Equal(t, 40, halves[0]["durationInFrames"])
	assert.Equal(t, 40, halves[1]["startFrame"])
	assert.Equal(t, 80, halves[1]["durationInFrames"])
	assert.Equal(t, "tl-1", halves[1]["timelineId"])

	_, ok := st.Block(halves[1]["id"].(string))
	assert.True(t, ok)

	// Split points outside the block's span are rejected.
	_, err = split(ctx, map[string]any{"blockId": "b-2", "frame": float64(30)})
	assert.ErrorContains(t, err, "outside block")
	_, err = split(ctx, map[string]any{"blockId": "b-2", "frame": float64(90)})
	assert.ErrorContains(t, err, "outside block")
}

func TestMediaTools(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	out, err := handler(t, st, AgentTypeMedia, "listMediaAssets")(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, out.([]store.Entity), 1)

	out, err = handler(t, st, AgentTypeMedia, "updateMediaAsset")(ctx, map[string]any{
		"assetId": "m-1",
		"changes": map[string]any{"name": "clip-v2.mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, "clip-v2.mp4", out.(store.Entity)["name"])

	_, err = handler(t, st, AgentTypeMedia, "deleteMediaAsset")(ctx, map[string]any{"assetId": "m-1"})
	require.NoError(t, err)
	_, ok := st.MediaAsset("m-1")
	assert.False(t, ok)
}

func TestGetChapter(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()
	get := handler(t, st, AgentTypeEditor, "getChapter")

	out, err := get(ctx, map[string]any{"chapterId": "ch-1"})
	require.NoError(t, err)
	assert.Equal(t, "Intro", out.(store.Entity)["title"])

	_, err = get(ctx, map[string]any{"chapterId": "ch-9"})
	assert.ErrorContains(t, err, "not found")
}
