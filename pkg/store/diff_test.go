package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSelfIsEmpty(t *testing.T) {
	s := New()
	s.PutBlock("b1", Entity{"id": "b1", "type": "video", "startFrame": 0})
	s.PutTimeline("t1", Entity{"id": "t1", "name": "main"})
	s.PutMediaAsset("m1", Entity{"id": "m1", "fileName": "intro.mp4"})

	snap := s.Snapshot()
	diff := ComputeDiff(snap, snap)

	assert.True(t, diff.Empty())
}

func TestDiffAddedModifiedDeleted(t *testing.T) {
	s := New()
	s.PutBlock("keep", Entity{"id": "keep", "startFrame": 10})
	s.PutBlock("change", Entity{"id": "change", "startFrame": 20})
	s.PutBlock("remove", Entity{"id": "remove", "startFrame": 30})

	before := s.Snapshot()

	s.UpdateBlock("change", map[string]any{"startFrame": 25})
	s.DeleteBlock("remove")
	s.PutBlock("new", Entity{"id": "new", "startFrame": 40})

	after := s.Snapshot()
	diff := ComputeDiff(before, after)

	require.Len(t, diff.Blocks.Added, 1)
	assert.Equal(t, "new", diff.Blocks.Added[0].ID)

	require.Len(t, diff.Blocks.Modified, 1)
	assert.Equal(t, "change", diff.Blocks.Modified[0].ID)
	assert.Equal(t, 20, diff.Blocks.Modified[0].Before["startFrame"])
	assert.Equal(t, 25, diff.Blocks.Modified[0].After["startFrame"])

	require.Len(t, diff.Blocks.Deleted, 1)
	assert.Equal(t, "remove", diff.Blocks.Deleted[0].ID)

	// untouched collections stay empty
	assert.True(t, diff.Timelines.Empty())
	assert.True(t, diff.MediaAssets.Empty())
}

func TestDiffIDAppearsInAtMostOneBucket(t *testing.T) {
	s := New()
	s.PutBlock("b1", Entity{"id": "b1", "startFrame": 0})
	before := s.Snapshot()

	s.UpdateBlock("b1", map[string]any{"startFrame": 5})
	after := s.Snapshot()

	diff := ComputeDiff(before, after)

	seen := make(map[string]int)
	for _, c := range diff.Blocks.Added {
		seen[c.ID]++
	}
	for _, m := range diff.Blocks.Modified {
		seen[m.ID]++
	}
	for _, c := range diff.Blocks.Deleted {
		seen[c.ID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "id %s appeared in %d buckets", id, n)
	}
}

func TestDiffAddedThenDeletedNeverAppears(t *testing.T) {
	s := New()
	before := s.Snapshot()

	s.PutBlock("ephemeral", Entity{"id": "ephemeral"})
	s.DeleteBlock("ephemeral")

	after := s.Snapshot()
	diff := ComputeDiff(before, after)

	assert.True(t, diff.Blocks.Empty())
}

func TestDiffNilSnapshotsDegradeToEmpty(t *testing.T) {
	s := New()
	s.PutBlock("b1", Entity{"id": "b1"})
	snap := s.Snapshot()

	assert.True(t, ComputeDiff(nil, nil).Empty())

	// a one-sided diff has no baseline to compare against; nothing may be
	// reported as added or deleted
	assert.True(t, ComputeDiff(nil, snap).Empty(), "nil before snapshot must yield an empty diff")
	assert.True(t, ComputeDiff(snap, nil).Empty(), "nil after snapshot must yield an empty diff")
}

func TestDeepEqualIgnoresFieldOrder(t *testing.T) {
	a := Entity{"x": 1, "settings": map[string]any{"volume": 0.5, "muted": false}}
	b := Entity{"settings": map[string]any{"muted": false, "volume": 0.5}, "x": 1}

	assert.True(t, DeepEqual(a, b))
	assert.False(t, DeepEqual(a, Entity{"x": 2, "settings": a["settings"]}))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := New()
	s.PutBlock("b1", Entity{"id": "b1", "settings": map[string]any{"volume": 1.0}})

	snap := s.Snapshot()
	s.UpdateBlock("b1", map[string]any{"settings": map[string]any{"volume": 0.2}})

	settings, ok := snap.Blocks["b1"]["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, settings["volume"])
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := New()
	s.PutBlock("b1", Entity{"id": "b1", "startFrame": 1})

	e, ok := s.Block("b1")
	require.True(t, ok)
	e["startFrame"] = 99

	again, _ := s.Block("b1")
	assert.Equal(t, 1, again["startFrame"])
}
