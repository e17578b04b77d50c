package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRecordsSuccessfulCall(t *testing.T) {
	trk := New()

	fn := trk.Wrap("listBlocks", func(ctx context.Context, input map[string]any) (any, error) {
		return []string{"b1", "b2"}, nil
	})

	out, err := fn(context.Background(), map[string]any{"timelineId": "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, out)

	calls := trk.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "listBlocks", calls[0].ToolName)
	assert.Equal(t, "t1", calls[0].Input["timelineId"])
	assert.Equal(t, 0, calls[0].Order)
	assert.Empty(t, calls[0].Error)
}

func TestWrapRecordsAndRethrowsError(t *testing.T) {
	trk := New()
	boom := errors.New("block not found")

	fn := trk.Wrap("getBlock", func(ctx context.Context, input map[string]any) (any, error) {
		return nil, boom
	})

	_, err := fn(context.Background(), map[string]any{"blockId": "nope"})
	assert.Same(t, boom, err)

	calls := trk.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "block not found", calls[0].Error)
	assert.Nil(t, calls[0].Output)
}

func TestOrderCounterSharedBetweenWrapAndRecordCall(t *testing.T) {
	trk := New()

	fn := trk.Wrap("moveBlocks", func(ctx context.Context, input map[string]any) (any, error) {
		return nil, nil
	})

	_, _ = fn(context.Background(), nil)
	trk.RecordCall("listBlocks", nil, "ok", time.Now(), 3)
	_, _ = fn(context.Background(), nil)

	calls := trk.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{calls[0].Order, calls[1].Order, calls[2].Order})
	assert.Equal(t, []string{"moveBlocks", "listBlocks", "moveBlocks"}, trk.Sequence())
}

func TestQueries(t *testing.T) {
	trk := New()
	trk.RecordCall("listBlocks", nil, nil, time.Now(), 1)
	trk.RecordCall("moveBlocks", nil, nil, time.Now(), 2)
	trk.RecordCall("listBlocks", nil, nil, time.Now(), 3)

	assert.True(t, trk.WasCalled("moveBlocks"))
	assert.False(t, trk.WasCalled("deleteBlocks"))
	assert.Len(t, trk.CallsFor("listBlocks"), 2)
	assert.Equal(t, []string{"listBlocks", "moveBlocks"}, trk.UniqueTools())

	stats := trk.Stats()
	assert.Equal(t, 3, stats.TotalCalls)
	assert.Equal(t, 2, stats.UniqueTools)
	assert.Equal(t, int64(6), stats.TotalDurationMs)
	assert.Equal(t, 2.0, stats.AvgDurationMs)
	assert.Equal(t, 2, stats.CallsPerTool["listBlocks"])
}

func TestIsSubsequence(t *testing.T) {
	tests := map[string]struct {
		expected []string
		actual   []string
		want     bool
	}{
		"empty expected always matches": {
			expected: nil,
			actual:   []string{"a"},
			want:     true,
		},
		"exact sequence": {
			expected: []string{"a", "b"},
			actual:   []string{"a", "b"},
			want:     true,
		},
		"non-contiguous subsequence": {
			expected: []string{"a", "c"},
			actual:   []string{"a", "b", "c"},
			want:     true,
		},
		"wrong order": {
			expected: []string{"c", "a"},
			actual:   []string{"a", "b", "c"},
			want:     false,
		},
		"missing element": {
			expected: []string{"a", "x"},
			actual:   []string{"a", "b", "c"},
			want:     false,
		},
		"repeated names consume greedily": {
			expected: []string{"a", "a"},
			actual:   []string{"a", "b", "a"},
			want:     true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSubsequence(tc.expected, tc.actual))
		})
	}
}

func TestResetClearsCallsAndCounter(t *testing.T) {
	trk := New()
	trk.RecordCall("listBlocks", nil, nil, time.Now(), 0)
	trk.Reset()

	assert.Empty(t, trk.Calls())

	call := trk.RecordCall("moveBlocks", nil, nil, time.Now(), 0)
	assert.Equal(t, 0, call.Order)
}
