package expect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

func callsNamed(names ...string) []*tracker.ToolCall {
	calls := make([]*tracker.ToolCall, len(names))
	for i, n := range names {
		calls[i] = &tracker.ToolCall{ToolName: n, Order: i}
	}
	return calls
}

func blockModifiedDiff(id string, before, after store.Entity) *store.Diff {
	return &store.Diff{
		Blocks: store.CollectionDiff{
			Modified: []store.EntityModification{{ID: id, Before: before, After: after}},
		},
	}
}

func TestAllPassed(t *testing.T) {
	assert.True(t, AllPassed(nil))
	assert.True(t, AllPassed([]AssertionResult{
		{Passed: false, SoftCheck: true},
		{Passed: false, SoftCheck: true},
	}))
	assert.False(t, AllPassed([]AssertionResult{
		{Passed: true},
		{Passed: false},
	}))
}

func TestRequiredToolHardPassWithoutFinalState(t *testing.T) {
	sets := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Required: []string{"moveBlocks"}},
	}}

	results, passed := Check(sets, Outcome{Calls: callsNamed("listBlocks", "moveBlocks")})
	assert.True(t, passed)
	require.Len(t, results, 2)
	assert.False(t, results[1].SoftCheck)
}

func TestRequiredToolSoftensWhenFinalStatePasses(t *testing.T) {
	sets := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Required: []string{"moveBlocks"}},
		FinalState: &FinalStateExpectation{
			Blocks: &CollectionExpectation{
				Modified: []ModifiedMatcher{{
					Match:   ConditionMap{"id": Lit("b1")},
					Changes: ConditionMap{"startFrame": Lit(30)},
				}},
			},
		},
	}}

	diff := blockModifiedDiff("b1",
		store.Entity{"id": "b1", "startFrame": 0},
		store.Entity{"id": "b1", "startFrame": 30},
	)

	// moveBlocks never called, but the data ended up right
	results, passed := Check(sets, Outcome{Calls: callsNamed("updateBlock"), Diff: diff})
	assert.True(t, passed)

	var required *AssertionResult
	for i := range results {
		if results[i].Name == "toolCalls.required[moveBlocks]" {
			required = &results[i]
		}
	}
	require.NotNil(t, required)
	assert.False(t, required.Passed)
	assert.True(t, required.SoftCheck)
}

func TestForbiddenToolNeverSoftens(t *testing.T) {
	sets := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Forbidden: []string{"deleteBlocks"}},
		FinalState: &FinalStateExpectation{
			Blocks: &CollectionExpectation{
				Modified: []ModifiedMatcher{{
					Match:   ConditionMap{"id": Lit("b1")},
					Changes: ConditionMap{"startFrame": Lit(30)},
				}},
			},
		},
	}}

	diff := blockModifiedDiff("b1",
		store.Entity{"id": "b1", "startFrame": 0},
		store.Entity{"id": "b1", "startFrame": 30},
	)

	results, passed := Check(sets, Outcome{Calls: callsNamed("deleteBlocks"), Diff: diff})
	assert.False(t, passed)

	var forbidden *AssertionResult
	for i := range results {
		if results[i].Name == "toolCalls.forbidden[deleteBlocks]" {
			forbidden = &results[i]
		}
	}
	require.NotNil(t, forbidden)
	assert.False(t, forbidden.Passed)
	assert.False(t, forbidden.SoftCheck)
}

func TestRequiredStaysHardWhenFinalStateFails(t *testing.T) {
	sets := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Required: []string{"moveBlocks"}},
		FinalState: &FinalStateExpectation{
			Blocks: &CollectionExpectation{Deleted: []string{"b9"}},
		},
	}}

	_, passed := Check(sets, Outcome{Calls: callsNamed("listBlocks"), Diff: &store.Diff{}})
	assert.False(t, passed)
}

func TestOrderOnlyCheckedWithMultipleEntries(t *testing.T) {
	single := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Order: []string{"listBlocks"}},
	}}
	results, passed := Check(single, Outcome{Calls: nil})
	assert.True(t, passed)
	// just the summary; the one-entry order list produces no assertion
	require.Len(t, results, 1)

	multi := []ExpectationSet{{
		ToolCalls: &ToolCallExpectation{Order: []string{"listBlocks", "moveBlocks"}},
	}}
	_, passed = Check(multi, Outcome{Calls: callsNamed("moveBlocks", "listBlocks")})
	assert.False(t, passed)

	_, passed = Check(multi, Outcome{Calls: callsNamed("listBlocks", "getBlock", "moveBlocks")})
	assert.True(t, passed)
}

func TestOrSemanticsSecondSetWins(t *testing.T) {
	sets := []ExpectationSet{
		{ToolCalls: &ToolCallExpectation{Required: []string{"toolX"}}},
		{AgentBehavior: &BehaviorExpectation{Type: BehaviorCompletion}},
	}

	// no tool calls, empty response: set 1 hard-fails, set 2 passes
	results, passed := Check(sets, Outcome{})
	assert.True(t, passed)
	assert.Equal(t, "Expectation 2/2 passed", results[0].Name)
}

func TestNoSetPassesReportsFirstSetOnly(t *testing.T) {
	sets := []ExpectationSet{
		{ToolCalls: &ToolCallExpectation{Required: []string{"toolX"}}},
		{ToolCalls: &ToolCallExpectation{Required: []string{"toolY"}}},
	}

	results, passed := Check(sets, Outcome{})
	assert.False(t, passed)
	require.NotEmpty(t, results)
	assert.Equal(t, "None of 2 expectation sets passed", results[0].Name)

	for _, r := range results[1:] {
		assert.NotContains(t, r.Name, "toolY")
	}
}

func TestEmptySetListFails(t *testing.T) {
	results, passed := Check(nil, Outcome{})
	assert.False(t, passed)
	require.Len(t, results, 1)
}
