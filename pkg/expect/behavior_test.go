package expect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClarificationQuestion(t *testing.T) {
	tests := map[string]struct {
		exp      BehaviorExpectation
		response string
		want     bool
	}{
		"question mark fallback": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion},
			response: "Which direction should I move it?",
			want:     true,
		},
		"no question at all": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion},
			response: "Done.",
			want:     false,
		},
		"empty response": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion},
			response: "",
			want:     false,
		},
		"pattern matches case-insensitively": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion, Pattern: "which direction"},
			response: "WHICH DIRECTION should I move it?",
			want:     true,
		},
		"pattern miss": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion, Pattern: "how many frames"},
			response: "Which direction should I move it?",
			want:     false,
		},
		"non-string pattern falls back to question mark": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion, Pattern: map[string]any{}},
			response: "Which direction?",
			want:     true,
		},
		"non-string pattern does not silently pass": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion, Pattern: map[string]any{}},
			response: "Moving the block now.",
			want:     false,
		},
		"invalid regex pattern falls back to question mark": {
			exp:      BehaviorExpectation{Type: BehaviorClarificationQuestion, Pattern: "(["},
			response: "Should I?",
			want:     true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := checkBehavior(&tc.exp, nil, tc.response)
			assert.Equal(t, tc.want, r.Passed)
		})
	}
}

func TestToolCallBehavior(t *testing.T) {
	calls := callsNamed("listBlocks", "moveBlocks")
	calls[1].Input = map[string]any{"offsetFrames": 30}

	anyCall := BehaviorExpectation{Type: BehaviorToolCall}
	assert.True(t, checkBehavior(&anyCall, calls, "").Passed)
	assert.False(t, checkBehavior(&anyCall, nil, "").Passed)

	named := BehaviorExpectation{Type: BehaviorToolCall, Tool: "moveBlocks"}
	assert.True(t, checkBehavior(&named, calls, "").Passed)

	withArgs := BehaviorExpectation{
		Type: BehaviorToolCall,
		Tool: "moveBlocks",
		Args: ConditionMap{"offsetFrames": Lit(30)},
	}
	assert.True(t, checkBehavior(&withArgs, calls, "").Passed)

	wrongArgs := BehaviorExpectation{
		Type: BehaviorToolCall,
		Tool: "moveBlocks",
		Args: ConditionMap{"offsetFrames": Lit(60)},
	}
	assert.False(t, checkBehavior(&wrongArgs, calls, "").Passed)
}

func TestCompletionBehavior(t *testing.T) {
	exp := BehaviorExpectation{Type: BehaviorCompletion}

	assert.True(t, checkBehavior(&exp, nil, "").Passed)
	assert.True(t, checkBehavior(&exp, nil, "All done.").Passed)
	assert.False(t, checkBehavior(&exp, callsNamed("listBlocks"), "All done.").Passed)
	assert.False(t, checkBehavior(&exp, nil, "Is that right?").Passed)
}

func TestOneOfBehavior(t *testing.T) {
	exp := BehaviorExpectation{
		OneOf: []BehaviorExpectation{
			{Type: BehaviorToolCall, Tool: "moveBlocks"},
			{Type: BehaviorClarificationQuestion},
		},
	}

	assert.True(t, checkBehavior(&exp, nil, "Which one?").Passed)
	assert.True(t, checkBehavior(&exp, callsNamed("moveBlocks"), "done").Passed)
	assert.False(t, checkBehavior(&exp, callsNamed("listBlocks"), "done").Passed)
}

func TestUnknownBehaviorTypeFails(t *testing.T) {
	exp := BehaviorExpectation{Type: "interpretive_dance"}
	r := checkBehavior(&exp, nil, "")
	assert.False(t, r.Passed)
	assert.Contains(t, r.Message, "unknown behavior type")
}
