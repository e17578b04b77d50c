// Package expect evaluates a scenario's declared expectations against the
// recorded outcome of an agent run: the tool-call history, the structural
// data diff, and the agent's free-text response.
package expect

import (
	"encoding/json"
)

// ExpectationSet is one alternative way for a scenario to pass. All four
// clauses are optional; a set passes iff every clause it declares passes,
// accounting for soft checks.
type ExpectationSet struct {
	ToolCalls     *ToolCallExpectation     `json:"toolCalls,omitempty"`
	FinalState    *FinalStateExpectation   `json:"finalState,omitempty"`
	AgentBehavior *BehaviorExpectation     `json:"agentBehavior,omitempty"`
	ReferenceTags *ReferenceTagExpectation `json:"referenceTags,omitempty"`
}

type ToolCallExpectation struct {
	// Required tools must each appear at least once, in any order.
	Required []string `json:"required,omitempty"`

	// Forbidden tools must never appear. Never softened.
	Forbidden []string `json:"forbidden,omitempty"`

	// Order must occur as a subsequence of the actual call sequence.
	// Only checked when it names more than one tool.
	Order []string `json:"order,omitempty"`
}

type FinalStateExpectation struct {
	Blocks      *CollectionExpectation `json:"blocks,omitempty"`
	Timelines   *CollectionExpectation `json:"timelines,omitempty"`
	MediaAssets *CollectionExpectation `json:"mediaAssets,omitempty"`
}

type CollectionExpectation struct {
	// Added matchers each require at least one added entity whose data
	// satisfies the conditions.
	Added []ConditionMap `json:"added,omitempty"`

	// Modified matchers identify an entity by its pre-change state and
	// assert conditions on post-change field values.
	Modified []ModifiedMatcher `json:"modified,omitempty"`

	// Deleted and Unchanged are checked by entity id.
	Deleted   []string `json:"deleted,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

type ModifiedMatcher struct {
	Match   ConditionMap `json:"match"`
	Changes ConditionMap `json:"changes"`
}

const (
	BehaviorClarificationQuestion = "clarification_question"
	BehaviorToolCall              = "tool_call"
	BehaviorCompletion            = "completion"
)

type BehaviorExpectation struct {
	Type string `json:"type,omitempty"`

	// Pattern applies to clarification_question. Deliberately untyped: a
	// non-string value (e.g. an empty object surviving a serialization
	// round trip) falls back to the question-mark check rather than
	// silently passing.
	Pattern any `json:"pattern,omitempty"`

	// Tool and Args apply to tool_call.
	Tool string       `json:"tool,omitempty"`
	Args ConditionMap `json:"args,omitempty"`

	// OneOf passes if any alternative passes.
	OneOf []BehaviorExpectation `json:"oneOf,omitempty"`
}

type ReferenceTagExpectation struct {
	Required  []TagMatcher `json:"required,omitempty"`
	Forbidden []TagMatcher `json:"forbidden,omitempty"`
	MinCount  []TagCount   `json:"minCount,omitempty"`
	MaxCount  []TagCount   `json:"maxCount,omitempty"`
}

type TagMatcher struct {
	Tag   string       `json:"tag"`
	Attrs ConditionMap `json:"attrs,omitempty"`
	Label *Condition   `json:"label,omitempty"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ConditionMap applies a condition per field of an actual object. A nil
// condition for a key means no constraint on that field.
type ConditionMap map[string]*Condition

// Condition is either a literal value (strict equality) or a structured
// condition object. All declared operators must hold, except Equals which
// short-circuits the rest.
type Condition struct {
	Equals   any      `json:"equals,omitempty"`
	OneOf    []any    `json:"oneOf,omitempty"`
	Gte      *float64 `json:"gte,omitempty"`
	Lte      *float64 `json:"lte,omitempty"`
	Gt       *float64 `json:"gt,omitempty"`
	Lt       *float64 `json:"lt,omitempty"`
	Contains *string  `json:"contains,omitempty"`
	Matches  *string  `json:"matches,omitempty"`

	literal   any
	isLiteral bool
	hasEquals bool
}

// Lit builds a literal condition. Mostly useful in tests and in-process
// scenario definitions.
func Lit(v any) *Condition {
	return &Condition{literal: v, isLiteral: true}
}

type conditionObject struct {
	Equals   *json.RawMessage `json:"equals"`
	OneOf    []any            `json:"oneOf"`
	Gte      *float64         `json:"gte"`
	Lte      *float64         `json:"lte"`
	Gt       *float64         `json:"gt"`
	Lt       *float64         `json:"lt"`
	Contains *string          `json:"contains"`
	Matches  *string          `json:"matches"`
}

// UnmarshalJSON accepts either a bare scalar (a literal condition) or an
// object of operators. Unknown operator keys are ignored, which makes a
// malformed condition vacuously true rather than an error.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := firstNonSpace(data)
	if trimmed != '{' {
		var literal any
		if err := json.Unmarshal(data, &literal); err != nil {
			return err
		}
		*c = Condition{literal: literal, isLiteral: true}
		return nil
	}

	var obj conditionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*c = Condition{
		OneOf:    obj.OneOf,
		Gte:      obj.Gte,
		Lte:      obj.Lte,
		Gt:       obj.Gt,
		Lt:       obj.Lt,
		Contains: obj.Contains,
		Matches:  obj.Matches,
	}
	if obj.Equals != nil {
		var eq any
		if err := json.Unmarshal(*obj.Equals, &eq); err != nil {
			return err
		}
		c.Equals = eq
		c.hasEquals = true
	}
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	if c.isLiteral {
		return json.Marshal(c.literal)
	}

	type alias Condition
	return json.Marshal(alias(c))
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
