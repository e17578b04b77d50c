package expect

import (
	"fmt"

	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// checkToolCalls evaluates the toolCalls clause. When finalStatePassed is
// true, required and order assertions soften: a miss is recorded for
// visibility but does not fail the set, because the desired end state was
// reached via some valid path. Forbidden assertions never soften; a
// disallowed action fails regardless of outcome.
func checkToolCalls(exp *ToolCallExpectation, calls []*tracker.ToolCall, finalStatePassed bool) []AssertionResult {
	sequence := make([]string, len(calls))
	called := make(map[string]bool, len(calls))
	for i, c := range calls {
		sequence[i] = c.ToolName
		called[c.ToolName] = true
	}

	results := make([]AssertionResult, 0)

	for _, tool := range exp.Required {
		r := AssertionResult{
			Name:   fmt.Sprintf("toolCalls.required[%s]", tool),
			Passed: called[tool],
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("required tool '%s' was never called", tool)
			r.Actual = sequence
			r.SoftCheck = finalStatePassed
		}
		results = append(results, r)
	}

	for _, tool := range exp.Forbidden {
		r := AssertionResult{
			Name:   fmt.Sprintf("toolCalls.forbidden[%s]", tool),
			Passed: !called[tool],
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("forbidden tool '%s' was called", tool)
		}
		results = append(results, r)
	}

	if len(exp.Order) > 1 {
		r := AssertionResult{
			Name:     "toolCalls.order",
			Passed:   tracker.IsSubsequence(exp.Order, sequence),
			Expected: exp.Order,
			Actual:   sequence,
		}
		if !r.Passed {
			r.Message = "expected tools did not occur in the declared order"
			r.SoftCheck = finalStatePassed
		}
		results = append(results, r)
	}

	return results
}
