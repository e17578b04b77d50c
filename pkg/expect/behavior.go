package expect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// checkBehavior classifies the agent's overall action. Exactly one of the
// behavior kinds applies to any given run, so the clause yields a single
// assertion.
func checkBehavior(exp *BehaviorExpectation, calls []*tracker.ToolCall, response string) AssertionResult {
	passed, message := behaviorHolds(exp, calls, response)

	name := "agentBehavior"
	if exp.Type != "" {
		name = fmt.Sprintf("agentBehavior[%s]", exp.Type)
	} else if len(exp.OneOf) > 0 {
		name = "agentBehavior[oneOf]"
	}

	r := AssertionResult{Name: name, Passed: passed}
	if !passed {
		r.Message = message
		r.Actual = response
	}
	return r
}

func behaviorHolds(exp *BehaviorExpectation, calls []*tracker.ToolCall, response string) (bool, string) {
	if len(exp.OneOf) > 0 {
		for _, alt := range exp.OneOf {
			if ok, _ := behaviorHolds(&alt, calls, response); ok {
				return true, ""
			}
		}
		return false, fmt.Sprintf("none of %d alternative behaviors matched", len(exp.OneOf))
	}

	switch exp.Type {
	case BehaviorClarificationQuestion:
		return clarificationHolds(exp.Pattern, response)

	case BehaviorToolCall:
		return toolCallBehaviorHolds(exp, calls)

	case BehaviorCompletion:
		if len(calls) > 0 {
			return false, fmt.Sprintf("expected completion without tool calls, got %d calls", len(calls))
		}
		if strings.Contains(response, "?") {
			return false, "expected completion but the response reads like a question"
		}
		return true, ""

	default:
		return false, fmt.Sprintf("unknown behavior type '%s'", exp.Type)
	}
}

func clarificationHolds(pattern any, response string) (bool, string) {
	if response == "" {
		return false, "expected a clarification question but the agent produced no response"
	}

	// only a usable string pattern is honored; anything else fails closed
	// to the question-mark check
	if p, ok := pattern.(string); ok && p != "" {
		re, err := regexp.Compile("(?i)" + p)
		if err == nil {
			if re.MatchString(response) {
				return true, ""
			}
			return false, fmt.Sprintf("response did not match clarification pattern '%s'", p)
		}
	}

	if strings.Contains(response, "?") {
		return true, ""
	}
	return false, "response does not contain a question"
}

func toolCallBehaviorHolds(exp *BehaviorExpectation, calls []*tracker.ToolCall) (bool, string) {
	if exp.Tool == "" {
		if len(calls) > 0 {
			return true, ""
		}
		return false, "expected at least one tool call, got none"
	}

	matched := false
	for _, c := range calls {
		if c.ToolName != exp.Tool {
			continue
		}
		matched = true
		if len(exp.Args) == 0 || MatchesConditions(c.Input, exp.Args) {
			return true, ""
		}
	}

	if matched {
		return false, fmt.Sprintf("tool '%s' was called but no call matched the argument conditions", exp.Tool)
	}
	return false, fmt.Sprintf("expected a call to tool '%s'", exp.Tool)
}
