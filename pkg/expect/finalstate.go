package expect

import (
	"fmt"

	"github.com/clipcheck/clipcheck/pkg/store"
)

func checkFinalState(exp *FinalStateExpectation, diff *store.Diff) []AssertionResult {
	if diff == nil {
		diff = &store.Diff{}
	}

	results := make([]AssertionResult, 0)
	results = append(results, checkCollection("blocks", exp.Blocks, diff.Blocks)...)
	results = append(results, checkCollection("timelines", exp.Timelines, diff.Timelines)...)
	results = append(results, checkCollection("mediaAssets", exp.MediaAssets, diff.MediaAssets)...)
	return results
}

func checkCollection(kind string, exp *CollectionExpectation, diff store.CollectionDiff) []AssertionResult {
	if exp == nil {
		return nil
	}

	results := make([]AssertionResult, 0)

	for i, matcher := range exp.Added {
		r := AssertionResult{
			Name:     fmt.Sprintf("%s.added[%d]", kind, i),
			Expected: matcher,
		}
		for _, added := range diff.Added {
			if MatchesConditions(added.Data, matcher) {
				r.Passed = true
				break
			}
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("no added %s entity matched the expected fields", kind)
			r.Actual = diff.Added
		}
		results = append(results, r)
	}

	for i, matcher := range exp.Modified {
		results = append(results, checkModified(kind, i, matcher, diff.Modified))
	}

	for _, id := range exp.Deleted {
		r := AssertionResult{
			Name:   fmt.Sprintf("%s.deleted[%s]", kind, id),
			Passed: containsID(diff.Deleted, id),
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("%s entity '%s' was not deleted", kind, id)
		}
		results = append(results, r)
	}

	for _, id := range exp.Unchanged {
		// presence in added is not checked: an entity expected unchanged
		// is assumed to have existed before the run
		modified := containsModifiedID(diff.Modified, id)
		deleted := containsID(diff.Deleted, id)
		r := AssertionResult{
			Name:   fmt.Sprintf("%s.unchanged[%s]", kind, id),
			Passed: !modified && !deleted,
		}
		if !r.Passed {
			what := "modified"
			if deleted {
				what = "deleted"
			}
			r.Message = fmt.Sprintf("%s entity '%s' was expected unchanged but was %s", kind, id, what)
		}
		results = append(results, r)
	}

	return results
}

// checkModified identifies the target entity by its pre-change state, then
// asserts the declared conditions against post-change field values. Not
// finding a before-match and finding one with mismatched fields are both
// failures, reported with distinct diagnostics.
func checkModified(kind string, idx int, matcher ModifiedMatcher, modified []store.EntityModification) AssertionResult {
	name := fmt.Sprintf("%s.modified[%d]", kind, idx)

	var target *store.EntityModification
	for i := range modified {
		if MatchesConditions(modified[i].Before, matcher.Match) {
			target = &modified[i]
			break
		}
	}

	if target == nil {
		return AssertionResult{
			Name:     name,
			Passed:   false,
			Message:  fmt.Sprintf("no modified %s entity matched the before-state conditions", kind),
			Expected: matcher.Match,
			Actual:   modifiedIDs(modified),
		}
	}

	for field, cond := range matcher.Changes {
		if cond == nil {
			continue
		}
		if !cond.Holds(target.After[field]) {
			return AssertionResult{
				Name:     name,
				Passed:   false,
				Message:  fmt.Sprintf("field '%s' of %s entity '%s' did not match after modification", field, kind, target.ID),
				Expected: matcher.Changes,
				Actual:   target.After,
			}
		}
	}

	return AssertionResult{Name: name, Passed: true}
}

func containsID(changes []store.EntityChange, id string) bool {
	for _, c := range changes {
		if c.ID == id {
			return true
		}
	}
	return false
}

func containsModifiedID(mods []store.EntityModification, id string) bool {
	for _, m := range mods {
		if m.ID == id {
			return true
		}
	}
	return false
}

func modifiedIDs(mods []store.EntityModification) []string {
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = m.ID
	}
	return ids
}
