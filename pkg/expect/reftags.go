package expect

import (
	"fmt"
	"regexp"
)

// ParsedTag is a citation-like tag extracted from an agent's free-text
// response, e.g. <block id="abc">Intro</block> or <asset id="m1" />.
type ParsedTag struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
	Label string            `json:"label"`
	Raw   string            `json:"raw"`
}

// The grammar is a controlled subset of HTML-like markup: attributes are
// double-quoted name="value" pairs and paired-tag content may not contain
// '<'. Nested or self-referential tags are unsupported. RE2 has no
// backreferences, so the closing name is captured and compared in code.
var (
	pairedTagRe = regexp.MustCompile(`<([A-Za-z][\w-]*)((?:\s+[\w-]+\s*=\s*"[^"]*")*)\s*>([^<]*)</([A-Za-z][\w-]*)\s*>`)
	selfCloseRe = regexp.MustCompile(`<([A-Za-z][\w-]*)((?:\s+[\w-]+\s*=\s*"[^"]*")*)\s*/>`)
	tagAttrRe   = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"`)
)

// ParseReferenceTags scans text for both tag forms. All paired-tag matches
// come first, then all self-closing matches; the list is not in strict
// document order when the forms interleave.
func ParseReferenceTags(text string) []ParsedTag {
	tags := make([]ParsedTag, 0)

	for _, m := range pairedTagRe.FindAllStringSubmatch(text, -1) {
		if m[1] != m[4] {
			continue
		}
		tags = append(tags, ParsedTag{
			Tag:   m[1],
			Attrs: parseAttrs(m[2]),
			Label: m[3],
			Raw:   m[0],
		})
	}

	for _, m := range selfCloseRe.FindAllStringSubmatch(text, -1) {
		tags = append(tags, ParsedTag{
			Tag:   m[1],
			Attrs: parseAttrs(m[2]),
			Raw:   m[0],
		})
	}

	return tags
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range tagAttrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

func (t ParsedTag) matches(m TagMatcher) bool {
	if t.Tag != m.Tag {
		return false
	}
	return MatchesConditions(attrsAsAny(t.Attrs), m.Attrs)
}

func attrsAsAny(attrs map[string]string) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func checkReferenceTags(exp *ReferenceTagExpectation, response string) []AssertionResult {
	if response == "" && len(exp.Required) > 0 {
		return []AssertionResult{{
			Name:    "referenceTags",
			Passed:  false,
			Message: "no agent response to scan for reference tags",
		}}
	}

	tags := ParseReferenceTags(response)
	results := make([]AssertionResult, 0)

	for _, matcher := range exp.Required {
		name := fmt.Sprintf("referenceTags.required[%s]", matcher.Tag)

		found, ok := findTag(tags, matcher)
		if !ok {
			results = append(results, AssertionResult{
				Name:     name,
				Passed:   false,
				Message:  fmt.Sprintf("no <%s> tag matched the expected attributes", matcher.Tag),
				Expected: matcher,
				Actual:   sameNamedTags(tags, matcher.Tag),
			})
			continue
		}

		results = append(results, AssertionResult{Name: name, Passed: true})

		// a found tag with the wrong label is reported separately so it
		// stays distinguishable from tag-not-found
		if matcher.Label != nil {
			results = append(results, AssertionResult{
				Name:     name + ".label",
				Passed:   matcher.Label.Holds(found.Label),
				Expected: matcher.Label,
				Actual:   found.Label,
			})
		}
	}

	for _, matcher := range exp.Forbidden {
		name := fmt.Sprintf("referenceTags.forbidden[%s]", matcher.Tag)
		if found, ok := findTag(tags, matcher); ok {
			results = append(results, AssertionResult{
				Name:    name,
				Passed:  false,
				Message: fmt.Sprintf("forbidden tag present: %s", found.Raw),
			})
		} else {
			results = append(results, AssertionResult{Name: name, Passed: true})
		}
	}

	for _, tc := range exp.MinCount {
		n := countTag(tags, tc.Tag)
		results = append(results, AssertionResult{
			Name:     fmt.Sprintf("referenceTags.minCount[%s]", tc.Tag),
			Passed:   n >= tc.Count,
			Expected: tc.Count,
			Actual:   n,
		})
	}

	for _, tc := range exp.MaxCount {
		n := countTag(tags, tc.Tag)
		results = append(results, AssertionResult{
			Name:     fmt.Sprintf("referenceTags.maxCount[%s]", tc.Tag),
			Passed:   n <= tc.Count,
			Expected: tc.Count,
			Actual:   n,
		})
	}

	return results
}

func findTag(tags []ParsedTag, m TagMatcher) (ParsedTag, bool) {
	for _, t := range tags {
		if t.matches(m) {
			return t, true
		}
	}
	return ParsedTag{}, false
}

func sameNamedTags(tags []ParsedTag, name string) []ParsedTag {
	out := make([]ParsedTag, 0)
	for _, t := range tags {
		if t.Tag == name {
			out = append(out, t)
		}
	}
	return out
}

func countTag(tags []ParsedTag, name string) int {
	n := 0
	for _, t := range tags {
		if t.Tag == name {
			n++
		}
	}
	return n
}
