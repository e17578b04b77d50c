package agentrun

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clipcheck/clipcheck/pkg/scenario"
	"github.com/clipcheck/clipcheck/pkg/store"
	"github.com/clipcheck/clipcheck/pkg/toolset"
)

const (
	PromptSourceRaw     = "raw"
	PromptSourceFile    = "file"
	PromptSourcePatched = "patched-default"
	PromptSourceDefault = "default"
)

// ResolvedPrompt records where the system prompt came from and its text
// before placeholder substitution, for run diagnostics.
type ResolvedPrompt struct {
	Source string `json:"source"`
	Raw    string `json:"raw"`
}

var defaultPrompts = map[string]string{
	toolset.AgentTypeEditor: `You are a video editing assistant working on the project "{{projectName}}" at {{fps}} fps.
You are editing the chapter "{{chapterTitle}}".
Timelines in this chapter: {{timelineNames}}.
Use the available tools to inspect and modify blocks and timelines. Ask a clarifying question when the request is ambiguous.`,
	toolset.AgentTypeMedia: `You are a media library assistant for the project "{{projectName}}".
Available media assets: {{mediaAssetNames}}.
Use the available tools to inspect and modify media assets. Ask a clarifying question when the request is ambiguous.`,
}

// resolvePrompt applies the precedence: raw text, then file, then patched
// default, then the unmodified default for the agent type.
func resolvePrompt(agentType string, cfg *scenario.PromptConfig) (*ResolvedPrompt, error) {
	if cfg != nil && cfg.Raw != "" {
		return &ResolvedPrompt{Source: PromptSourceRaw, Raw: cfg.Raw}, nil
	}

	if cfg != nil && cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt file '%s': %w", cfg.File, err)
		}
		return &ResolvedPrompt{Source: PromptSourceFile, Raw: string(data)}, nil
	}

	base, ok := defaultPrompts[agentType]

	if cfg != nil && len(cfg.Patches) > 0 {
		if !ok {
			return nil, fmt.Errorf("prompt patches requested but no default prompt exists for agent type '%s'", agentType)
		}
		for _, patch := range cfg.Patches {
			base = strings.ReplaceAll(base, patch.Find, patch.Replace)
		}
		return &ResolvedPrompt{Source: PromptSourcePatched, Raw: base}, nil
	}

	if !ok {
		return nil, fmt.Errorf("no default prompt exists for agent type '%s'", agentType)
	}
	return &ResolvedPrompt{Source: PromptSourceDefault, Raw: base}, nil
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// substitutePlaceholders fills the raw prompt's placeholders from fixture
// data and overrides. Unknown placeholders are left verbatim.
func substitutePlaceholders(raw string, st *store.Store, runCtx Context, overrides map[string]string) string {
	values := placeholderValues(st, runCtx)
	for k, v := range overrides {
		values[k] = v
	}

	return placeholderRe.ReplaceAllStringFunc(raw, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

func placeholderValues(st *store.Store, runCtx Context) map[string]string {
	values := map[string]string{}
	if st == nil {
		return values
	}

	if project, ok := st.Project(runCtx.ProjectID); ok {
		if name, ok := project["name"].(string); ok {
			values["projectName"] = name
		}
		if fps, ok := project["fps"].(float64); ok {
			values["fps"] = strconv.FormatFloat(fps, 'f', -1, 64)
		}
	}
	if chapter, ok := st.Chapter(runCtx.ChapterID); ok {
		if title, ok := chapter["title"].(string); ok {
			values["chapterTitle"] = title
		}
	}

	values["timelineNames"] = joinEntityNames(st.Timelines(), "name")
	values["mediaAssetNames"] = joinEntityNames(st.MediaAssets(), "name")
	return values
}

func joinEntityNames(entities []store.Entity, field string) string {
	var names []string
	for _, e := range entities {
		if name, ok := e[field].(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
