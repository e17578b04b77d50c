// Package scenario defines the declarative test case format: one user
// message plus the expectations the agent run must satisfy. Scenarios are
// YAML documents (kind: Scenario) but the in-process value is the contract.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/clipcheck/clipcheck/pkg/expect"
	"github.com/clipcheck/clipcheck/pkg/util"
)

const (
	KindScenario = "Scenario"
	KindSuite    = "ScenarioSuite"

	DefaultTimeoutSeconds = 120
)

type Scenario struct {
	util.TypeMeta `json:",inline"`
	Metadata      Metadata `json:"metadata"`
	Input         Input    `json:"input"`

	// Expectations are alternatives: the scenario passes if any one set
	// passes. Must be non-empty.
	Expectations []expect.ExpectationSet `json:"expectations"`

	TimeoutSeconds *int          `json:"timeoutSeconds,omitempty"`
	SystemPrompt   *PromptConfig `json:"systemPrompt,omitempty"`
}

type Metadata struct {
	Name      string `json:"name"`
	AgentType string `json:"agentType"`
}

type Input struct {
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
	ChapterID string `json:"chapterId,omitempty"`

	// FPS overrides the fixture's stored fps during placeholder
	// resolution.
	FPS *float64 `json:"fps,omitempty"`
}

// PromptConfig configures system-prompt resolution. Precedence: Raw, then
// File, then the agent type's default with Patches applied, then the
// unmodified default.
type PromptConfig struct {
	Raw     string        `json:"raw,omitempty"`
	File    string        `json:"file,omitempty"`
	Patches []PromptPatch `json:"patches,omitempty"`
}

type PromptPatch struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

func (s *Scenario) Timeout() int {
	if s.TimeoutSeconds != nil && *s.TimeoutSeconds > 0 {
		return *s.TimeoutSeconds
	}
	return DefaultTimeoutSeconds
}

// UnmarshalJSON validates the document's kind before decoding; in-process
// scenario values are only structurally typed.
func (s *Scenario) UnmarshalJSON(data []byte) error {
	type doppleganger Scenario

	tmp := (*doppleganger)(s)
	return util.UnmarshalWithKind(data, tmp, KindScenario)
}

func (s *Scenario) Validate() error {
	if s.Metadata.Name == "" {
		return fmt.Errorf("scenario metadata.name must be set")
	}
	if s.Metadata.AgentType == "" {
		return fmt.Errorf("scenario metadata.agentType must be set")
	}
	if s.Input.Message == "" {
		return fmt.Errorf("scenario input.message must be set")
	}
	if s.Input.ProjectID == "" {
		return fmt.Errorf("scenario input.projectId must be set")
	}
	if len(s.Expectations) == 0 {
		return fmt.Errorf("scenario must declare at least one expectation set")
	}
	return nil
}

func Read(data []byte, basePath string) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, err
	}

	if err := util.ValidateAPIVersion(sc.APIVersion); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	if sc.SystemPrompt != nil {
		resolveFilePath(&sc.SystemPrompt.File, basePath)
	}

	return sc, nil
}

func FromFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file '%s': %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}

	return Read(data, filepath.Dir(absPath))
}

// Suite groups scenarios and carries the shared run configuration.
type Suite struct {
	util.TypeMeta `json:",inline"`
	Metadata      Metadata    `json:"metadata"`
	Config        SuiteConfig `json:"config"`
}

type SuiteConfig struct {
	// FixtureDB is the SQLite database the harness loads fixtures from.
	FixtureDB string `json:"fixtureDb"`

	ScenarioSets []ScenarioSet `json:"scenarioSets"`

	Agent *AgentRef `json:"agent,omitempty"`

	DefaultTimeoutSeconds *int          `json:"defaultTimeoutSeconds,omitempty"`
	SystemPrompt          *PromptConfig `json:"systemPrompt,omitempty"`
}

// ScenarioSet selects scenario files. Exactly one of Glob or Path must be
// set.
type ScenarioSet struct {
	Glob string `json:"glob,omitempty"`
	Path string `json:"path,omitempty"`
}

// AgentRef selects the agent runtime for a suite run.
type AgentRef struct {
	// Type is "openai" for the builtin chat-completions loop.
	Type    string `json:"type"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

func (s *Suite) UnmarshalJSON(data []byte) error {
	type doppleganger Suite

	tmp := (*doppleganger)(s)
	return util.UnmarshalWithKind(data, tmp, KindSuite)
}

func ReadSuite(data []byte, basePath string) (*Suite, error) {
	suite := &Suite{}
	if err := yaml.Unmarshal(data, suite); err != nil {
		return nil, err
	}

	if err := util.ValidateAPIVersion(suite.APIVersion); err != nil {
		return nil, err
	}
	if suite.Metadata.Name == "" {
		return nil, fmt.Errorf("suite metadata.name must be set")
	}

	resolveFilePath(&suite.Config.FixtureDB, basePath)
	if suite.Config.SystemPrompt != nil {
		resolveFilePath(&suite.Config.SystemPrompt.File, basePath)
	}
	for i := range suite.Config.ScenarioSets {
		resolveFilePath(&suite.Config.ScenarioSets[i].Path, basePath)
		resolveFilePath(&suite.Config.ScenarioSets[i].Glob, basePath)
	}

	return suite, nil
}

func SuiteFromFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file '%s': %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}

	return ReadSuite(data, filepath.Dir(absPath))
}

// CollectScenarios loads every scenario selected by the suite's sets, in
// declaration order.
func (s *Suite) CollectScenarios() ([]*Scenario, error) {
	scenarios := make([]*Scenario, 0)

	for _, set := range s.Config.ScenarioSets {
		var paths []string
		var err error

		if set.Glob != "" {
			paths, err = filepath.Glob(set.Glob)
			if err != nil {
				return nil, fmt.Errorf("failed to glob %s: %w", set.Glob, err)
			}
		} else if set.Path != "" {
			paths = []string{set.Path}
		}

		for _, path := range paths {
			sc, err := FromFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load scenario at %s: %w", path, err)
			}
			scenarios = append(scenarios, sc)
		}
	}

	return scenarios, nil
}

func resolveFilePath(filePath *string, basePath string) {
	if filePath == nil || *filePath == "" || filepath.IsAbs(*filePath) {
		return
	}
	*filePath = filepath.Join(basePath, *filePath)
}
