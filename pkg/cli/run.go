package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/clipcheck/clipcheck/pkg/agentrun"
	"github.com/clipcheck/clipcheck/pkg/fixture"
	"github.com/clipcheck/clipcheck/pkg/harness"
	"github.com/clipcheck/clipcheck/pkg/results"
	"github.com/clipcheck/clipcheck/pkg/scenario"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var (
		outputFormat    string
		verbose         bool
		scenarioFilter  string
		agentTypeFilter string
		fixtureDB       string
		model           string
		timeoutOverride int
	)

	cmd := &cobra.Command{
		Use:   "run [suite-or-scenario-file]",
		Short: "Run a scenario suite or a single scenario",
		Long:  `Run every scenario in the specified suite file, or a single scenario file, against the configured agent.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, scenarios, err := loadRunTargets(args[0])
			if err != nil {
				return err
			}

			scenarios = filterScenarios(scenarios, scenarioFilter)
			scenarios = filterByAgentType(scenarios, agentTypeFilter)
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenarios matched")
			}
			if timeoutOverride > 0 {
				for _, sc := range scenarios {
					sc.TimeoutSeconds = &timeoutOverride
				}
			}

			if suite.Config.Agent == nil && model != "" {
				suite.Config.Agent = &scenario.AgentRef{Type: "openai", Model: model}
			}

			runner, err := newRunner(suite, fixtureDB)
			if err != nil {
				return err
			}

			display := newProgressDisplay(verbose)
			suiteResult := runner.RunScenariosWithProgress(
				context.Background(), suite.Metadata.Name, scenarios, display.handleProgress)

			outputFile := fmt.Sprintf("clipcheck-%s-out.json", suite.Metadata.Name)
			if err := results.Save(outputFile, suiteResult); err != nil {
				return fmt.Errorf("failed to save results to file: %w", err)
			}
			fmt.Printf("\n📄 Results saved to: %s\n", outputFile)

			if err := displayResults(suiteResult, outputFormat); err != nil {
				return err
			}

			if !suiteResult.AllPassed() {
				cmd.SilenceUsage = true
				return fmt.Errorf("%d of %d scenarios failed",
					suiteResult.Stats.Failed, suiteResult.Stats.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().StringVar(&scenarioFilter, "scenario", "", "Only run scenarios whose name contains this value")
	cmd.Flags().StringVar(&agentTypeFilter, "agent-type", "", "Only run scenarios for this agent type")
	cmd.Flags().StringVar(&fixtureDB, "fixtures", "", "Override the suite's fixture database path")
	cmd.Flags().StringVar(&model, "model", "", "OpenAI model to use when the file does not configure an agent")
	cmd.Flags().IntVar(&timeoutOverride, "timeout", 0, "Per-scenario timeout in seconds, overriding configured values")

	return cmd
}

// loadRunTargets accepts either a ScenarioSuite file or a single Scenario
// file. A bare scenario is wrapped in a synthetic one-scenario suite so the
// rest of the run path is uniform.
func loadRunTargets(path string) (*scenario.Suite, []*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	var probe struct {
		Kind string `json:"kind"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, nil, fmt.Errorf("failed to parse '%s': %w", path, err)
	}

	switch probe.Kind {
	case scenario.KindSuite:
		suite, err := scenario.SuiteFromFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load suite: %w", err)
		}
		scenarios, err := suite.CollectScenarios()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to collect scenarios: %w", err)
		}
		return suite, scenarios, nil

	case scenario.KindScenario:
		sc, err := scenario.FromFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		suite := &scenario.Suite{Metadata: scenario.Metadata{Name: sc.Metadata.Name}}
		return suite, []*scenario.Scenario{sc}, nil

	default:
		return nil, nil, fmt.Errorf("'%s' has kind '%s', expected '%s' or '%s'",
			path, probe.Kind, scenario.KindSuite, scenario.KindScenario)
	}
}

func newRunner(suite *scenario.Suite, fixtureDB string) (*harness.Runner, error) {
	dbPath := suite.Config.FixtureDB
	if fixtureDB != "" {
		dbPath = fixtureDB
	}
	if dbPath == "" {
		return nil, fmt.Errorf("a fixture database must be set in the suite config or via --fixtures")
	}

	runtime, err := newRuntime(suite.Config.Agent)
	if err != nil {
		return nil, err
	}

	cfg := harness.Config{
		Loader:              fixture.NewSQLiteLoader(dbPath),
		Runtime:             runtime,
		DefaultSystemPrompt: suite.Config.SystemPrompt,
	}
	if suite.Config.DefaultTimeoutSeconds != nil {
		cfg.DefaultTimeoutSeconds = *suite.Config.DefaultTimeoutSeconds
	}
	return harness.NewRunner(cfg)
}

func newRuntime(ref *scenario.AgentRef) (agentrun.Runtime, error) {
	if ref == nil {
		return nil, fmt.Errorf("an agent must be specified in the suite config")
	}

	switch ref.Type {
	case "openai":
		apiKey := ref.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		baseURL := ref.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return agentrun.NewOpenAIRuntime(baseURL, apiKey, ref.Model)
	default:
		return nil, fmt.Errorf("unknown agent type: '%s' (supported: openai)", ref.Type)
	}
}

func filterScenarios(scenarios []*scenario.Scenario, filter string) []*scenario.Scenario {
	if filter == "" {
		return scenarios
	}
	filter = strings.ToLower(filter)
	filtered := make([]*scenario.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if strings.Contains(strings.ToLower(sc.Metadata.Name), filter) {
			filtered = append(filtered, sc)
		}
	}
	return filtered
}

func filterByAgentType(scenarios []*scenario.Scenario, agentType string) []*scenario.Scenario {
	if agentType == "" {
		return scenarios
	}
	filtered := make([]*scenario.Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if sc.Metadata.AgentType == agentType {
			filtered = append(filtered, sc)
		}
	}
	return filtered
}

// progressDisplay handles interactive progress display
type progressDisplay struct {
	verbose bool
	green   *color.Color
	red     *color.Color
	yellow  *color.Color
	cyan    *color.Color
	bold    *color.Color
}

func newProgressDisplay(verbose bool) *progressDisplay {
	return &progressDisplay{
		verbose: verbose,
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

func (d *progressDisplay) handleProgress(event harness.ProgressEvent) {
	switch event.Type {
	case harness.EventRunStart:
		d.bold.Println("\n=== Starting Scenarios ===")

	case harness.EventScenarioStart:
		fmt.Println()
		d.cyan.Printf("Scenario: %s\n", scenarioNameFromEvent(event))

	case harness.EventScenarioRunning:
		fmt.Printf("  → Running agent...\n")

	case harness.EventScenarioEvaluating:
		if d.verbose {
			fmt.Printf("  → Evaluating expectations...\n")
		}

	case harness.EventScenarioComplete:
		result := event.Scenario
		if result.Passed {
			d.green.Printf("  ✓ Scenario passed\n")
		} else {
			d.red.Printf("  ✗ Scenario failed\n")
			if reason := results.FailureReason(result); reason != "" {
				fmt.Printf("    Reason: %s\n", reason)
			}
		}

	case harness.EventScenarioError:
		d.red.Printf("  ✗ Scenario did not run\n")
		if event.Scenario != nil && event.Scenario.Error != "" {
			fmt.Printf("    Error: %s\n", event.Scenario.Error)
		}

	case harness.EventRunComplete:
		fmt.Println()
		d.bold.Println("=== Run Complete ===")
	}
}

func scenarioNameFromEvent(event harness.ProgressEvent) string {
	if event.Scenario != nil {
		return event.Scenario.ScenarioName
	}
	// Start events carry the name only in the message text.
	const prefix = "Starting scenario: "
	if strings.HasPrefix(event.Message, prefix) {
		return strings.TrimPrefix(event.Message, prefix)
	}
	return event.Message
}

func displayResults(suite *harness.SuiteResult, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(suite)

	case "text":
		return displayTextResults(suite)

	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func displayTextResults(suite *harness.SuiteResult) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	bold := color.New(color.Bold)

	fmt.Println()
	bold.Println("=== Results Summary ===")
	fmt.Println()

	for _, result := range suite.Results {
		fmt.Printf("Scenario: %s\n", result.ScenarioName)
		fmt.Printf("  Agent: %s\n", result.AgentType)

		if result.Passed {
			green.Printf("  Status: PASSED\n")
		} else if result.Error != "" {
			red.Printf("  Status: FAILED (%s)\n", result.Error)
		} else {
			red.Printf("  Status: FAILED\n")
		}

		passed, soft, total := countAssertions(result)
		switch {
		case total == 0:
		case passed == total:
			green.Printf("  Assertions: %d/%d passed\n", passed, total)
		case passed+soft == total:
			yellow.Printf("  Assertions: %d/%d passed (%d soft)\n", passed, total, soft)
		default:
			yellow.Printf("  Assertions: %d/%d passed\n", passed, total)
			for _, a := range result.Assertions {
				if !a.Passed && !a.SoftCheck {
					fmt.Printf("    ✗ %s: %s\n", a.Name, a.Message)
				}
			}
		}
		fmt.Println()
	}

	stats := suite.Stats
	bold.Printf("Total: %d scenarios, %d passed, %d failed\n", stats.Total, stats.Passed, stats.Failed)
	fmt.Printf("Tokens: %d in / %d out, avg duration %dms\n",
		stats.TotalInputTokens, stats.TotalOutputTokens, stats.AvgDurationMs)

	if stats.Failed == 0 {
		green.Println("\n🎉 All scenarios passed!")
	} else {
		red.Printf("\n❌ %d scenario(s) failed\n", stats.Failed)
	}
	return nil
}

func countAssertions(result *harness.TestResult) (passed, soft, total int) {
	for _, a := range result.Assertions {
		total++
		if a.Passed {
			passed++
		} else if a.SoftCheck {
			soft++
		}
	}
	return passed, soft, total
}
