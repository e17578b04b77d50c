package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clipcheck/clipcheck/pkg/agentrun"
	"github.com/clipcheck/clipcheck/pkg/harness"
	"github.com/clipcheck/clipcheck/pkg/results"
	"github.com/clipcheck/clipcheck/pkg/store"
)

const (
	defaultMaxMessages   = 40
	defaultMaxLineLength = 100
)

// NewViewCmd creates the view command for rendering saved results.
func NewViewCmd() *cobra.Command {
	var (
		scenarioFilter string
		showTranscript = true
		maxMessages    = defaultMaxMessages
		maxLineLength  = defaultMaxLineLength
	)

	cmd := &cobra.Command{
		Use:   "view <results-file>",
		Short: "Pretty-print scenario results from a JSON file",
		Long: `Render the JSON output produced by "clipcheck run" in a human-friendly format.

Examples:
  clipcheck view clipcheck-smoke-out.json
  clipcheck view --scenario move-block clipcheck-smoke-out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := results.Load(args[0])
			if err != nil {
				return err
			}

			filtered := results.Filter(suite.Results, scenarioFilter)
			if len(filtered) == 0 {
				if scenarioFilter == "" {
					return errors.New("no scenarios found in results")
				}
				return fmt.Errorf("no scenarios matched filter %q", scenarioFilter)
			}

			for idx, result := range filtered {
				if idx > 0 {
					fmt.Println()
				}
				printTestResult(result, viewOptions{
					showTranscript: showTranscript,
					maxMessages:    maxMessages,
					maxLineLength:  maxLineLength,
				})
			}

			fmt.Println()
			printStats(results.CalculateStats(args[0], filtered))
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioFilter, "scenario", "", "Only show results for scenarios whose name contains this value")
	cmd.Flags().BoolVar(&showTranscript, "transcript", showTranscript, "Include the agent message transcript")
	cmd.Flags().IntVar(&maxMessages, "max-messages", maxMessages, "Maximum number of transcript messages to display (0 = unlimited)")
	cmd.Flags().IntVar(&maxLineLength, "max-line-length", maxLineLength, "Maximum characters per line when formatting transcript output")

	return cmd
}

type viewOptions struct {
	showTranscript bool
	maxMessages    int
	maxLineLength  int
}

func printTestResult(result *harness.TestResult, opts viewOptions) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	bold.Printf("Scenario: %s\n", result.ScenarioName)
	fmt.Printf("  Agent: %s\n", result.AgentType)
	if result.Passed {
		green.Println("  Status: PASSED")
	} else {
		red.Println("  Status: FAILED")
	}
	if result.Error != "" {
		red.Printf("  Error: %s\n", result.Error)
	}
	if result.Prompt != nil {
		fmt.Printf("  Prompt source: %s\n", result.Prompt.Source)
	}
	fmt.Printf("  Metrics: %d in / %d out tokens, %d turns, %dms\n",
		result.Metrics.InputTokens, result.Metrics.OutputTokens,
		result.Metrics.Turns, result.DurationMs)

	if len(result.Assertions) > 0 {
		fmt.Println("  Assertions:")
		for _, a := range result.Assertions {
			switch {
			case a.Passed:
				green.Printf("    ✓ %s\n", a.Name)
			case a.SoftCheck:
				yellow.Printf("    ~ %s (soft): %s\n", a.Name, a.Message)
			default:
				red.Printf("    ✗ %s: %s\n", a.Name, a.Message)
			}
		}
	}

	if len(result.ToolCalls) > 0 {
		fmt.Println("  Tool calls:")
		for _, call := range result.ToolCalls {
			line := fmt.Sprintf("    %d. %s", call.Order+1, call.ToolName)
			if call.Error != "" {
				line += fmt.Sprintf(" (error: %s)", call.Error)
			}
			fmt.Println(truncateLine(line, opts.maxLineLength))
		}
	}

	printDiffSummary(result.Diff)

	if opts.showTranscript && len(result.Messages) > 0 {
		fmt.Println("  Transcript:")
		messages := result.Messages
		if opts.maxMessages > 0 && len(messages) > opts.maxMessages {
			fmt.Printf("    (showing last %d of %d messages)\n", opts.maxMessages, len(messages))
			messages = messages[len(messages)-opts.maxMessages:]
		}
		for _, msg := range messages {
			printMessage(msg, opts.maxLineLength)
		}
	}
}

func printDiffSummary(diff *store.Diff) {
	if diff == nil {
		return
	}

	printCollection := func(name string, c store.CollectionDiff) {
		if c.Empty() {
			return
		}
		fmt.Printf("    %s: +%d ~%d -%d\n", name, len(c.Added), len(c.Modified), len(c.Deleted))
	}

	if diff.Blocks.Empty() && diff.Timelines.Empty() && diff.MediaAssets.Empty() {
		return
	}
	fmt.Println("  State changes:")
	printCollection("blocks", diff.Blocks)
	printCollection("timelines", diff.Timelines)
	printCollection("media assets", diff.MediaAssets)
}

func printMessage(msg agentrun.Message, maxLineLength int) {
	for _, block := range msg.Content {
		switch block.Type {
		case agentrun.BlockTypeText:
			for _, line := range strings.Split(block.Text, "\n") {
				fmt.Println(truncateLine(fmt.Sprintf("    [%s] %s", msg.Role, line), maxLineLength))
			}
		case agentrun.BlockTypeToolUse:
			fmt.Println(truncateLine(fmt.Sprintf("    [%s] → %s(%v)", msg.Role, block.ToolName, block.Input), maxLineLength))
		case agentrun.BlockTypeToolResult:
			fmt.Println(truncateLine(fmt.Sprintf("    [%s] ← %s: %v", msg.Role, block.ToolName, block.Output), maxLineLength))
		case agentrun.BlockTypeThinking:
			fmt.Println(truncateLine(fmt.Sprintf("    [%s] (thinking) %s", msg.Role, block.Text), maxLineLength))
		}
	}
}

func printStats(stats results.Stats) {
	bold := color.New(color.Bold)
	bold.Println("=== Stats ===")
	fmt.Printf("Scenarios: %d/%d passed (%.0f%%)\n",
		stats.ScenariosPassed, stats.ScenariosTotal, stats.ScenarioPassRate*100)
	fmt.Printf("Assertions: %d/%d passed (%.0f%%)\n",
		stats.AssertionsPassed, stats.AssertionsTotal, stats.AssertionPassRate*100)
	fmt.Printf("Tokens: %d in / %d out, avg duration %dms\n",
		stats.TotalInputTokens, stats.TotalOutputTokens, stats.AvgDurationMs)
}

func truncateLine(line string, max int) string {
	if max <= 0 || len(line) <= max {
		return line
	}
	return line[:max-1] + "…"
}
