package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipcheck/clipcheck/pkg/fixture"
	"github.com/clipcheck/clipcheck/pkg/mcptools"
	"github.com/clipcheck/clipcheck/pkg/toolset"
	"github.com/clipcheck/clipcheck/pkg/tracker"
)

// NewServeToolsCmd creates the serve-tools command, which exposes the
// fixture-backed toolset over MCP for external agents.
func NewServeToolsCmd() *cobra.Command {
	var (
		fixtureDB string
		projectID string
		chapterID string
		agentType string
		addr      string
		stdio     bool
	)

	cmd := &cobra.Command{
		Use:   "serve-tools",
		Short: "Serve the video-editing toolset over MCP",
		Long: `Load fixtures for a project into an in-memory store and expose the
editing tools over the Model Context Protocol, so any MCP-speaking agent can
be pointed at the same data a scenario run would use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loader := fixture.NewSQLiteLoader(fixtureDB)
			st, err := loader.Load(ctx, projectID, chapterID)
			if err != nil {
				return fmt.Errorf("failed to load fixtures: %w", err)
			}

			trk := tracker.New()
			tools, err := toolset.ForAgentType(agentType, st)
			if err != nil {
				return err
			}
			for i := range tools {
				tools[i].Handler = trk.Wrap(tools[i].Name, tools[i].Handler)
			}

			server := mcptools.NewServer("clipcheck-tools", tools)

			if stdio {
				return server.ServeStdio(ctx)
			}

			url, err := server.Start(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Printf("Serving %d tools at %s\n", len(tools), url)

			<-ctx.Done()
			return server.Close()
		},
	}

	cmd.Flags().StringVar(&fixtureDB, "fixtures", "", "SQLite fixture database path")
	cmd.Flags().StringVar(&projectID, "project", "", "Project id to load")
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Chapter id to load (default: all chapters)")
	cmd.Flags().StringVar(&agentType, "agent-type", toolset.AgentTypeEditor, "Agent type whose toolset to serve")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8321", "Listen address for the HTTP transport")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve over stdio instead of HTTP")
	_ = cmd.MarkFlagRequired("fixtures")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
