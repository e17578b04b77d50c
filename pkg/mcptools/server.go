// Package mcptools exposes the tracked video-editing toolset over the Model
// Context Protocol, so external MCP-speaking agents can run against the same
// fixture-backed store the builtin runtime uses.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/clipcheck/clipcheck/pkg/toolset"
)

type Server struct {
	name   string
	server *mcp.Server

	listener net.Listener
	httpSrv  *http.Server
	cancel   context.CancelFunc
	eg       *errgroup.Group
}

// NewServer builds an MCP server serving the given tools. Handlers are
// expected to already be tracker-wrapped when call recording is wanted.
func NewServer(name string, tools []toolset.Tool) *Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    name,
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			HasTools: len(tools) > 0,
		},
	)

	for _, tool := range tools {
		registerTool(server, tool)
	}
	return &Server{name: name, server: server}
}

func registerTool(server *mcp.Server, tool toolset.Tool) {
	mcpTool := &mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schemaMap(tool),
	}

	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := parseArguments(req.Params.Arguments)

		result, err := tool.Handler(ctx, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return textResult(string(encoded)), nil
	}

	server.AddTool(mcpTool, handler)
}

// ServeStdio runs the server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Start serves MCP over streamable HTTP on addr. Non-blocking; call Close
// to shut down. An empty addr picks a random local port.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	s.httpSrv = &http.Server{Handler: mux}

	ctx, s.cancel = context.WithCancel(ctx)
	s.eg, ctx = errgroup.WithContext(ctx)
	s.eg.Go(func() error {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	s.eg.Go(func() error {
		<-ctx.Done()
		return s.httpSrv.Shutdown(context.Background())
	})

	return s.URL(), nil
}

func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s/mcp", s.listener.Addr().String())
}

func (s *Server) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	return s.eg.Wait()
}

func schemaMap(tool toolset.Tool) map[string]any {
	if tool.InputSchema == nil {
		return map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

func parseArguments(args any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	if m, ok := args.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
