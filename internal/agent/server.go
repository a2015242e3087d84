package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mentorctl/internal/harness"
	"mentorctl/internal/model"
	"mentorctl/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const subsystem = "MCP"

// Server serves the harness tools over MCP.
type Server struct {
	orchestrator *harness.Orchestrator
	catalog      *harness.Catalog
	defaults     model.TestConfig
	mcp          *server.MCPServer
}

// NewServer registers the tools on a new MCP server.
func NewServer(orchestrator *harness.Orchestrator, catalog *harness.Catalog, defaults model.TestConfig, version string) *Server {
	s := &Server{
		orchestrator: orchestrator,
		catalog:      catalog,
		defaults:     defaults,
	}
	s.mcp = server.NewMCPServer(
		"mentorctl",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcp.AddTools(s.tools()...)
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	logging.Info(subsystem, "Serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// ServeSSE serves on host:port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, host string, port int) error {
	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	sse := server.NewSSEServer(
		s.mcp,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logging.Info(subsystem, "Serving MCP over SSE at %s/sse", baseURL)
		if err := sse.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sse.Shutdown(shutdownCtx)
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_suites",
				mcp.WithDescription("List the test suites that can be run"),
			),
			Handler: s.handleListSuites,
		},
		{
			Tool: mcp.NewTool("run_suite",
				mcp.WithDescription("Run a suite against the live backend. The backend is backed up before and restored after the run unless disabled."),
				mcp.WithString("suite",
					mcp.Required(),
					mcp.Description("Suite name from list_suites"),
				),
				mcp.WithBoolean("wait",
					mcp.Description("Block until the run finishes (default true)"),
				),
				mcp.WithBoolean("enable_backup",
					mcp.Description("Capture a backup before the first test"),
				),
				mcp.WithBoolean("enable_restore",
					mcp.Description("Restore the backup after the last test"),
				),
				mcp.WithString("delay_between_tests",
					mcp.Description("Pause between tests, e.g. 500ms"),
				),
				mcp.WithNumber("max_retries",
					mcp.Description("Retries per test for transient backend errors"),
				),
				mcp.WithBoolean("tolerate_test_errors",
					mcp.Description("Keep the suite completed when only tests failed"),
				),
			),
			Handler: s.handleRunSuite,
		},
		{
			Tool: mcp.NewTool("get_run",
				mcp.WithDescription("Get the state of a run. Without an id the active or most recent run is returned."),
				mcp.WithString("id",
					mcp.Description("Run ID"),
				),
			),
			Handler: s.handleGetRun,
		},
		{
			Tool: mcp.NewTool("list_runs",
				mcp.WithDescription("List remembered runs, newest first"),
			),
			Handler: s.handleListRuns,
		},
		{
			Tool: mcp.NewTool("cancel_run",
				mcp.WithDescription("Cancel a run. The current test finishes and the backend is restored."),
				mcp.WithString("id",
					mcp.Required(),
					mcp.Description("Run ID"),
				),
			),
			Handler: s.handleCancelRun,
		},
	}
}
