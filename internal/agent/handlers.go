package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mentorctl/internal/harness"
	"mentorctl/internal/model"
	"mentorctl/internal/reporting"

	"github.com/mark3labs/mcp-go/mcp"
)

type suiteInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tests       []string `json:"tests"`
}

type runResult struct {
	Summary string          `json:"summary"`
	Run     model.TestSuite `json:"run"`
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListSuites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defs := s.catalog.Definitions()
	if len(defs) == 0 {
		return mcp.NewToolResultText("No suites available"), nil
	}
	out := make([]suiteInfo, 0, len(defs))
	for _, d := range defs {
		info := suiteInfo{Name: d.Name, Description: d.Description}
		for _, t := range d.Tests {
			info.Tests = append(info.Tests, t.Name)
		}
		out = append(out, info)
	}
	return jsonResult(out)
}

// overridesFromArgs maps tool arguments onto a partial config. JSON numbers
// arrive as float64.
func overridesFromArgs(args map[string]any) (model.ConfigOverrides, error) {
	var o model.ConfigOverrides
	if v, ok := args["enable_backup"].(bool); ok {
		o.EnableBackup = &v
	}
	if v, ok := args["enable_restore"].(bool); ok {
		o.EnableRestore = &v
	}
	if v, ok := args["tolerate_test_errors"].(bool); ok {
		o.TolerateTestErrors = &v
	}
	if v, ok := args["delay_between_tests"].(string); ok {
		o.DelayBetweenTests = v
	}
	if v, ok := args["max_retries"].(float64); ok {
		if v != float64(int(v)) {
			return o, fmt.Errorf("max_retries must be a whole number, got %v", v)
		}
		n := int(v)
		o.MaxRetries = &n
	}
	return o, nil
}

func (s *Server) handleRunSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("suite")
	if err != nil {
		return mcp.NewToolResultError("suite parameter is required"), nil
	}
	args := request.GetArguments()

	suite, ok := s.catalog.Suite(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown suite '%s'", name)), nil
	}
	overrides, err := overridesFromArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := overrides.Apply(s.defaults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid config: %v", err)), nil
	}

	h, err := s.orchestrator.Start(ctx, suite, cfg)
	if err != nil {
		if errors.Is(err, harness.ErrRunInProgress) {
			if active := s.orchestrator.Active(); active != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%v (run %s)", err, active.ID)), nil
			}
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	wait := true
	if v, ok := args["wait"].(bool); ok {
		wait = v
	}
	if !wait {
		return jsonResult(runResult{Summary: "started " + h.ID, Run: h.Snapshot()})
	}

	final, err := h.Wait(ctx)
	if err != nil {
		// The client went away; the run keeps going and can be fetched later.
		return mcp.NewToolResultError(fmt.Sprintf("Stopped waiting for run %s: %v", h.ID, err)), nil
	}
	return jsonResult(runResult{Summary: reporting.SummaryText(final), Run: final})
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, _ := args["id"].(string)

	if id == "" {
		if active := s.orchestrator.Active(); active != nil {
			snap := active.Snapshot()
			return jsonResult(runResult{Summary: reporting.SummaryText(snap), Run: snap})
		}
		history := s.orchestrator.History()
		if len(history) == 0 {
			return mcp.NewToolResultText("No runs yet"), nil
		}
		return jsonResult(runResult{Summary: reporting.SummaryText(history[0]), Run: history[0]})
	}

	h, err := s.orchestrator.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap := h.Snapshot()
	return jsonResult(runResult{Summary: reporting.SummaryText(snap), Run: snap})
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	history := s.orchestrator.History()
	if len(history) == 0 {
		return mcp.NewToolResultText("No runs yet"), nil
	}
	summaries := make([]string, 0, len(history))
	for _, run := range history {
		summaries = append(summaries, reporting.SummaryText(run))
	}
	return jsonResult(summaries)
}

func (s *Server) handleCancelRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	h, err := s.orchestrator.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if h.Snapshot().Status.Terminal() {
		return mcp.NewToolResultError(fmt.Sprintf("Run %s already finished", id)), nil
	}
	h.Cancel()
	return mcp.NewToolResultText(fmt.Sprintf("Cancellation requested for run %s. The current test finishes before the backend is restored.", id)), nil
}
