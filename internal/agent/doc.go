// Package agent exposes suite runs to MCP clients such as coding agents.
//
// The tools mirror the HTTP API: list_suites, run_suite, get_run, list_runs
// and cancel_run. Results are returned as indented JSON text so an agent can
// read test diagnostics directly.
//
// Example usage:
//
//	srv := agent.NewServer(services.Orchestrator, services.Catalog, cfg.Run, version)
//	if err := srv.ServeStdio(); err != nil {
//	    log.Fatal(err)
//	}
package agent
