package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorctl/internal/harness"
	"mentorctl/internal/model"
	"mentorctl/internal/reporting"
	"mentorctl/internal/tui"
	"mentorctl/pkg/logging"

	"github.com/spf13/cobra"
)

// errSuiteFailed is returned when a suite ends in the error state.
var errSuiteFailed = errors.New("suite failed")

type runOptions struct {
	backup             bool
	restore            bool
	delay              time.Duration
	maxRetries         int
	tolerateTestErrors bool
	useTUI             bool
	verbose            bool
	reportDir          string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run SUITE",
		Short: "Run a suite against the configured backend",
		Long: `Runs the named suite once. The backend is backed up before the first
test and restored after the last one unless --backup=false or --restore=false
is given.

Ctrl+C (or c in the TUI) cancels the run: the test in flight finishes, the
remaining tests are skipped and the backend is still restored.

The command exits non-zero when the suite ends in error. With
--tolerate-test-errors only capture or restore failures do that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, args[0], opts)
		},
	}

	defaults := model.DefaultTestConfig()
	cmd.Flags().BoolVar(&opts.backup, "backup", defaults.EnableBackup, "Capture a backup before the first test")
	cmd.Flags().BoolVar(&opts.restore, "restore", defaults.EnableRestore, "Restore the backup after the last test")
	cmd.Flags().DurationVar(&opts.delay, "delay", defaults.DelayBetweenTests, "Pause between tests")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", defaults.MaxRetries, "Retries per test for transient backend errors")
	cmd.Flags().BoolVar(&opts.tolerateTestErrors, "tolerate-test-errors", false, "Keep the suite completed when only tests failed")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Show an interactive view of the run")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print a line when each test starts")
	cmd.Flags().StringVar(&opts.reportDir, "report", "", "Write a JSON report of the run into this directory")
	return cmd
}

// applyFlags overrides cfg with the flags the user set explicitly.
func (o *runOptions) applyFlags(cmd *cobra.Command, cfg model.TestConfig) model.TestConfig {
	flags := cmd.Flags()
	if flags.Changed("backup") {
		cfg.EnableBackup = o.backup
	}
	if flags.Changed("restore") {
		cfg.EnableRestore = o.restore
	}
	if flags.Changed("delay") {
		cfg.DelayBetweenTests = o.delay
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = o.maxRetries
	}
	if flags.Changed("tolerate-test-errors") {
		cfg.TolerateTestErrors = o.tolerateTestErrors
	}
	return cfg
}

func runSuite(cmd *cobra.Command, name string, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	suite, ok := services.Catalog.Suite(name)
	if !ok {
		return fmt.Errorf("unknown suite %q (see 'mentorctl suites')", name)
	}
	cfg := opts.applyFlags(cmd, services.Config.Run)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}

	var final model.TestSuite
	if opts.useTUI {
		final, err = runWithTUI(ctx, services.Orchestrator, suite, cfg)
	} else {
		final, err = runWithConsole(ctx, cmd, services.Orchestrator, suite, cfg, opts.verbose)
	}
	if err != nil && !errors.Is(err, harness.ErrRunCancelled) {
		return err
	}

	reporting.PrintSummary(cmd.OutOrStdout(), final)
	if opts.reportDir != "" {
		path, err := reporting.WriteJSONReport(opts.reportDir, final)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}

	if f := final.Fatal; f != nil && f.Kind == model.FatalRestore {
		logging.Warn("Run", "Backend was not fully restored; collections %v still hold test data", f.Pending)
	}
	if final.Status == model.SuiteError {
		return fmt.Errorf("%w: %s", errSuiteFailed, reporting.SummaryText(final))
	}
	return nil
}

func runWithConsole(ctx context.Context, cmd *cobra.Command, orchestrator *harness.Orchestrator, suite harness.Suite, cfg model.TestConfig, verbose bool) (model.TestSuite, error) {
	reporter := reporting.NewConsoleReporter(cmd.OutOrStdout(), verbose)
	// Only one run can be active, so every event on the bus belongs to ours.
	sub := reporter.Attach(orchestrator.EventBus(), nil)
	defer orchestrator.EventBus().Unsubscribe(sub)

	stop := context.AfterFunc(ctx, func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nCancelling; waiting for the current test and the restore to finish...")
	})
	defer stop()

	return orchestrator.Run(ctx, suite, cfg)
}

func runWithTUI(ctx context.Context, orchestrator *harness.Orchestrator, suite harness.Suite, cfg model.TestConfig) (model.TestSuite, error) {
	level, err := resolveLogLevel()
	if err != nil {
		return model.TestSuite{}, err
	}
	logs := logging.InitForTUI(level)
	defer logging.CloseTUIChannel()

	h, err := orchestrator.Start(ctx, suite, cfg)
	if err != nil {
		return model.TestSuite{}, err
	}
	go func() {
		select {
		case <-ctx.Done():
			h.Cancel()
		case <-h.Done():
		}
	}()
	return tui.RunView(h, logs)
}
