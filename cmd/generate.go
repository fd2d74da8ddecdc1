package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/observability"
	"github.com/xkilldash9x/uiforge/internal/orchestrator"
	"github.com/xkilldash9x/uiforge/internal/reporting"
	"github.com/xkilldash9x/uiforge/internal/service"
)

// newGenerateCmd creates the `generate` command, the full pipeline.
func newGenerateCmd(factory service.ComponentFactory) *cobra.Command {
	var flags runFlags

	generateCmd := &cobra.Command{
		Use:   "generate [requirement]",
		Short: "Analyze a project, validate test scenarios in a browser and emit a test suite",
		Example: `  uiforge generate -p ./webapp -u http://localhost:3000 "users can log in and see their dashboard"
  uiforge generate -r "checkout with a saved card" --explore --parallelism 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg, args, logger); err != nil {
				return err
			}
			return runGenerate(ctx, cmd, cfg, factory, flags, logger)
		},
	}
	flags.register(generateCmd)
	flags.registerReport(generateCmd)
	return generateCmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, cfg config.Interface, factory service.ComponentFactory, flags runFlags, logger *zap.Logger) error {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	res, err := components.Orchestrator.Generate(ctx)
	if err != nil {
		if orchestrator.IsCanceled(err) {
			logger.Warn("Generation aborted.")
			return context.Canceled
		}
		return err
	}
	return printOutcome(cmd, res, flags)
}

// printOutcome writes the run report and points at the generated suite.
func printOutcome(cmd *cobra.Command, res *orchestrator.Result, flags runFlags) error {
	if res.Summary == nil {
		return errors.New("run finished without a summary")
	}
	if err := writeReport(res.Summary, flags.reportFormat, flags.reportPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s: %d of %d scenarios validated.\n",
		res.RunID, res.Summary.Summary.Validated, res.Summary.Summary.Total)
	if res.Manifest != nil {
		fmt.Fprintf(out, "Test suite written to %s\n", res.Manifest.Dir)
		fmt.Fprintf(out, "Run it with: cd %s && npm install && npm test\n", res.Manifest.Dir)
	}
	return nil
}

func writeReport(summary *reporting.ExecutionSummary, format, path string) error {
	reporter, err := reporting.New(afero.NewOsFs(), format, path)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(summary); err != nil {
		reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return reporter.Close()
}
