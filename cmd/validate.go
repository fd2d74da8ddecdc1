package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/observability"
	"github.com/xkilldash9x/uiforge/internal/orchestrator"
	"github.com/xkilldash9x/uiforge/internal/service"
)

// newValidateCmd creates the `validate` command, which validates a stored
// plan in the browser and emits the suite for it.
func newValidateCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		flags    runFlags
		planPath string
	)

	validateCmd := &cobra.Command{
		Use:   "validate --plan <file>",
		Short: "Validate the scenarios of a plan file against the running application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			// The refiner needs the requirement; default to the plan's own.
			if flags.requirement == "" {
				plan, err := schemas.LoadPlan(afero.NewOsFs(), planPath)
				if err != nil {
					return err
				}
				flags.requirement = plan.Requirement
				if !cmd.Flags().Changed("base-url") && plan.BaseURL != "" && !flags.wantsDevServer(cmd, cfg) {
					flags.baseURL = plan.BaseURL
				}
			}
			if err := flags.apply(cmd, cfg, nil, logger); err != nil {
				return err
			}
			run := cfg.Run()
			run.PlanPath = planPath
			cfg.SetRunConfig(run)
			return runValidate(ctx, cmd, cfg, factory, flags, logger)
		},
	}
	flags.register(validateCmd)
	flags.registerReport(validateCmd)
	validateCmd.Flags().StringVar(&planPath, "plan", "", "Plan file to validate, .json or .yaml (required)")
	_ = validateCmd.MarkFlagRequired("plan")
	return validateCmd
}

func runValidate(ctx context.Context, cmd *cobra.Command, cfg config.Interface, factory service.ComponentFactory, flags runFlags, logger *zap.Logger) error {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	res, err := components.Orchestrator.ValidatePlanFile(ctx, cfg.Run().PlanPath)
	if err != nil {
		if orchestrator.IsCanceled(err) {
			logger.Warn("Validation aborted.")
			return context.Canceled
		}
		return err
	}
	return printOutcome(cmd, res, flags)
}
