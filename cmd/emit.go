package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/codegen"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/observability"
)

// newEmitCmd creates the `emit` command. It turns a validated plan into a
// test project without contacting the model or the browser.
func newEmitCmd() *cobra.Command {
	var planPath, outputDir, suiteName string

	emitCmd := &cobra.Command{
		Use:   "emit --plan <validated-plan.json>",
		Short: "Generate the Jest + Puppeteer project from a validated plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			out := cfg.Output()
			if outputDir != "" {
				out.Dir = outputDir
			}
			if suiteName != "" {
				out.SuiteName = suiteName
			}
			return runEmit(cmd, afero.NewOsFs(), out, planPath, observability.GetLogger())
		},
	}
	emitCmd.Flags().StringVar(&planPath, "plan", "", "Validated plan file, .json or .yaml (required)")
	_ = emitCmd.MarkFlagRequired("plan")
	emitCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the generated suite (default output.dir)")
	emitCmd.Flags().StringVar(&suiteName, "suite-name", "", "Name of the generated test suite (default output.suite_name)")
	return emitCmd
}

func runEmit(cmd *cobra.Command, fs afero.Fs, out config.OutputConfig, planPath string, logger *zap.Logger) error {
	plan, err := schemas.LoadValidatedPlan(fs, planPath)
	if err != nil {
		return err
	}
	manifest, err := codegen.NewEmitter(logger, fs, out).Emit(plan)
	if err != nil {
		return fmt.Errorf("code emission failed: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Wrote %d files to %s:\n", len(manifest.Files), manifest.Dir)
	for _, f := range manifest.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}
