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
	"github.com/xkilldash9x/uiforge/internal/service"
)

// newAnalyzeCmd creates the `analyze` command, which runs project analysis
// alone and prints the result.
func newAnalyzeCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		flags   runFlags
		outPath string
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [requirement]",
		Short: "Analyze a web project and print its pages, components and forms",
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
			// Analysis reads files only; no need to start Chrome.
			cfg.SetBrowserEngine("static")
			return runAnalyze(ctx, cmd, cfg, factory, outPath, logger)
		},
	}
	flags.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&outPath, "save", "", "Also save the analysis to this file (.json or .yaml)")
	return analyzeCmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, cfg config.Interface, factory service.ComponentFactory, outPath string, logger *zap.Logger) error {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	analysis, err := components.Orchestrator.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if outPath != "" {
		if err := schemas.WriteDocument(afero.NewOsFs(), outPath, analysis); err != nil {
			return err
		}
		logger.Info("Analysis saved.", zap.String("path", outPath))
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
