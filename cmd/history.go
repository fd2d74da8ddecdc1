// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/observability"
	"github.com/xkilldash9x/uiforge/internal/reporting"
	"github.com/xkilldash9x/uiforge/internal/store"
)

// historyStore is the read side of the run store.
type historyStore interface {
	ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error)
	ScenarioResults(ctx context.Context, runID string) ([]schemas.ScenarioRecord, error)
}

// storeProvider creates the run store. Tests inject a mock instead of a live
// database connection.
type storeProvider interface {
	// Create returns the store and a cleanup function releasing its resources.
	Create(ctx context.Context, cfg config.Interface) (historyStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (historyStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (UIFORGE_DATABASE_URL)")
	}

	runStore, pool, err := store.Open(ctx, cfg.Database().URL, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed (via history cleanup).")
	}
	return runStore, cleanup, nil
}

// newHistoryCmd creates the `history` command.
func newHistoryCmd(provider storeProvider) *cobra.Command {
	var (
		runID  string
		limit  int
		format string
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generation runs, or the scenarios of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, observability.GetLogger(), cfg, cmd.OutOrStdout(), provider, runID, limit, format)
		},
	}
	historyCmd.Flags().StringVar(&runID, "run-id", "", "Show the scenario results of this run")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Output format: text, markdown or json")
	return historyCmd
}

// runHistory contains the testable core of the history command.
func runHistory(ctx context.Context, logger *zap.Logger, cfg config.Interface, w io.Writer, provider storeProvider, runID string, limit int, format string) error {
	switch format {
	case reporting.FormatText, reporting.FormatMarkdown, reporting.FormatJSON:
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	runStore, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	var (
		doc      any
		markdown string
	)
	if runID != "" {
		scenarios, err := runStore.ScenarioResults(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", runID, err)
		}
		if len(scenarios) == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		doc, markdown = scenarios, reporting.RunMarkdown(runID, scenarios)
	} else {
		runs, err := runStore.ListRuns(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		logger.Debug("Loaded run history.", zap.Int("runs", len(runs)))
		doc, markdown = runs, reporting.HistoryMarkdown(runs)
	}

	switch format {
	case reporting.FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case reporting.FormatText:
		render, err := reporting.NewTerminalRenderer(reporting.StyleAuto)
		if err != nil {
			return err
		}
		if markdown, err = render(markdown); err != nil {
			return fmt.Errorf("failed to render history: %w", err)
		}
	}
	_, err = io.WriteString(w, markdown)
	return err
}
