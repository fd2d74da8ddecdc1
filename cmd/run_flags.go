package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/reporting"
)

// runFlags are the per-invocation inputs shared by the pipeline commands.
type runFlags struct {
	requirement   string
	projectPath   string
	baseURL       string
	outputDir     string
	explore       bool
	startServer   bool
	engine        string
	headless      bool
	maxIterations int
	maxToolCalls  int
	parallelism   int
	reportFormat  string
	reportPath    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.requirement, "requirement", "r", "", "Requirement to test, in plain language (may also be given as arguments)")
	flags.StringVarP(&f.projectPath, "project", "p", ".", "Path of the web project to analyze")
	flags.StringVarP(&f.baseURL, "base-url", "u", "", "URL of the running application (default validation.base_url)")
	flags.StringVarP(&f.outputDir, "output", "o", "", "Directory for the generated suite (default output.dir)")
	flags.BoolVar(&f.explore, "explore", false, "Let the model browse the running application before planning")
	flags.BoolVar(&f.startServer, "start-server", false, "Start the project's dev server when no --base-url is given (default devserver.auto_start)")
	flags.StringVar(&f.engine, "engine", "", "Browser engine: chromedp or static (overrides config)")
	flags.BoolVar(&f.headless, "headless", true, "Run the browser headless (overrides config)")
	flags.IntVar(&f.maxIterations, "max-iterations", 0, "Validation attempts per scenario (overrides config)")
	flags.IntVar(&f.maxToolCalls, "max-tool-calls", 0, "Tool call budget of each model loop (overrides config)")
	flags.IntVarP(&f.parallelism, "parallelism", "j", 0, "Scenarios validated concurrently (overrides config)")
}

func (f *runFlags) registerReport(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.reportFormat, "report-format", reporting.FormatText, "Report format: text, markdown or json")
	flags.StringVar(&f.reportPath, "report", "", "Report file. If unset, the report is printed to stdout.")
}

// apply folds the flags into cfg. Only flags set explicitly override the
// configuration file.
func (f *runFlags) apply(cmd *cobra.Command, cfg config.Interface, args []string, logger *zap.Logger) error {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.SetBrowserEngine(f.engine)
	}
	if flags.Changed("headless") {
		cfg.SetBrowserHeadless(f.headless)
	}
	if flags.Changed("max-iterations") {
		if f.maxIterations < 1 {
			logger.Warn("Invalid --max-iterations value, using 1.", zap.Int("value", f.maxIterations))
			f.maxIterations = 1
		}
		cfg.SetValidationMaxIterations(f.maxIterations)
	}
	if flags.Changed("max-tool-calls") && f.maxToolCalls > 0 {
		cfg.SetValidationMaxToolCalls(f.maxToolCalls)
	}
	if flags.Changed("parallelism") && f.parallelism > 0 {
		cfg.SetValidationParallelism(f.parallelism)
	}

	requirement := strings.TrimSpace(f.requirement)
	if requirement == "" {
		requirement = strings.TrimSpace(strings.Join(args, " "))
	}
	baseURL := f.baseURL
	startServer := baseURL == "" && f.wantsDevServer(cmd, cfg)
	if baseURL == "" && !startServer {
		baseURL = cfg.Validation().BaseURL
	}

	run := config.RunConfig{
		Requirement:    requirement,
		ProjectPath:    f.projectPath,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		OutputDir:      f.outputDir,
		Explore:        f.explore,
		StartDevServer: startServer,
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run inputs: %w", err)
	}
	cfg.SetRunConfig(run)
	return nil
}

// wantsDevServer reports whether the dev server should be started for a run
// without an explicit base URL.
func (f *runFlags) wantsDevServer(cmd *cobra.Command, cfg config.Interface) bool {
	if cmd.Flags().Changed("start-server") {
		return f.startServer
	}
	return cfg.DevServer().AutoStart
}
