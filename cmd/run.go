// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/browser"
	"github.com/xkilldash9x/kosher-cli/internal/engine"
	"github.com/xkilldash9x/kosher-cli/internal/interpreter"
	"github.com/xkilldash9x/kosher-cli/internal/observability"
	"github.com/xkilldash9x/kosher-cli/internal/parser"
	"github.com/xkilldash9x/kosher-cli/internal/reporting"
	"github.com/xkilldash9x/kosher-cli/internal/runner"
	"github.com/xkilldash9x/kosher-cli/internal/store"
)

const browserShutdownTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	var (
		benchmark int
		tagFilter string
	)

	cmd := &cobra.Command{
		Use:   "run <feature file or directory>...",
		Short: "Interpret and execute Gherkin feature files in a browser",
		Long: `Run parses the given .feature files (directories are searched recursively),
translates each step into a browser action via the configured inference
engine, and executes the scenarios. The process exits non-zero when any
scenario fails or aborts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, args, benchmark, tagFilter)
		},
	}

	cmd.Flags().IntVarP(&benchmark, "benchmark", "b", 0, "run the scenarios N times and report pass-rate statistics")
	cmd.Flags().StringVarP(&tagFilter, "tags", "t", "", "only run scenarios carrying this tag (e.g. @smoke)")
	cmd.Flags().StringP("output", "o", "", "write a JSON report to this path")
	cmd.Flags().StringP("provider", "p", "", "inference engine provider (gemini or ollama)")
	cmd.Flags().StringP("model", "m", "", "inference engine model name")
	cmd.Flags().IntP("concurrency", "j", 0, "number of scenarios executed in parallel")
	cmd.Flags().Bool("headless", true, "run the browser headless")
	cmd.Flags().Bool("no-color", false, "disable colorized console output")

	return cmd
}

func runScenarios(cmd *cobra.Command, args []string, benchmark int, tagFilter string) error {
	cfg := appConfig
	logger := observability.GetLogger()

	scenarios, err := loadScenarios(args, tagFilter)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios found in %s", strings.Join(args, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := engine.NewGatewayFromConfig(cfg.Engine, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize inference engine: %w", err)
	}
	defer gateway.Close()
	interp := interpreter.New(gateway, cfg.Runner, cfg.Engine, logger)

	manager := browser.NewManager(cfg.Browser, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown did not finish cleanly", zap.Error(err))
		}
	}()

	reporter := reporting.NewConsoleReporter(cmd.OutOrStdout(), cfg.Report.Color)
	opts := []runner.Option{runner.WithReporter(reporter)}

	if cfg.Database.URL != "" {
		st, err := store.Connect(ctx, cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to the results database: %w", err)
		}
		defer st.Close()
		opts = append(opts, runner.WithStore(st))
	}

	r := runner.New(interp, manager, cfg.Runner, logger, opts...)

	if benchmark > 0 {
		stats, err := r.RunBenchmark(ctx, scenarios, benchmark)
		if err != nil {
			return err
		}
		reporter.PrintBenchmark(stats)
		return nil
	}

	run, err := r.Run(ctx, scenarios)
	if err != nil {
		return err
	}
	if err := reporter.RunCompleted(run); err != nil {
		return err
	}
	if cfg.Report.Output != "" {
		if err := reporting.WriteJSONReport(cfg.Report.Output, run); err != nil {
			return err
		}
		logger.Info("JSON report written", zap.String("path", cfg.Report.Output))
	}

	if !run.OK() {
		_, failed, aborted := run.Counts()
		return fmt.Errorf("run finished with %d failed and %d aborted scenario(s)", failed, aborted)
	}
	return nil
}

// loadScenarios parses every feature file named by args (directories are
// walked for *.feature) and flattens them into a single scenario list,
// optionally filtered by tag.
func loadScenarios(args []string, tagFilter string) ([]schemas.Scenario, error) {
	paths, err := collectFeatureFiles(args)
	if err != nil {
		return nil, err
	}

	var scenarios []schemas.Scenario
	for _, path := range paths {
		feature, err := parser.ParseFile(path)
		if err != nil {
			return nil, err
		}
		for _, sc := range feature.Scenarios {
			if tagFilter != "" && !hasTag(sc.Tags, tagFilter) {
				continue
			}
			scenarios = append(scenarios, sc)
		}
	}
	return scenarios, nil
}

// collectFeatureFiles resolves files and directories to a sorted, de-duplicated
// list of .feature paths. Naming a non-feature file directly is an error;
// directories simply contribute whatever feature files they contain.
func collectFeatureFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !strings.HasSuffix(arg, ".feature") {
				return nil, fmt.Errorf("%s is not a .feature file", arg)
			}
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, ".feature") {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

func hasTag(tags []string, want string) bool {
	want = "@" + strings.TrimPrefix(want, "@")
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
