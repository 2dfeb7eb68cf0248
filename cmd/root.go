// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/internal/config"
	"github.com/xkilldash9x/kosher-cli/internal/observability"
)

var (
	cfgFile string

	// appConfig is populated by the root PersistentPreRunE and consumed by
	// subcommands. Kept package-level so subcommands stay plain RunE funcs.
	appConfig *config.Config

	// osExit is swapped out in tests.
	osExit = os.Exit
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kosher-cli",
		Short: "Kosher runs plain-language Gherkin scenarios against a real browser.",
		Long: `Kosher interprets Given/When/Then steps with an inference engine,
executes the resulting browser actions, and reports pass/fail per scenario.`,
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Fall back to a basic logger so the error itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "kosher-cli"})
				return err
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded",
				zap.String("version", Version),
				zap.String("engine_provider", string(cfg.Engine.Provider)),
				zap.String("engine_model", cfg.Engine.Model))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.kosher/config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// initializeConfig wires the config file and KOSHER_* environment variables
// into the given viper instance. A missing config file is not an error.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kosher"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("KOSHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the run.
	}

	bindCommandFlags(cmd, v)
	return nil
}

// bindCommandFlags lets explicitly set command-line flags override file and
// env values. Only changed flags are applied, so config defaults survive.
func bindCommandFlags(cmd *cobra.Command, v *viper.Viper) {
	for flagName, key := range map[string]string{
		"provider":    "engine.provider",
		"model":       "engine.model",
		"concurrency": "runner.concurrency",
		"headless":    "browser.headless",
		"output":      "report.output",
	} {
		if flag := cmd.Flags().Lookup(flagName); flag != nil && flag.Changed {
			v.Set(key, flag.Value.String())
		}
	}
	if flag := cmd.Flags().Lookup("no-color"); flag != nil && flag.Changed {
		v.Set("report.color", flag.Value.String() != "true")
	}
}
