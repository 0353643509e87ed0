package secai

import (
	"fmt"
	"os"
	"time"

	"github.com/secai/secai/internal/config"
	"github.com/secai/secai/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig           string
	flagInvestigationURL string
	flagRemediationURL   string
	flagOffline          bool
	flagJSON             bool
	flagNoColor          bool
	flagLogLevel         string
	flagTimeout          time.Duration

	version = "0.1.0"

	// cfg is the merged file configuration, resolved before every command.
	cfg config.FileConfig
)

// rootCmd is the base Cobra command for the secai CLI.
var rootCmd = &cobra.Command{
	Use:   "secai",
	Short: "Investigate security breaches as a tree of hypotheses",
	Long: "secai drives a breach investigation: it grows a tree of attack hypotheses, records analyst verdicts, " +
		"builds reports and exports them, and plans remediation from the result.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { logging.Sync() },
}

// Execute runs the secai CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .secai.yml, then ~/.config/secai/config.yml)")
	rootCmd.PersistentFlags().StringVar(&flagInvestigationURL, "investigation-url", "", "investigation service base URL")
	rootCmd.PersistentFlags().StringVar(&flagRemediationURL, "remediation-url", "", "remediation service base URL")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "use the built-in offline generator instead of the services")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default warn)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "request timeout (default 60s)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "secai", version)
		},
	})
}

// setup loads configuration and initializes logging. CLI flags win over the
// local config, which wins over the global one.
func setup(_ *cobra.Command, _ []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		wd, _ := os.Getwd()
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return err
	}
	level := pickString(flagLogLevel, cfg.LogLevel, nil)
	if level == "" {
		level = "warn"
	}
	return logging.Init(level, flagJSON)
}
