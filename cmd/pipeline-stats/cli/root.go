package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/infrastructure/config"
	"github.com/davarch/pipeline-stats/internal/infrastructure/logging"
	"github.com/davarch/pipeline-stats/internal/infrastructure/snapshot_fs"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath  string
	dataDir  string
	logLevel string
	version  = "dev"

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "pipeline-stats",
	Short:         "Pipeline summary statistics from GitHub pull request comments",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			c.Data.Dir = dataDir
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c
		logger = logging.New(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config.yaml or a .toml file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the statistics file (overrides data.dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	comp := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	rootCmd.AddCommand(comp)
}

// openEngine loads the statistics file. Load failures are logged by the
// engine, which then starts empty.
func openEngine(ctx context.Context) *stats.Engine {
	eng, _ := stats.Open(ctx, snapshot_fs.New(cfg.DataPath()), stats.WithLogger(logger))
	return eng
}

// parseStatusFlag validates an optional status flag value.
func parseStatusFlag(name, v string) (domain.Status, error) {
	if v == "" {
		return "", nil
	}
	s, err := domain.ParseStatus(v)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", name, err)
	}
	return s, nil
}
