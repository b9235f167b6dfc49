package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	setupToken     string
	setupSaveToken bool
	setupEnvFile   string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Check the GitHub token and prepare the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if setupToken != "" {
			cfg.GitHub.Token = setupToken
		}
		if err := cfg.RequireToken(); err != nil {
			return errors.Wrap(err, "create a token at https://github.com/settings/tokens")
		}

		rl, err := newGitHubClient().RateLimit(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "token check failed")
		}
		_, _ = fmt.Fprintf(out, "%s token is valid, rate limit %d/%d (resets %s)\n",
			styleOK.Render("✓"), rl.Remaining, rl.Limit, formatTime(rl.Reset))

		if setupSaveToken {
			env, err := godotenv.Read(setupEnvFile)
			if err != nil {
				if !os.IsNotExist(errors.Cause(err)) {
					return errors.Wrapf(err, "read %s", setupEnvFile)
				}
				env = map[string]string{}
			}
			env["GITHUB_TOKEN"] = cfg.GitHub.Token
			if err := godotenv.Write(env, setupEnvFile); err != nil {
				return errors.Wrapf(err, "write %s", setupEnvFile)
			}
			_, _ = fmt.Fprintf(out, "%s token saved to %s, keep it out of version control\n", styleOK.Render("✓"), setupEnvFile)
		}

		if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
			return errors.Wrap(err, "create data dir")
		}
		_, _ = fmt.Fprintf(out, "%s data directory %s\n", styleOK.Render("✓"), cfg.Data.Dir)
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupToken, "token", "", "GitHub token to check (default GITHUB_TOKEN)")
	setupCmd.Flags().BoolVar(&setupSaveToken, "save-token", false, "store the token in the .env file")
	setupCmd.Flags().StringVar(&setupEnvFile, "env-file", ".env", "file used by --save-token")

	rootCmd.AddCommand(setupCmd)
}
