package cli

import (
	"fmt"
	"strings"

	"github.com/davarch/pipeline-stats/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <owner/repo>",
	Short: "Add a repository to poll.repositories in the config file",
	Args:  cobra.MatchAll(cobra.ExactArgs(1), validRepoArg),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		if c.HasRepository(repo) {
			fmt.Printf("no change (%s is already polled)\n", repo)
			return nil
		}
		c.Poll.Repositories = append(c.Poll.Repositories, repo)

		if err := config.Save(cfgPath, c); err != nil {
			return err
		}

		fmt.Printf("watching: %s\n", repo)
		return nil
	},
}

func init() {
	watchCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		eng := openEngine(cmd.Context())
		out := make([]string, 0)
		for _, r := range eng.Snapshot().Repositories {
			if cfg.HasRepository(r) {
				continue
			}
			if strings.HasPrefix(r, toComplete) {
				out = append(out, r)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(watchCmd)
}

func validRepoArg(cmd *cobra.Command, args []string) error {
	owner, name, ok := strings.Cut(args[0], "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("repository must be owner/name, got %q", args[0])
	}
	return nil
}
