package cli

import (
	"fmt"
	"strings"

	"github.com/davarch/pipeline-stats/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <owner/repo>",
	Short: "Remove a repository from poll.repositories in the config file",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		kept := make([]string, 0, len(c.Poll.Repositories))
		for _, r := range c.Poll.Repositories {
			if !strings.EqualFold(r, repo) {
				kept = append(kept, r)
			}
		}

		if len(kept) == len(c.Poll.Repositories) {
			fmt.Printf("no change (%s is not polled)\n", repo)
			return nil
		}
		c.Poll.Repositories = kept

		if err := config.Save(cfgPath, c); err != nil {
			return err
		}
		fmt.Printf("unwatched: %s\n", repo)

		return nil
	},
}

func init() {
	unwatchCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(cfg.Poll.Repositories))
		for _, r := range cfg.Poll.Repositories {
			if strings.HasPrefix(r, toComplete) {
				out = append(out, r)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(unwatchCmd)
}
