package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sfg-os/starpack/internal/config"
	"github.com/sfg-os/starpack/internal/output"
	"github.com/sfg-os/starpack/internal/repoindex"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories",
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRepos(config.DefaultReposPath)
		if err != nil {
			return err
		}
		fmt.Print(output.RenderRepoList(cfg.URLs))
		return nil
	},
}

var repoAddCmd = &cobra.Command{
	Use:     "add <repo_url>",
	Short:   "Add a repository",
	Args:    cobra.ExactArgs(1),
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrEmptyRepos()
		if err != nil {
			return err
		}
		if err := cfg.Add(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(config.DefaultReposPath); err != nil {
			return err
		}
		output.Success("added repository %s", args[0])
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove <repo_url>",
	Short:   "Remove a repository",
	Args:    cobra.ExactArgs(1),
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRepos(config.DefaultReposPath)
		if err != nil {
			return err
		}
		if err := cfg.Remove(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(config.DefaultReposPath); err != nil {
			return err
		}
		output.Success("removed repository %s", args[0])
		return nil
	},
}

var repoIndexWatch bool

var repoIndexCmd = &cobra.Command{
	Use:   "index <location>",
	Short: "Generate a repository index from a directory of archives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if repoIndexWatch {
			return repoindex.Watch(cmd.Context(), args[0])
		}
		return repoindex.Build(args[0])
	},
}

var repoAddMissingCmd = &cobra.Command{
	Use:   "add-missing <location>",
	Short: "Add unlisted archives to an existing repository index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoindex.AddMissing(args[0])
	},
}

func init() {
	repoIndexCmd.Flags().BoolVar(&repoIndexWatch, "watch", false, "keep running and reindex on archive changes")

	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoIndexCmd)
	repoCmd.AddCommand(repoAddMissingCmd)
}

// loadOrEmptyRepos reads repos.conf, treating a missing file as an
// empty configuration so the first add creates it.
func loadOrEmptyRepos() (*config.Repos, error) {
	cfg, err := config.LoadRepos(config.DefaultReposPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &config.Repos{}, nil
		}
		return nil, err
	}
	return cfg, nil
}
