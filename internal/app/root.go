// Package app wires the starpack subcommands to the engine.
package app

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for starpack.
var RootCmd = &cobra.Command{
	Use:   "starpack",
	Short: "The SFG OS package manager",
	Long: `Starpack Alpha (x86_64)

Starpack is the SFG OS package manager that provides commands for
installing, removing, and updating packages.
It offers a simplified and interactive interface for package management.

Useful commands:
  install      - Install packages
  remove       - Remove packages
  update       - Update package list or upgrade packages
  list         - List installed packages
  info         - Show package details
  search       - Search repositories
  repo         - Manage repositories
  clean        - Clean the cache

This Star Has Spaceship Powers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&installDir, "installdir", "/", "install root directory")
	RootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes to confirmation prompts")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(repoCmd)
	RootCmd.AddCommand(spaceshipCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
