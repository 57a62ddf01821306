package app

import (
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:     "install <package> [package...]",
	Short:   "Install packages and their dependencies",
	Args:    cobra.MinimumNArgs(1),
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()
		return e.Install(cmd.Context(), args)
	},
}
