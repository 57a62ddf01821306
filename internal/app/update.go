package app

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:     "update [package...]",
	Short:   "Update the named packages, or everything when none are named",
	Args:    cobra.ArbitraryArgs,
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()
		return e.Update(cmd.Context(), args)
	},
}
