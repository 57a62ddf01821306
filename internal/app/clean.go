package app

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Short:   "Clean the package download cache",
	Args:    cobra.NoArgs,
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()
		return e.Clean()
	},
}
