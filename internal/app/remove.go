package app

import (
	"github.com/spf13/cobra"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove <package> [package...]",
	Short:   "Remove packages and the orphans they leave behind",
	Args:    cobra.MinimumNArgs(1),
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()
		return e.Remove(args, removeForce)
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removeForce, "force", false, "remove even when other packages depend on the target")
}
