package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List installed packages",
	Args:    cobra.NoArgs,
	PreRunE: requireRoot,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()

		names, err := e.DB().InstalledPackages()
		if err != nil {
			return err
		}

		fmt.Println("Installed Packages:")
		fmt.Println("-------------------")
		for _, name := range names {
			fmt.Println(name)
		}
		if len(names) == 0 {
			fmt.Println("No packages are installed (what?)")
		}
		return nil
	},
}
