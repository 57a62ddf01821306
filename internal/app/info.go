package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sfg-os/starpack/internal/output"
)

var infoCmd = &cobra.Command{
	Use:   "info <package>",
	Short: "Show package details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		e := newEngine()
		defer e.Close()

		// The installed database wins over repository metadata.
		if rec, err := e.DB().Record(name); err == nil {
			fmt.Print(output.RenderPackageInfo(rec.Name, rec.Version, rec.Description, rec.Dependencies, rec.Files))
			return nil
		}

		cat, err := e.LoadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		entry, ok := cat.Lookup(name)
		if !ok {
			return fmt.Errorf("package %s not found locally or in repositories", name)
		}

		files := make([]string, 0, len(entry.Files))
		for _, f := range entry.Files {
			if !strings.HasPrefix(f, "/") {
				f = "/" + f
			}
			files = append(files, f)
		}
		fmt.Print(output.RenderPackageInfo(entry.Name, entry.Version, entry.Description, entry.Dependencies, files))
		return nil
	},
}
