package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sfg-os/starpack/internal/engine"
	"github.com/sfg-os/starpack/internal/output"
)

var searchByFilePath bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search repositories by name, version, or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		defer e.Close()

		catalogs, err := e.Catalogs(cmd.Context())
		if err != nil {
			return err
		}
		if searchByFilePath {
			return searchFile(catalogs, args[0])
		}
		return searchPackages(catalogs, args[0])
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchByFilePath, "file", false, "find the package that ships a file path")
}

// searchPackages prints every package whose name, version, or
// description contains the query, repository by repository.
func searchPackages(catalogs []engine.RepoCatalog, query string) error {
	found := false
	for _, rc := range catalogs {
		fmt.Printf("Searching in repository: %s\n", rc.Repo)
		for _, pkg := range rc.File.Packages {
			if !strings.Contains(pkg.Name, query) &&
				!strings.Contains(pkg.Version, query) &&
				!strings.Contains(pkg.Description, query) {
				continue
			}
			fmt.Print(output.RenderSearchMatch(output.PackageRow{
				Name:        pkg.Name,
				Version:     pkg.Version,
				Description: pkg.Description,
			}, ""))
			found = true
		}
	}
	if !found {
		fmt.Printf("No packages found matching: %s\n", query)
	}
	return nil
}

// searchFile prints every package whose file list contains the given
// path, matching either the exact absolute path or the bare filename.
// Per package, the first listed file that matches either way is shown.
func searchFile(catalogs []engine.RepoCatalog, path string) error {
	base := filepath.Base(path)
	found := false
	for _, rc := range catalogs {
		fmt.Printf("Searching in repository: %s\n", rc.Repo)
		for _, pkg := range rc.File.Packages {
			for _, f := range pkg.Files {
				if !strings.HasPrefix(f, "/") {
					f = "/" + f
				}
				if f != path && filepath.Base(f) != base {
					continue
				}
				fmt.Print(output.RenderSearchMatch(output.PackageRow{
					Name:        pkg.Name,
					Version:     pkg.Version,
					Description: pkg.Description,
				}, f))
				found = true
				break
			}
		}
	}
	if !found {
		fmt.Printf("No packages found containing file: %s\n", path)
	}
	return nil
}
