package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// PackageRow is the display shape for one package in listings and
// search results. It is defined here rather than in the catalog
// package to avoid circular dependencies.
type PackageRow struct {
	Name        string
	Version     string
	Description string
	SizeBytes   int64
	Repository  string
}

// RenderPackageTable renders a table of packages with their details.
func RenderPackageTable(rows []PackageRow) string {
	if len(rows) == 0 {
		return "No packages found.\n"
	}

	// Sort by name for consistent output
	sorted := make([]PackageRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-12s %-10s %s\n",
		"Package", "Version", "Size", "Description"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, row := range sorted {
		size := "—"
		if row.SizeBytes > 0 {
			size = humanize.Bytes(uint64(row.SizeBytes))
		}
		sb.WriteString(fmt.Sprintf("%-24s %-12s %-10s %s\n",
			truncate(row.Name, 24),
			truncate(row.Version, 12),
			size,
			truncate(row.Description, 40)))
	}

	return sb.String()
}

// RenderSearchMatch renders one search hit, optionally highlighting a
// matched file path in red.
func RenderSearchMatch(row PackageRow, matchedFile string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Package: %s (Version: %s)\n", row.Name, row.Version))
	sb.WriteString(fmt.Sprintf("Description: %s\n", row.Description))
	if matchedFile != "" {
		sb.WriteString(fmt.Sprintf("Matched File: %s\n", colorize(colorRed, matchedFile)))
	}
	sb.WriteString("\n")
	return sb.String()
}

// RenderPackageInfo renders the full detail block the info command prints.
func RenderPackageInfo(name, version, description string, dependencies, files []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Package Name: %s\n", name))
	sb.WriteString(fmt.Sprintf("Version: %s\n", version))
	sb.WriteString(fmt.Sprintf("Description: %s\n", description))

	sb.WriteString("Dependencies: ")
	sb.WriteString(strings.Join(dependencies, " "))
	sb.WriteString("\nFiles:\n")
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("  %s\n", f))
	}
	return sb.String()
}

// RenderRepoList renders the configured repository URLs.
func RenderRepoList(repos []string) string {
	var sb strings.Builder
	sb.WriteString("Configured Repositories:\n")
	for _, repo := range repos {
		sb.WriteString(fmt.Sprintf("  - %s\n", repo))
	}
	return sb.String()
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
