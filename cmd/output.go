package cmd

import (
	"fmt"
	"strings"

	"github.com/warpdl/warpimport/cmd/common"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/pkg/credman"
)

func maskPassword(p string) string {
	if p == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

func formatVault(creds []dataimport.Credential, folders []credman.BookmarkFolder, stats credman.Stats, reveal bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vault holds %d credentials and %d bookmarks in %d folders.\n",
		stats.Credentials, stats.Bookmarks, stats.Folders)
	if len(creds) > 0 {
		b.WriteString("\n------------------------------------------------------------------------")
		b.WriteString("\n|Num|          URL           |       Username       |     Password     |")
		b.WriteString("\n|---|------------------------|----------------------|------------------|")
		for i, c := range creds {
			pw := c.Password
			if !reveal {
				pw = maskPassword(pw)
			}
			fmt.Fprintf(&b, "\n|%s|%s|%s|%s|",
				common.Beaut(fmt.Sprint(i+1), 3),
				common.Fit(c.URL, 24),
				common.Fit(c.Username, 22),
				common.Fit(pw, 18),
			)
		}
		b.WriteString("\n------------------------------------------------------------------------\n")
	}
	if len(folders) > 0 {
		b.WriteString("\nBookmark folders:\n")
		for _, f := range folders {
			fmt.Fprintf(&b, "  %s (%d bookmarks, %s)\n", f.Title, f.Bookmarks, f.Created.Format("2006-01-02 15:04"))
		}
	}
	return b.String()
}

// formatResults renders the latest result of every data type of an
// import, in import order.
func formatResults(name string, types []dataimport.DataType, results map[dataimport.DataType]dataimport.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Import from %s:\n", name)
	for _, dt := range types {
		r, ok := results[dt]
		switch {
		case !ok:
			fmt.Fprintf(&b, "  %s: skipped\n", dt)
		case r.IsSuccess():
			fmt.Fprintf(&b, "  %s: %s\n", dt, r.Summary)
		default:
			fmt.Fprintf(&b, "  %s: %s\n", dt, r.Err.Category)
		}
	}
	return b.String()
}
