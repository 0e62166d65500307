package stores

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// FirefoxPlacesFile is the history and bookmark store of a Firefox profile.
const FirefoxPlacesFile = "places.sqlite"

// moz_bookmarks.type values.
const (
	mozTypeBookmark  = 1
	mozTypeFolder    = 2
	mozTypeSeparator = 3
)

// Root folder guids.
const (
	guidToolbar = "toolbar_____"
	guidMenu    = "menu________"
	guidUnfiled = "unfiled_____"
	guidMobile  = "mobile______"
)

const placesQuery = `SELECT b.id, b.parent, b.type, COALESCE(b.title, ''), COALESCE(b.guid, ''), COALESCE(p.url, '')
FROM moz_bookmarks b LEFT JOIN moz_places p ON b.fk = p.id
ORDER BY b.parent, b.position`

type placesRow struct {
	id, parent int64
	kind       int
	title      string
	guid       string
	url        string
}

// ReadFirefoxBookmarks reads the bookmark tree of a Firefox profile from
// places.sqlite. The toolbar becomes BookmarksBar; the menu and unfiled
// roots, and the mobile root as a subfolder, become OtherBookmarks.
// Separators and place: query bookmarks are dropped.
func ReadFirefoxBookmarks(ctx context.Context, profileDir string) (*dataimport.BookmarkTree, error) {
	db, closeDB, err := openSnapshot(filepath.Join(profileDir, FirefoxPlacesFile))
	if err != nil {
		return nil, err
	}
	defer closeDB()

	rows, err := queryPlaces(ctx, db)
	if err != nil {
		return nil, err
	}
	children := make(map[int64][]placesRow)
	roots := make(map[string]int64)
	for _, r := range rows {
		children[r.parent] = append(children[r.parent], r)
		switch r.guid {
		case guidToolbar, guidMenu, guidUnfiled, guidMobile:
			roots[r.guid] = r.id
		}
	}

	var build func(parent int64, depth int) []*dataimport.BookmarkNode
	build = func(parent int64, depth int) []*dataimport.BookmarkNode {
		// places.sqlite is a tree; the bound only stops a corrupt cycle.
		if depth > 64 {
			return nil
		}
		var out []*dataimport.BookmarkNode
		for _, r := range children[parent] {
			switch r.kind {
			case mozTypeFolder:
				f := dataimport.NewFolder(r.title)
				f.Children = build(r.id, depth+1)
				out = append(out, f)
			case mozTypeBookmark:
				if r.url == "" || strings.HasPrefix(r.url, "place:") {
					continue
				}
				out = append(out, &dataimport.BookmarkNode{Title: r.title, URL: r.url})
			}
		}
		return out
	}

	tree := dataimport.NewBookmarkTree()
	if id, ok := roots[guidToolbar]; ok {
		tree.BookmarksBar.Children = build(id, 0)
	}
	for _, guid := range []string{guidMenu, guidUnfiled} {
		if id, ok := roots[guid]; ok {
			tree.OtherBookmarks.Children = append(tree.OtherBookmarks.Children, build(id, 0)...)
		}
	}
	if id, ok := roots[guidMobile]; ok {
		if items := build(id, 0); len(items) > 0 {
			mobile := dataimport.NewFolder(dataimport.MobileBookmarksTitle)
			mobile.Children = items
			tree.OtherBookmarks.Children = append(tree.OtherBookmarks.Children, mobile)
		}
	}
	return tree, nil
}

func queryPlaces(ctx context.Context, db *sql.DB) ([]placesRow, error) {
	rows, err := db.QueryContext(ctx, placesQuery)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to query bookmarks: %w", err))
	}
	defer rows.Close()

	var out []placesRow
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r placesRow
		if err := rows.Scan(&r.id, &r.parent, &r.kind, &r.title, &r.guid, &r.url); err != nil {
			return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to scan bookmark row: %w", err))
		}
		if r.kind == mozTypeSeparator {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to iterate bookmark rows: %w", err))
	}
	return out, nil
}
