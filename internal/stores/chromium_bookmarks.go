package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// ChromiumBookmarksFile is the bookmark store inside a Chromium profile.
const ChromiumBookmarksFile = "Bookmarks"

type chromiumBookmarkFile struct {
	Roots struct {
		BookmarkBar *chromiumBookmark `json:"bookmark_bar"`
		Other       *chromiumBookmark `json:"other"`
		Synced      *chromiumBookmark `json:"synced"`
	} `json:"roots"`
}

type chromiumBookmark struct {
	Type     string              `json:"type"`
	Name     string              `json:"name"`
	URL      string              `json:"url"`
	Children []*chromiumBookmark `json:"children"`
}

// ReadChromiumBookmarks reads the JSON bookmark file of a Chromium profile.
// The bookmark bar root becomes BookmarksBar; the "other" root and the
// mobile ("synced") root, as a subfolder, become OtherBookmarks.
func ReadChromiumBookmarks(ctx context.Context, profileDir string) (*dataimport.BookmarkTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(profileDir, ChromiumBookmarksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dataimport.Errorf(dataimport.CategoryNoData, "error: no bookmark file in profile")
	}
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read bookmarks: %w", err))
	}
	var doc chromiumBookmarkFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot parse bookmarks: %w", err))
	}

	tree := dataimport.NewBookmarkTree()
	if doc.Roots.BookmarkBar != nil {
		tree.BookmarksBar.Children = convertChromiumChildren(doc.Roots.BookmarkBar.Children)
	}
	if doc.Roots.Other != nil {
		tree.OtherBookmarks.Children = convertChromiumChildren(doc.Roots.Other.Children)
	}
	if doc.Roots.Synced != nil && len(doc.Roots.Synced.Children) > 0 {
		mobile := dataimport.NewFolder(dataimport.MobileBookmarksTitle)
		mobile.Children = convertChromiumChildren(doc.Roots.Synced.Children)
		tree.OtherBookmarks.Children = append(tree.OtherBookmarks.Children, mobile)
	}
	return tree, nil
}

func convertChromiumChildren(in []*chromiumBookmark) []*dataimport.BookmarkNode {
	out := make([]*dataimport.BookmarkNode, 0, len(in))
	for _, b := range in {
		if b == nil {
			continue
		}
		switch b.Type {
		case "folder":
			f := dataimport.NewFolder(b.Name)
			f.Children = convertChromiumChildren(b.Children)
			out = append(out, f)
		case "url":
			out = append(out, &dataimport.BookmarkNode{Title: b.Name, URL: b.URL})
		}
	}
	return out
}
