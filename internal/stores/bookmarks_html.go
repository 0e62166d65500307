package stores

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/warpdl/warpimport/internal/dataimport"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
)

// DefaultFallbackLabel titles the other-bookmarks root of an export that
// does not name one.
const DefaultFallbackLabel = "Imported Bookmarks"

// HTMLOptions tunes ReadBookmarksHTML.
type HTMLOptions struct {
	// FallbackLabel is used as the OtherBookmarks title when the file has
	// no recognizable other-bookmarks folder. Empty means
	// DefaultFallbackLabel.
	FallbackLabel string
}

// Vivaldi exports separators as placeholder bookmarks.
const (
	vivaldiSeparatorTitle = "---"
	vivaldiSeparatorURL   = "http://bookmark.placeholder.url/"
)

// Localized names of the well-known roots, compared case-folded.
var (
	barHeadings = []string{
		"bookmarks bar", "bookmarks toolbar", "favorites bar", "favourites bar",
		"favorites", "favourites", "lesezeichenleiste", "lesezeichen-symbolleiste",
		"barre de favoris", "barre personnelle", "barre d'outils personnelle",
		"barra de marcadores", "barra de favoritos", "barra dei preferiti",
		"barra dei segnalibri", "bladwijzerbalk", "pasek zakładek",
		"панель закладок", "ブックマーク バー", "书签栏",
	}
	otherHeadings = []string{
		"other bookmarks", "other favorites", "unsorted bookmarks",
		"weitere lesezeichen", "autres favoris", "autres marque-pages",
		"otros marcadores", "outros favoritos", "altri preferiti",
		"andere bladwijzers", "inne zakładki", "другие закладки",
		"その他のブックマーク", "其他书签",
	}
)

func foldHeading(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func headingIn(title string, table []string) bool {
	folded := foldHeading(title)
	for _, h := range table {
		if foldHeading(h) == folded {
			return true
		}
	}
	return false
}

type rootKind int

const (
	rootNone rootKind = iota
	rootBar
	rootOther
)

// htmlFolder is a folder under construction together with the root marker
// attributes of its heading.
type htmlFolder struct {
	node *dataimport.BookmarkNode
	kind rootKind
}

// ReadBookmarksHTML reads a Netscape bookmark export as written by every
// major browser. Folders are <H3> headings followed by a <DL> list; leaves
// are <A HREF> anchors.
//
// A file with no <DL> list or with an unclosed one is reported as
// CategoryDataCorrupted.
func ReadBookmarksHTML(ctx context.Context, r io.Reader, opts HTMLOptions) (*dataimport.BookmarkTree, error) {
	if opts.FallbackLabel == "" {
		opts.FallbackLabel = DefaultFallbackLabel
	}
	var (
		z       = html.NewTokenizer(r)
		root    = dataimport.NewFolder("")
		kinds   = map[*dataimport.BookmarkNode]rootKind{}
		stack   []*dataimport.BookmarkNode
		sawList bool
		// pending is the folder of the last closed heading, waiting for
		// its list.
		pending *htmlFolder
		heading *htmlFolder
		anchor  *dataimport.BookmarkNode
		text    strings.Builder
		tokens  int
	)
	current := func() *dataimport.BookmarkNode {
		if len(stack) == 0 {
			return root
		}
		return stack[len(stack)-1]
	}

	for {
		if tokens++; tokens%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read bookmarks: %w", z.Err()))
		}
		tok := z.Token()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.H3:
				pending = nil
				heading = &htmlFolder{node: dataimport.NewFolder("")}
				for _, a := range tok.Attr {
					switch {
					case strings.EqualFold(a.Key, "personal_toolbar_folder") && strings.EqualFold(a.Val, "true"):
						heading.kind = rootBar
					case strings.EqualFold(a.Key, "unfiled_bookmarks_folder") && strings.EqualFold(a.Val, "true"):
						heading.kind = rootOther
					}
				}
				text.Reset()
			case atom.A:
				pending = nil
				anchor = &dataimport.BookmarkNode{}
				for _, a := range tok.Attr {
					if strings.EqualFold(a.Key, "href") {
						anchor.URL = a.Val
					}
				}
				text.Reset()
			case atom.Dl:
				sawList = true
				switch {
				case pending != nil:
					stack = append(stack, pending.node)
					pending = nil
				case len(stack) == 0:
					stack = append(stack, root)
				default:
					// A list without a heading nests into the enclosing folder.
					stack = append(stack, current())
				}
			}
		case html.TextToken:
			if heading != nil || anchor != nil {
				text.WriteString(tok.Data)
			}
		case html.EndTagToken:
			switch tok.DataAtom {
			case atom.H3:
				if heading == nil {
					continue
				}
				heading.node.Title = strings.TrimSpace(text.String())
				parent := current()
				parent.Children = append(parent.Children, heading.node)
				if parent == root {
					kinds[heading.node] = heading.kind
				}
				pending, heading = heading, nil
			case atom.A:
				if anchor == nil {
					continue
				}
				anchor.Title = strings.TrimSpace(text.String())
				if !(anchor.Title == vivaldiSeparatorTitle && anchor.URL == vivaldiSeparatorURL) {
					parent := current()
					parent.Children = append(parent.Children, anchor)
				}
				anchor = nil
			case atom.Dl:
				if len(stack) == 0 {
					return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: unbalanced </DL> in bookmarks file")
				}
				stack = stack[:len(stack)-1]
				pending = nil
			}
		}
	}

	if !sawList {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: no bookmark list in file")
	}
	if len(stack) > 0 {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: unterminated bookmark list")
	}
	return splitRoots(root, kinds, opts.FallbackLabel), nil
}

// splitRoots distributes the top-level items of an export over the two
// roots of a BookmarkTree. Marker attributes win over heading names.
func splitRoots(root *dataimport.BookmarkNode, kinds map[*dataimport.BookmarkNode]rootKind, fallback string) *dataimport.BookmarkTree {
	var bar, other *dataimport.BookmarkNode
	for _, c := range root.Children {
		switch kinds[c] {
		case rootBar:
			if bar == nil {
				bar = c
			}
		case rootOther:
			if other == nil {
				other = c
			}
		}
	}
	for _, c := range root.Children {
		if !c.IsFolder || c == bar || c == other {
			continue
		}
		if bar == nil && headingIn(c.Title, barHeadings) {
			bar = c
		} else if other == nil && headingIn(c.Title, otherHeadings) {
			other = c
		}
	}

	tree := dataimport.NewBookmarkTree()
	if bar != nil {
		tree.BookmarksBar.Children = bar.Children
	}
	if other != nil {
		tree.OtherBookmarks.Children = append(tree.OtherBookmarks.Children, other.Children...)
	} else {
		tree.OtherBookmarks.Title = fallback
	}
	for _, c := range root.Children {
		if c == bar || c == other {
			continue
		}
		tree.OtherBookmarks.Children = append(tree.OtherBookmarks.Children, c)
	}
	return tree
}
