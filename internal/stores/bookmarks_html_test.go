package stores

import (
	"context"
	"strings"
	"testing"

	"github.com/warpdl/warpimport/internal/dataimport"
)

const chromeExport = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<!-- This is an automatically generated file. -->
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><H3 ADD_DATE="1" LAST_MODIFIED="2" PERSONAL_TOOLBAR_FOLDER="true">Bookmarks bar</H3>
    <DL><p>
        <DT><A HREF="https://duck.com/" ADD_DATE="1">DuckDuckGo</A>
        <DT><H3 ADD_DATE="1">Dev &amp; Ops</H3>
        <DL><p>
            <DT><A HREF="https://go.dev/">Go</A>
            <DT><A HREF="http://bookmark.placeholder.url/">---</A>
            <DT><A HREF="https://pkg.go.dev/">Packages</A>
        </DL><p>
    </DL><p>
    <DT><H3 ADD_DATE="1">Other bookmarks</H3>
    <DL><p>
        <DT><A HREF="https://example.com/">Example</A>
    </DL><p>
    <DT><A HREF="https://loose.example/">Loose</A>
</DL><p>
`

const firefoxExport = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks Menu</H1>
<DL><p>
    <DT><A HREF="https://menu.example/">In the menu</A>
    <DT><H3 PERSONAL_TOOLBAR_FOLDER="true">Barre d'outils</H3>
    <DL><p>
        <DT><A HREF="https://duck.com/">Duck</A>
    </DL><p>
    <DT><H3 UNFILED_BOOKMARKS_FOLDER="true">Autres marque-pages</H3>
    <DL><p>
        <DT><A HREF="https://unfiled.example/">Unfiled</A>
    </DL><p>
</DL>
`

func TestReadBookmarksHTMLChrome(t *testing.T) {
	tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(chromeExport), HTMLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Six anchors, one of them a separator.
	if got := tree.Leaves(); got != 5 {
		t.Fatalf("got %d leaves, want 5", got)
	}
	if tree.BookmarksBar.Title != dataimport.BookmarksBarTitle {
		t.Fatalf("got bar title %q", tree.BookmarksBar.Title)
	}
	if tree.OtherBookmarks.Title != dataimport.OtherBookmarksTitle {
		t.Fatalf("got other title %q", tree.OtherBookmarks.Title)
	}
	bar := tree.BookmarksBar.Children
	if len(bar) != 2 || bar[1].Title != "Dev & Ops" || bar[1].Leaves() != 2 {
		t.Fatalf("unexpected bar contents: %+v", bar)
	}
	other := tree.OtherBookmarks.Children
	if len(other) != 2 || other[0].Title != "Example" || other[1].URL != "https://loose.example/" {
		t.Fatalf("unexpected other contents: %+v", other)
	}
}

func TestReadBookmarksHTMLMarkerAttributes(t *testing.T) {
	tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(firefoxExport), HTMLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.BookmarksBar.Children) != 1 || tree.BookmarksBar.Children[0].Title != "Duck" {
		t.Fatalf("unexpected bar contents: %+v", tree.BookmarksBar.Children)
	}
	other := tree.OtherBookmarks.Children
	if len(other) != 2 || other[0].Title != "Unfiled" || other[1].Title != "In the menu" {
		t.Fatalf("unexpected other contents: %+v", other)
	}
}

func TestReadBookmarksHTMLLocalizedHeadings(t *testing.T) {
	doc := `<DL><p>
<DT><H3>LESEZEICHENLEISTE</H3>
<DL><p><DT><A HREF="https://a.example/">A</A></DL><p>
<DT><H3>Weitere Lesezeichen</H3>
<DL><p><DT><A HREF="https://b.example/">B</A></DL><p>
</DL>`
	tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(doc), HTMLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.BookmarksBar.Leaves() != 1 || tree.BookmarksBar.Children[0].Title != "A" {
		t.Fatalf("bar not recognized: %+v", tree.BookmarksBar.Children)
	}
	if tree.OtherBookmarks.Leaves() != 1 || tree.OtherBookmarks.Title != dataimport.OtherBookmarksTitle {
		t.Fatalf("other not recognized: %+v", tree.OtherBookmarks)
	}
}

func TestReadBookmarksHTMLFallbackLabel(t *testing.T) {
	doc := `<DL><p>
<DT><H3>Reading</H3>
<DL><p><DT><A HREF="https://a.example/">A</A></DL><p>
<DT><A HREF="https://b.example/">B</A>
</DL>`
	tests := []struct {
		opts HTMLOptions
		want string
	}{
		{HTMLOptions{}, DefaultFallbackLabel},
		{HTMLOptions{FallbackLabel: "From Safari"}, "From Safari"},
	}
	for _, tt := range tests {
		tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(doc), tt.opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tree.OtherBookmarks.Title != tt.want {
			t.Fatalf("got title %q, want %q", tree.OtherBookmarks.Title, tt.want)
		}
		if len(tree.BookmarksBar.Children) != 0 {
			t.Fatalf("bar should be empty, got %+v", tree.BookmarksBar.Children)
		}
		if tree.Leaves() != 2 {
			t.Fatalf("got %d leaves, want 2", tree.Leaves())
		}
	}
}

func TestReadBookmarksHTMLEmptyRootsPresent(t *testing.T) {
	tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(`<H1>Bookmarks</H1><DL><p></DL>`), HTMLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.BookmarksBar == nil || tree.OtherBookmarks == nil {
		t.Fatal("both roots must be present")
	}
	if tree.Leaves() != 0 {
		t.Fatalf("got %d leaves, want 0", tree.Leaves())
	}
}

func TestReadBookmarksHTMLCorrupt(t *testing.T) {
	tests := map[string]string{
		"unterminated list": `<DL><p><DT><H3>Bar</H3><DL><p><DT><A HREF="https://a.example/">A</A></DL>`,
		"no list":           `<H1>Bookmarks</H1><A HREF="https://a.example/">A</A>`,
		"stray close":       `<DL></DL></DL>`,
		"empty":             ``,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadBookmarksHTML(context.Background(), strings.NewReader(doc), HTMLOptions{})
			wantCategory(t, err, dataimport.CategoryDataCorrupted)
		})
	}
}

func TestReadBookmarksHTMLLeafCount(t *testing.T) {
	var b strings.Builder
	b.WriteString("<DL><p>\n")
	n := 0
	for i := 0; i < 5; i++ {
		b.WriteString("<DT><H3>Folder</H3>\n<DL><p>\n")
		for j := 0; j <= i; j++ {
			b.WriteString(`<DT><A HREF="https://example.com/x">x</A>` + "\n")
			n++
		}
		b.WriteString("</DL><p>\n")
	}
	b.WriteString("</DL>\n")
	tree, err := ReadBookmarksHTML(context.Background(), strings.NewReader(b.String()), HTMLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Leaves() != n {
		t.Fatalf("got %d leaves, want %d", tree.Leaves(), n)
	}
}
