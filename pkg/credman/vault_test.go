package credman

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warpdl/warpimport/internal/dataimport"
)

func openTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault", "vault.db")
	v, err := OpenVault(path, bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v, path
}

func TestOpenVaultRejectsShortKey(t *testing.T) {
	if _, err := OpenVault(filepath.Join(t.TempDir(), "v.db"), []byte("short")); err == nil {
		t.Fatal("expected error for a short key")
	}
}

func TestVaultStoreOutcomes(t *testing.T) {
	v, _ := openTestVault(t)
	ctx := context.Background()
	alice := dataimport.Credential{Title: "Example", URL: "https://Example.com/", Username: "alice", Password: "pw1", Notes: "n"}

	tests := []struct {
		name string
		cred dataimport.Credential
		want dataimport.StoreOutcome
	}{
		{"new", alice, dataimport.Stored},
		{"same again", alice, dataimport.StoreDuplicate},
		{"normalized url", dataimport.Credential{URL: "https://example.com", Username: "alice", Password: "pw1"}, dataimport.StoreDuplicate},
		{"new password", dataimport.Credential{URL: "https://example.com", Username: "alice", Password: "pw2"}, dataimport.Stored},
		{"other user", dataimport.Credential{URL: "https://example.com", Username: "bob", Password: "pw1"}, dataimport.Stored},
		{"missing username matches", dataimport.Credential{URL: "https://example.com/", Password: "pw1"}, dataimport.StoreDuplicate},
		{"missing password matches", dataimport.Credential{URL: "https://example.com", Username: "alice"}, dataimport.StoreDuplicate},
		{"missing password new user", dataimport.Credential{URL: "https://example.com", Username: "carol"}, dataimport.Stored},
		{"missing username other site", dataimport.Credential{URL: "https://other.example", Password: "pw1"}, dataimport.Stored},
		{"nothing to store", dataimport.Credential{URL: "https://example.com"}, dataimport.StoreFailed},
	}
	for _, tt := range tests {
		got, err := v.Store(ctx, tt.cred)
		if got != tt.want {
			t.Fatalf("%s: got %s (%v), want %s", tt.name, got, err, tt.want)
		}
		if tt.want == dataimport.StoreFailed && err == nil {
			t.Fatalf("%s: expected an error with a failed outcome", tt.name)
		}
	}

	stats, err := v.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Credentials != 5 {
		t.Fatalf("stored %d credentials, want 5", stats.Credentials)
	}
	creds, err := v.Credentials(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creds) != 5 || creds[0] != alice {
		t.Fatalf("unexpected credentials %+v", creds)
	}
}

func TestVaultEncryptsAtRest(t *testing.T) {
	v, path := openTestVault(t)
	ctx := context.Background()
	if _, err := v.Store(ctx, dataimport.Credential{URL: "https://a.example", Username: "alice", Password: "correct horse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()
	var host string
	var password []byte
	if err := db.QueryRow(`SELECT host, password FROM credentials`).Scan(&host, &password); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "a.example" {
		t.Fatalf("unexpected host %q", host)
	}
	if bytes.Contains(password, []byte("correct horse")) {
		t.Fatal("password stored in the clear")
	}

	reopened, err := OpenVault(path, bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()
	creds, err := reopened.Credentials(ctx)
	if err != nil || len(creds) != 1 || creds[0].Password != "correct horse" {
		t.Fatalf("got %+v, %v", creds, err)
	}

	wrong, err := OpenVault(path, bytes.Repeat([]byte{0x43}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer wrong.Close()
	if _, err := wrong.Credentials(ctx); err == nil {
		t.Fatal("expected error with the wrong vault key")
	}
}

func testTree() *dataimport.BookmarkTree {
	tree := dataimport.NewBookmarkTree()
	tree.BookmarksBar.Children = []*dataimport.BookmarkNode{
		{Title: "Go", URL: "https://go.dev/"},
		{Title: "Dev", IsFolder: true, Children: []*dataimport.BookmarkNode{
			{Title: "Pkg", URL: "https://pkg.go.dev/"},
			{Title: "Broken", URL: "not a url"},
		}},
	}
	tree.OtherBookmarks.Children = []*dataimport.BookmarkNode{
		{Title: "Go again", URL: "https://go.dev/"},
	}
	return tree
}

func TestVaultImportBookmarks(t *testing.T) {
	v, _ := openTestVault(t)
	ctx := context.Background()

	sum, err := v.ImportBookmarks(ctx, testTree(), "Imported from Chrome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != (dataimport.Summary{Successful: 2, Duplicate: 1, Failed: 1}) {
		t.Fatalf("unexpected summary %+v", sum)
	}

	sum, err = v.ImportBookmarks(ctx, testTree(), "Imported from Chrome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Successful != 0 || sum.Duplicate != 3 {
		t.Fatalf("second import should only find duplicates, got %+v", sum)
	}

	folders, err := v.BookmarkFolders(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(folders) != 2 || folders[0].Title != "Imported from Chrome" || folders[0].Bookmarks != 2 || folders[1].Bookmarks != 0 {
		t.Fatalf("unexpected folders %+v", folders)
	}
	stats, err := v.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two import folders, two root subfolders and "Dev" in the first,
	// two root subfolders and "Dev" in the second.
	if stats.Bookmarks != 2 || stats.Folders != 8 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestVaultImportBookmarksSkipsEmptyRoots(t *testing.T) {
	v, _ := openTestVault(t)
	ctx := context.Background()
	tree := dataimport.NewBookmarkTree()
	tree.OtherBookmarks.Children = []*dataimport.BookmarkNode{{Title: "A", URL: "https://a.example/"}}

	if _, err := v.ImportBookmarks(ctx, tree, "Imported Bookmarks"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var titles []string
	rows, err := v.db.Query(`SELECT title FROM bookmarks WHERE is_folder = 1 ORDER BY id`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		titles = append(titles, title)
	}
	if strings.Join(titles, "|") != "Imported Bookmarks|Other Bookmarks" {
		t.Fatalf("unexpected folders %v", titles)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"HTTPS://Example.COM/":      "https://example.com",
		"https://example.com/Path/": "https://example.com/Path",
		"android://hash@com.app/":   "android://hash@com.app",
		"  plain text ":             "plain text",
	}
	for in, want := range tests {
		if got := normalizeURL(in); got != want {
			t.Errorf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
