package profiles

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/warpdl/warpimport/internal/dataimport"
)

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	env := map[string]string{
		"LOCALAPPDATA": filepath.FromSlash("/home/u/AppData/Local"),
		"APPDATA":      filepath.FromSlash("/home/u/AppData/Roaming"),
	}
	return &Locator{
		Fs:     afero.NewMemMapFs(),
		Home:   filepath.FromSlash("/home/u"),
		Getenv: func(k string) string { return env[k] },
	}
}

func rootOf(t *testing.T, l *Locator, src dataimport.Source) string {
	t.Helper()
	roots := l.storageRoots(src)
	if len(roots) == 0 {
		t.Fatalf("no storage root for %s", src)
	}
	return roots[0]
}

func touch(t *testing.T, fs afero.Fs, path string, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDiscoverChromium(t *testing.T) {
	l := newTestLocator(t)
	root := rootOf(t, l, dataimport.Chrome)
	touch(t, l.Fs, filepath.Join(root, "Local State"), `{"profile":{"last_used":"Profile 1"}}`)
	touch(t, l.Fs, filepath.Join(root, "Default", "Login Data"), "x")
	touch(t, l.Fs, filepath.Join(root, "Default", "Bookmarks"), "{}")
	touch(t, l.Fs, filepath.Join(root, "Default", "Preferences"), `{"profile":{"name":"Person 1"}}`)
	touch(t, l.Fs, filepath.Join(root, "Profile 1", "Bookmarks"), "{}")
	touch(t, l.Fs, filepath.Join(root, "Profile 1", "Preferences"), `{"profile":{"name":"Work"}}`)
	touch(t, l.Fs, filepath.Join(root, "Guest Profile", "Bookmarks"), "{}")
	touch(t, l.Fs, filepath.Join(root, "System Profile", "Login Data"), "x")
	touch(t, l.Fs, filepath.Join(root, "Crashpad", "settings.dat"), "x")
	touch(t, l.Fs, filepath.Join(root, "Profile 2", "Preferences"), `{}`)

	got, err := l.Discover(dataimport.Chrome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d profiles, want 2: %+v", len(got), got)
	}
	if got[0].Name != "Work" || !got[0].Default {
		t.Fatalf("expected the last used profile first, got %+v", got[0])
	}
	if got[1].Name != "Person 1" || got[1].Default {
		t.Fatalf("unexpected second profile %+v", got[1])
	}
	if !got[1].Has(dataimport.Passwords) || !got[1].Has(dataimport.Bookmarks) {
		t.Fatalf("expected both data types, got %v", got[1].DataTypes)
	}
	if got[0].Has(dataimport.Passwords) {
		t.Fatalf("Profile 1 has no login data, got %v", got[0].DataTypes)
	}
}

func TestDiscoverChromiumAccountStore(t *testing.T) {
	l := newTestLocator(t)
	root := rootOf(t, l, dataimport.Edge)
	touch(t, l.Fs, filepath.Join(root, "Default", "Login Data For Account"), "x")

	got, err := l.Discover(dataimport.Edge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !got[0].Has(dataimport.Passwords) || !got[0].Default {
		t.Fatalf("unexpected profiles %+v", got)
	}
}

func TestDiscoverUnsupportedTypesIgnored(t *testing.T) {
	l := newTestLocator(t)
	root := rootOf(t, l, dataimport.Yandex)
	touch(t, l.Fs, filepath.Join(root, "Default", "Login Data"), "x")

	got, err := l.Discover(dataimport.Yandex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no profiles for a bookmarks-only source with only logins, got %+v", got)
	}
}

func TestDiscoverFirefox(t *testing.T) {
	l := newTestLocator(t)
	root := rootOf(t, l, dataimport.Firefox)
	touch(t, l.Fs, filepath.Join(root, "ab12.default", "places.sqlite"), "x")
	touch(t, l.Fs, filepath.Join(root, "cd34.default-release", "places.sqlite"), "x")
	touch(t, l.Fs, filepath.Join(root, "cd34.default-release", "logins.json"), "{}")
	touch(t, l.Fs, filepath.Join(root, "cd34.default-release", "key4.db"), "x")
	touch(t, l.Fs, filepath.Join(root, "ef56.dev", "logins.json"), "{}")
	touch(t, l.Fs, filepath.Join(root, "Crash Reports", "InstallTime"), "1")

	got, err := l.Discover(dataimport.Firefox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d profiles, want 2: %+v", len(got), got)
	}
	// No profiles.ini: the conventional default-release profile wins.
	if got[0].Name != "default-release" || !got[0].Default {
		t.Fatalf("unexpected default %+v", got[0])
	}
	if !got[0].Has(dataimport.Passwords) {
		t.Fatalf("expected passwords, got %v", got[0].DataTypes)
	}
	if got[1].Name != "default" || got[1].Has(dataimport.Passwords) {
		t.Fatalf("unexpected second profile %+v", got[1])
	}
}

func TestDiscoverFirefoxProfilesIni(t *testing.T) {
	l := newTestLocator(t)
	root := rootOf(t, l, dataimport.Firefox)
	touch(t, l.Fs, filepath.Join(root, "ab12.default", "places.sqlite"), "x")
	touch(t, l.Fs, filepath.Join(root, "cd34.default-release", "places.sqlite"), "x")
	ini := "[Install4F96D1932A9F858E]\nDefault=" + filepath.ToSlash(filepath.Join(filepath.Base(root), "ab12.default")) + "\n"
	touch(t, l.Fs, filepath.Join(filepath.Dir(root), "profiles.ini"), ini)
	// Also written next to the profiles for layouts that keep it there.
	touch(t, l.Fs, filepath.Join(root, "profiles.ini"), "[Install4F96D1932A9F858E]\nDefault=ab12.default\n")

	got, err := l.Discover(dataimport.Firefox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, ok := DefaultProfile(got)
	if !ok || def.Name != "default" {
		t.Fatalf("expected ab12.default as default, got %+v", got)
	}
}

func TestDiscoverNotInstalled(t *testing.T) {
	l := newTestLocator(t)
	got, err := l.Discover(dataimport.Brave)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", got)
	}
}

func TestDiscoverFileSource(t *testing.T) {
	l := newTestLocator(t)
	if _, err := l.Discover(dataimport.CSV); err == nil {
		t.Fatal("expected error for a file-only source")
	}
	if _, err := l.Discover(dataimport.Source("netscape")); err == nil {
		t.Fatal("expected error for an unknown source")
	}
}

func TestFirefoxProfileName(t *testing.T) {
	tests := map[string]string{
		"x8k2j1.default-release": "default-release",
		"abc.dev.edition":        "dev.edition",
		"plain":                  "plain",
		"trailing.":              "trailing.",
	}
	for in, want := range tests {
		if got := firefoxProfileName(in); got != want {
			t.Errorf("firefoxProfileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMarkDefaultOnlyProfile(t *testing.T) {
	ps := []BrowserProfile{{Path: filepath.FromSlash("/r/Profile 3")}}
	markDefault(ps, dataimport.FamilyChromium)
	if !ps[0].Default {
		t.Fatal("the only profile should be the default")
	}
}

func TestMarkDefaultFirstWhenNoHint(t *testing.T) {
	ps := []BrowserProfile{
		{Path: filepath.FromSlash("/r/Profile 3")},
		{Path: filepath.FromSlash("/r/Profile 4")},
	}
	markDefault(ps, dataimport.FamilyChromium)
	if !ps[0].Default || ps[1].Default {
		t.Fatalf("expected first profile as default, got %+v", ps)
	}
}
