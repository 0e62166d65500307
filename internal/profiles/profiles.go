// Package profiles finds the browser profiles installed for a source.
//
// Discovery only probes for marker files; it never opens a store. The
// readers in package stores decide later whether a profile's data can
// actually be read.
package profiles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/stores"
)

// BrowserProfile is one profile directory of a browser.
type BrowserProfile struct {
	Source dataimport.Source
	// Path is the absolute profile directory.
	Path string
	// Name is the display name.
	Name string
	// Default marks the profile the browser itself uses by default.
	Default bool
	// DataTypes lists the types whose marker files are present.
	DataTypes []dataimport.DataType
}

// Has reports whether the profile holds data of the given type.
func (p BrowserProfile) Has(dt dataimport.DataType) bool {
	for _, t := range p.DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// Locator discovers profiles on a filesystem.
type Locator struct {
	Fs afero.Fs
	// Home is the user's home directory.
	Home string
	// Getenv resolves environment variables for Windows storage roots.
	Getenv func(string) string
}

// NewLocator returns a Locator over the OS filesystem and the current
// user's home directory.
func NewLocator() (*Locator, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error: cannot resolve home directory: %w", err)
	}
	return &Locator{Fs: afero.NewOsFs(), Home: home, Getenv: os.Getenv}, nil
}

func (l *Locator) getenv(key string) string {
	if l.Getenv == nil {
		return ""
	}
	return l.Getenv(key)
}

// Discover lists the profiles of source that hold data of at least one
// supported type, default first and then by display name. A source that
// is not installed yields an empty list.
func (l *Locator) Discover(source dataimport.Source) ([]BrowserProfile, error) {
	info, ok := source.Info()
	if !ok {
		return nil, fmt.Errorf("error: unknown source %q", string(source))
	}
	if !info.ProfileBased() {
		return nil, fmt.Errorf("error: %s is imported from files, not profiles", info.Name)
	}

	var out []BrowserProfile
	for _, root := range l.storageRoots(source) {
		isDir, err := afero.DirExists(l.Fs, root)
		if err != nil || !isDir {
			continue
		}
		var found []BrowserProfile
		switch info.Family {
		case dataimport.FamilyChromium:
			found, err = l.chromiumProfiles(source, info, root)
		case dataimport.FamilyFirefox:
			found, err = l.firefoxProfiles(source, info, root)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	markDefault(out, info.Family)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Default != out[j].Default {
			return out[i].Default
		}
		return out[i].Name < out[j].Name
	})
	if out == nil {
		out = []BrowserProfile{}
	}
	return out, nil
}

// DefaultProfile returns the default entry of a Discover result.
func DefaultProfile(profiles []BrowserProfile) (BrowserProfile, bool) {
	for _, p := range profiles {
		if p.Default {
			return p, true
		}
	}
	return BrowserProfile{}, false
}

func (l *Locator) exists(path string) bool {
	ok, err := afero.Exists(l.Fs, path)
	return err == nil && ok
}

func (l *Locator) anyExists(dir string, names ...string) bool {
	for _, n := range names {
		if l.exists(filepath.Join(dir, n)) {
			return true
		}
	}
	return false
}

func (l *Locator) subdirs(root string) ([]string, error) {
	entries, err := afero.ReadDir(l.Fs, root)
	if err != nil {
		return nil, fmt.Errorf("error: cannot list %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func supported(info dataimport.SourceInfo, probes map[dataimport.DataType]bool) []dataimport.DataType {
	var out []dataimport.DataType
	for _, dt := range info.DataTypes {
		if probes[dt] {
			out = append(out, dt)
		}
	}
	return dataimport.SortDataTypes(out)
}

// Chromium keeps these next to real profiles.
var chromiumSkipped = map[string]bool{
	"System Profile": true,
	"Guest Profile":  true,
}

func (l *Locator) chromiumProfiles(source dataimport.Source, info dataimport.SourceInfo, root string) ([]BrowserProfile, error) {
	dirs, err := l.subdirs(root)
	if err != nil {
		return nil, err
	}
	lastUsed := l.chromiumLastUsed(root)
	candidates := make([]string, 0, len(dirs)+1)
	for _, d := range dirs {
		if chromiumSkipped[d] {
			continue
		}
		if d == "Default" || strings.HasPrefix(d, "Profile ") || l.exists(filepath.Join(root, d, "Preferences")) {
			candidates = append(candidates, filepath.Join(root, d))
		}
	}
	// Opera keeps its only profile in the storage root itself.
	if l.exists(filepath.Join(root, "Preferences")) {
		candidates = append(candidates, root)
	}

	var out []BrowserProfile
	for _, dir := range candidates {
		types := supported(info, map[dataimport.DataType]bool{
			dataimport.Passwords: l.anyExists(dir, stores.ChromiumLoginData, stores.ChromiumLoginDataForAccount),
			dataimport.Bookmarks: l.exists(filepath.Join(dir, stores.ChromiumBookmarksFile)),
		})
		if len(types) == 0 {
			continue
		}
		base := filepath.Base(dir)
		name := l.chromiumProfileName(dir)
		if dir == root {
			name, base = info.Name, ""
		}
		out = append(out, BrowserProfile{
			Source:    source,
			Path:      dir,
			Name:      name,
			Default:   lastUsed != "" && base == lastUsed,
			DataTypes: types,
		})
	}
	return out, nil
}

type chromiumPreferences struct {
	Profile struct {
		Name     string `json:"name"`
		LastUsed string `json:"last_used"`
	} `json:"profile"`
}

func (l *Locator) readPreferences(path string) (chromiumPreferences, bool) {
	var p chromiumPreferences
	raw, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	return p, true
}

func (l *Locator) chromiumProfileName(dir string) string {
	if p, ok := l.readPreferences(filepath.Join(dir, "Preferences")); ok && p.Profile.Name != "" {
		return p.Profile.Name
	}
	return filepath.Base(dir)
}

// chromiumLastUsed reads the directory name of the last used profile from
// the "Local State" file of the storage root.
func (l *Locator) chromiumLastUsed(root string) string {
	if p, ok := l.readPreferences(filepath.Join(root, "Local State")); ok {
		return p.Profile.LastUsed
	}
	return ""
}

func (l *Locator) firefoxProfiles(source dataimport.Source, info dataimport.SourceInfo, root string) ([]BrowserProfile, error) {
	dirs, err := l.subdirs(root)
	if err != nil {
		return nil, err
	}
	defaultDir := ""
	for _, ini := range []string{filepath.Join(root, "profiles.ini"), filepath.Join(filepath.Dir(root), "profiles.ini")} {
		if defaultDir = parseProfilesIni(l.Fs, ini); defaultDir != "" {
			break
		}
	}

	var out []BrowserProfile
	for _, d := range dirs {
		dir := filepath.Join(root, d)
		hasKeys := l.anyExists(dir, stores.FirefoxKey4DB, stores.FirefoxKey3DB)
		types := supported(info, map[dataimport.DataType]bool{
			dataimport.Passwords: hasKeys && l.exists(filepath.Join(dir, stores.FirefoxLoginsFile)),
			dataimport.Bookmarks: l.exists(filepath.Join(dir, stores.FirefoxPlacesFile)),
		})
		if len(types) == 0 {
			continue
		}
		out = append(out, BrowserProfile{
			Source:    source,
			Path:      dir,
			Name:      firefoxProfileName(d),
			Default:   defaultDir != "" && filepath.Clean(defaultDir) == filepath.Clean(dir),
			DataTypes: types,
		})
	}
	return out, nil
}

// firefoxProfileName strips the random prefix of a profile directory:
// "x8k2j1.default-release" is shown as "default-release".
func firefoxProfileName(dir string) string {
	if _, name, ok := strings.Cut(dir, "."); ok && name != "" {
		return name
	}
	return dir
}

// markDefault keeps at most one default. When no profile is marked by the
// browser's own metadata, the only profile, then the conventional default
// directory, then the first profile is chosen.
func markDefault(profiles []BrowserProfile, family dataimport.Family) {
	if len(profiles) == 0 {
		return
	}
	chosen := -1
	for i, p := range profiles {
		if p.Default && chosen < 0 {
			chosen = i
		}
		profiles[i].Default = false
	}
	if chosen < 0 && len(profiles) == 1 {
		chosen = 0
	}
	if chosen < 0 {
		conventional := "Default"
		if family == dataimport.FamilyFirefox {
			conventional = "default-release"
		}
		for i, p := range profiles {
			name := filepath.Base(p.Path)
			if family == dataimport.FamilyFirefox {
				name = firefoxProfileName(name)
			}
			if name == conventional {
				chosen = i
				break
			}
		}
	}
	if chosen < 0 {
		chosen = 0
	}
	profiles[chosen].Default = true
}
