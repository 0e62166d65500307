//go:build unix

package profiles

import (
	"path/filepath"
	"runtime"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// storageRoots returns the candidate storage roots of source under the
// locator's home directory, most common location first.
func (l *Locator) storageRoots(source dataimport.Source) []string {
	if runtime.GOOS == "darwin" {
		return darwinRoots(l.Home, source)
	}
	return linuxRoots(l.Home, source)
}

func darwinRoots(home string, source dataimport.Source) []string {
	support := filepath.Join(home, "Library", "Application Support")
	rel := map[dataimport.Source][]string{
		dataimport.Brave:     {"BraveSoftware/Brave-Browser"},
		dataimport.Chrome:    {"Google/Chrome"},
		dataimport.Chromium:  {"Chromium"},
		dataimport.CocCoc:    {"Coccoc"},
		dataimport.Edge:      {"Microsoft Edge"},
		dataimport.Opera:     {"com.operasoftware.Opera"},
		dataimport.OperaGX:   {"com.operasoftware.OperaGX"},
		dataimport.Vivaldi:   {"Vivaldi"},
		dataimport.Yandex:    {"Yandex/YandexBrowser"},
		dataimport.Firefox:   {"Firefox/Profiles"},
		dataimport.LibreWolf: {"librewolf/Profiles"},
		dataimport.Tor:       {"TorBrowser-Data/Browser"},
	}[source]
	return joinAll(support, rel)
}

func linuxRoots(home string, source dataimport.Source) []string {
	rel := map[dataimport.Source][]string{
		dataimport.Brave: {
			".config/BraveSoftware/Brave-Browser",
			"snap/brave/current/.config/BraveSoftware/Brave-Browser",
			".var/app/com.brave.Browser/config/BraveSoftware/Brave-Browser",
		},
		dataimport.Chrome: {
			".config/google-chrome",
			".var/app/com.google.Chrome/config/google-chrome",
		},
		dataimport.Chromium: {
			".config/chromium",
			"snap/chromium/common/chromium",
			".var/app/org.chromium.Chromium/config/chromium",
		},
		dataimport.CocCoc:  {".config/coccoc"},
		dataimport.Edge:    {".config/microsoft-edge", ".var/app/com.microsoft.Edge/config/microsoft-edge"},
		dataimport.Opera:   {".config/opera", "snap/opera/current/.config/opera"},
		dataimport.Vivaldi: {".config/vivaldi", ".var/app/com.vivaldi.Vivaldi/config/vivaldi"},
		dataimport.Yandex:  {".config/yandex-browser"},
		dataimport.Firefox: {
			".mozilla/firefox",
			"snap/firefox/common/.mozilla/firefox",
			".var/app/org.mozilla.firefox/.mozilla/firefox",
		},
		dataimport.LibreWolf: {".librewolf", ".var/app/io.gitlab.librewolf-community/.librewolf"},
		dataimport.Tor:       {".local/share/torbrowser/tbb/x86_64/tor-browser/Browser/TorBrowser/Data/Browser"},
	}[source]
	return joinAll(home, rel)
}

func joinAll(base string, rel []string) []string {
	out := make([]string, 0, len(rel))
	for _, r := range rel {
		out = append(out, filepath.Join(base, filepath.FromSlash(r)))
	}
	return out
}
