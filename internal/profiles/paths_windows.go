//go:build windows

package profiles

import (
	"path/filepath"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// storageRoots returns the candidate storage roots of source. Chromium
// browsers live under LOCALAPPDATA, Firefox browsers under APPDATA.
func (l *Locator) storageRoots(source dataimport.Source) []string {
	return windowsRoots(l.getenv("LOCALAPPDATA"), l.getenv("APPDATA"), source)
}

func windowsRoots(localAppData, appData string, source dataimport.Source) []string {
	local := map[dataimport.Source]string{
		dataimport.Brave:    `BraveSoftware\Brave-Browser\User Data`,
		dataimport.Chrome:   `Google\Chrome\User Data`,
		dataimport.Chromium: `Chromium\User Data`,
		dataimport.CocCoc:   `CocCoc\Browser\User Data`,
		dataimport.Edge:     `Microsoft\Edge\User Data`,
		dataimport.Vivaldi:  `Vivaldi\User Data`,
		dataimport.Yandex:   `Yandex\YandexBrowser\User Data`,
	}
	roaming := map[dataimport.Source]string{
		dataimport.Opera:     `Opera Software\Opera Stable`,
		dataimport.OperaGX:   `Opera Software\Opera GX Stable`,
		dataimport.Firefox:   `Mozilla\Firefox\Profiles`,
		dataimport.LibreWolf: `LibreWolf\Profiles`,
	}
	if rel, ok := local[source]; ok && localAppData != "" {
		return []string{filepath.Join(localAppData, rel)}
	}
	if rel, ok := roaming[source]; ok && appData != "" {
		return []string{filepath.Join(appData, rel)}
	}
	return nil
}
