package profiles

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// parseProfilesIni parses a Firefox-style profiles.ini file and returns the
// absolute path to the default profile directory.
//
// Priority:
//  1. [Install*] section Default= key, used by modern Firefox
//  2. [Profile*] section with Default=1, for older installs
//
// Relative paths are resolved against the directory of the ini file unless
// the section sets IsRelative=0. Returns an empty string if the file does
// not exist, cannot be read, or names no default profile.
func parseProfilesIni(fs afero.Fs, iniPath string) string {
	f, err := fs.Open(iniPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	iniDir := filepath.Dir(iniPath)
	resolve := func(val string, relative bool) string {
		if !relative {
			return filepath.Clean(val)
		}
		return filepath.Join(iniDir, filepath.FromSlash(val))
	}

	var (
		installDefault string
		profileDefault string
		inInstall      bool
		inProfile      bool
		currentPath    string
		currentRel     = true
		currentDefault bool
	)
	flush := func() {
		if inProfile && currentDefault && profileDefault == "" && currentPath != "" {
			profileDefault = resolve(currentPath, currentRel)
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			flush()
			section := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			inInstall = strings.HasPrefix(section, "Install")
			inProfile = strings.HasPrefix(section, "Profile")
			currentPath, currentRel, currentDefault = "", true, false
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key, val := strings.TrimSpace(k), strings.TrimSpace(v)
		switch {
		case inInstall && key == "Default" && installDefault == "":
			installDefault = resolve(val, true)
		case inProfile && key == "Path":
			currentPath = val
		case inProfile && key == "IsRelative":
			currentRel = val != "0"
		case inProfile && key == "Default" && val == "1":
			currentDefault = true
		}
	}
	flush()

	if installDefault != "" {
		return installDefault
	}
	return profileDefault
}
