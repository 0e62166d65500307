// Package common provides the environment variable names and
// configuration locations shared by the CLI and the credential store.
package common

import (
	"os"
	"path/filepath"
)

// Environment variable names for configuration.
const (
	// ConfigDirEnv overrides the directory holding the vault and logs.
	ConfigDirEnv = "WARPIMPORT_CONFIG_DIR"

	// DebugEnv enables debug logging to a file in the config directory.
	DebugEnv = "WARPIMPORT_DEBUG"

	// KeyMaterialEnv is a hex-encoded browser safe-storage secret used
	// instead of asking the OS keyring.
	KeyMaterialEnv = "WARPIMPORT_KEY_MATERIAL"

	// VaultKeyEnv is a hex-encoded 32-byte vault key used instead of the
	// key held in the OS keyring.
	VaultKeyEnv = "WARPIMPORT_VAULT_KEY"
)

// Files inside the config directory.
const (
	VaultFileName    = "vault.db"
	DebugLogFileName = "debug.log"
)

// ConfigDir returns the directory named by ConfigDirEnv, or
// "warpimport" under the user's config directory.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "warpimport"), nil
}
