package common

import (
	"path/filepath"
	"testing"
)

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("ConfigDir() = %q, want %q", got, dir)
	}
}

func TestConfigDirDefault(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	got, err := ConfigDir()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	if filepath.Base(got) != "warpimport" {
		t.Errorf("ConfigDir() = %q, want a warpimport directory", got)
	}
}
