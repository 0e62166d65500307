package cmd

import (
	"log"
	"os"
	"path/filepath"

	envcfg "github.com/warpdl/warpimport/common"
	"github.com/warpdl/warpimport/pkg/logger"
)

var stderrLog = func() *log.Logger { return log.New(os.Stderr, "", 0) }

// newLogger is silent unless DebugEnv is set; then it writes to stderr and
// appends to the debug log in configDir.
func newLogger(configDir string) logger.Logger {
	if os.Getenv(envcfg.DebugEnv) == "" {
		return logger.NewNopLogger()
	}
	console := logger.NewComponentLogger(stderrLog(), "warpimport")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		console.Warning("debug log unavailable: %v", err)
		return console
	}
	fl, err := logger.NewFileLogger(filepath.Join(configDir, envcfg.DebugLogFileName))
	if err != nil {
		console.Warning("debug log unavailable: %v", err)
		return console
	}
	return logger.NewMultiLogger(console, fl)
}
