package main

import (
	"fmt"
	"io"
	"os"

	"github.com/warpdl/warpimport/cmd"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

var (
	osExit           = os.Exit
	stderr io.Writer = os.Stderr
)

// runMain returns the process exit code for one invocation.
func runMain(args []string, execute func([]string) error) int {
	err := execute(args)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "warpimport: %v\n", err)
	return 1
}

func main() {
	bArgs := cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	}
	osExit(runMain(os.Args, func(args []string) error {
		return cmd.Execute(args, bArgs)
	}))
}
