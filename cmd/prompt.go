package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// terminalUI asks the questions of an interactive import. With yes set
// it never reads input: files come only from the command line and locked
// stores are left alone.
type terminalUI struct {
	mu    sync.Mutex
	in    *bufio.Reader
	fd    int
	out   io.Writer
	files []string
	yes   bool
}

func newTerminalUI(in io.Reader, out io.Writer, files []string, yes bool) *terminalUI {
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &terminalUI{
		in:    bufio.NewReader(in),
		fd:    fd,
		out:   out,
		files: files,
		yes:   yes,
	}
}

func (u *terminalUI) readLine() (string, error) {
	s, err := u.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// RequestPassword asks for the primary password of a locked profile
// without echoing it.
func (u *terminalUI) RequestPassword(ctx context.Context, source dataimport.Source) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.yes || ctx.Err() != nil {
		return "", false
	}
	fmt.Fprintf(u.out, "%s is protected by a primary password.\nPassword (empty to cancel): ", source.MustInfo().Name)
	var line string
	err := withoutEcho(u.fd, func() error {
		var err error
		line, err = u.readLine()
		return err
	})
	fmt.Fprintln(u.out)
	if err != nil || line == "" {
		return "", false
	}
	return line, true
}

// confirm asks a yes/no question; anything but y or yes is no.
func (u *terminalUI) confirm(question string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.yes {
		return false
	}
	fmt.Fprintf(u.out, "%s [y/N] ", question)
	line, err := u.readLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// nextFile returns the export file to import dt from: the next --file
// argument, or a path typed by the user. ok is false to skip dt.
func (u *terminalUI) nextFile(dt dataimport.DataType, name string) (path string, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.files) > 0 {
		path, u.files = u.files[0], u.files[1:]
		return path, true
	}
	if u.yes {
		return "", false
	}
	fmt.Fprintf(u.out, "Path to a %s file exported from %s (empty to skip): ", dt, name)
	line, err := u.readLine()
	if err != nil {
		return "", false
	}
	path = strings.TrimSpace(line)
	return path, path != ""
}
