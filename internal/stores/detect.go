package stores

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// FileFormat is the sniffed format of a manually selected file.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatSQLite
	FormatBookmarksHTML
	FormatJSON
	FormatDelimited
)

func (f FileFormat) String() string {
	switch f {
	case FormatSQLite:
		return "SQLite database"
	case FormatBookmarksHTML:
		return "HTML bookmarks"
	case FormatJSON:
		return "JSON"
	case FormatDelimited:
		return "delimited text"
	default:
		return "unknown"
	}
}

// sqliteMagic is the first 16 bytes of any SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

// DetectFileFormat sniffs the first bytes of the file at path.
func DetectFileFormat(path string) (FileFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("error: cannot open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, fmt.Errorf("error: cannot read file: %w", err)
	}
	return sniff(head[:n]), nil
}

func sniff(head []byte) FileFormat {
	if bytes.HasPrefix(head, sqliteMagic) {
		return FormatSQLite
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	lower := bytes.ToLower(trimmed)
	if bytes.HasPrefix(lower, []byte("<!doctype netscape-bookmark-file")) ||
		(lower[0] == '<' && (bytes.Contains(lower, []byte("<dl")) || bytes.Contains(lower, []byte("<dt")))) {
		return FormatBookmarksHTML
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return FormatJSON
	}
	return FormatDelimited
}
