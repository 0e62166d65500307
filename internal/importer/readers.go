package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/stores"
)

// readRequest carries the inputs a profile reader may need.
type readRequest struct {
	profileDir  string
	keyMaterial []byte
	password    string
}

// records is the complete output of one reader.
type records struct {
	credentials []dataimport.Credential
	tree        *dataimport.BookmarkTree
}

type readerFunc func(ctx context.Context, req readRequest) (records, error)

type reader struct {
	read readerFunc
	// needsKey means the OS key material is fetched before reading.
	needsKey bool
}

type readerKey struct {
	family   dataimport.Family
	dataType dataimport.DataType
}

// profileReaders maps a store family and data type onto its reader.
var profileReaders = map[readerKey]reader{
	{dataimport.FamilyChromium, dataimport.Passwords}: {
		needsKey: true,
		read: func(ctx context.Context, req readRequest) (records, error) {
			creds, err := stores.ReadChromiumLogins(ctx, req.profileDir, req.keyMaterial)
			return records{credentials: creds}, err
		},
	},
	{dataimport.FamilyChromium, dataimport.Bookmarks}: {
		read: func(ctx context.Context, req readRequest) (records, error) {
			tree, err := stores.ReadChromiumBookmarks(ctx, req.profileDir)
			return records{tree: tree}, err
		},
	},
	{dataimport.FamilyFirefox, dataimport.Passwords}: {
		read: func(ctx context.Context, req readRequest) (records, error) {
			creds, err := stores.ReadFirefoxCredentials(ctx, req.profileDir, req.password)
			return records{credentials: creds}, err
		},
	},
	{dataimport.FamilyFirefox, dataimport.Bookmarks}: {
		read: func(ctx context.Context, req readRequest) (records, error) {
			tree, err := stores.ReadFirefoxBookmarks(ctx, req.profileDir)
			return records{tree: tree}, err
		},
	},
}

type fileReaderFunc func(ctx context.Context, r io.Reader, source dataimport.Source) (records, error)

// fileReaders read manually selected export files.
var fileReaders = map[dataimport.DataType]fileReaderFunc{
	dataimport.Passwords: func(ctx context.Context, r io.Reader, source dataimport.Source) (records, error) {
		creds, err := stores.ReadCSVLogins(ctx, r, stores.CSVOptions{Source: source})
		return records{credentials: creds}, err
	},
	dataimport.Bookmarks: func(ctx context.Context, r io.Reader, _ dataimport.Source) (records, error) {
		tree, err := stores.ReadBookmarksHTML(ctx, r, stores.HTMLOptions{})
		return records{tree: tree}, err
	},
}

// checkFileFormat rejects files that cannot hold an export of dt, with a
// hint naming what the user picked.
func checkFileFormat(dt dataimport.DataType, format stores.FileFormat) *dataimport.ImportError {
	switch format {
	case stores.FormatSQLite, stores.FormatJSON:
		return dataimport.Errorf(dataimport.CategoryDataCorrupted,
			"error: selected file is a %s, not an exported %s file", format, dt)
	case stores.FormatBookmarksHTML:
		if dt == dataimport.Passwords {
			return dataimport.Errorf(dataimport.CategoryDataCorrupted,
				"error: selected file holds bookmarks, expected a passwords CSV export")
		}
	}
	return nil
}

func (r records) String() string {
	if r.tree != nil {
		return fmt.Sprintf("%d bookmarks", r.tree.Leaves())
	}
	return fmt.Sprintf("%d credentials", len(r.credentials))
}
