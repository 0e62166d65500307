package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warpdl/warpimport/internal/dataimport"
	_ "modernc.org/sqlite"
)

// snapshotName is the file name the snapshot copy is stored under. A fixed
// name keeps the -wal and -shm companions paired with the main file.
const snapshotName = "snapshot.sqlite"

// SnapshotSQLite copies a SQLite store (and its -wal and -shm companions if
// they exist) to a temporary directory. This prevents locking conflicts with
// the browser that owns the database.
//
// Returns the path of the copy and a cleanup function that removes it. The
// caller MUST call cleanup when done.
func SnapshotSQLite(srcPath string) (string, func(), error) {
	info, err := os.Stat(srcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, dataimport.Errorf(dataimport.CategoryNoData, "error: store not found: %s", filepath.Base(srcPath))
	}
	if err != nil {
		return "", nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot stat store: %w", err))
	}
	if info.IsDir() {
		return "", nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: %s is a directory, expected a database file", filepath.Base(srcPath))
	}
	if info.Size() == 0 {
		return "", nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: store %s is empty", filepath.Base(srcPath))
	}

	tempDir, err := os.MkdirTemp("", "warpimport-store-*")
	if err != nil {
		return "", nil, dataimport.NewError(dataimport.CategorySystemError, fmt.Errorf("error: cannot create temp directory: %w", err))
	}
	cleanup := func() {
		os.RemoveAll(tempDir)
	}

	dst := filepath.Join(tempDir, snapshotName)
	if err := copyFile(srcPath, dst); err != nil {
		cleanup()
		return "", nil, dataimport.NewError(dataimport.CategoryDataCorrupted, err)
	}
	// Copy WAL and SHM if they exist (best-effort)
	for _, suffix := range []string{"-wal", "-shm"} {
		companion := srcPath + suffix
		if _, err := os.Stat(companion); err == nil {
			_ = copyFile(companion, dst+suffix)
		}
	}
	return dst, cleanup, nil
}

// openSnapshot snapshots the SQLite store at path and opens the copy. The
// returned close function releases the handle and removes the copy.
func openSnapshot(path string) (*sql.DB, func(), error) {
	copyPath, cleanup, err := SnapshotSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite", copyPath)
	if err != nil {
		cleanup()
		return nil, nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot open %s: %w", filepath.Base(path), err))
	}
	return db, func() {
		db.Close()
		cleanup()
	}, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error: cannot open source file %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error: cannot create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("error: cannot copy file: %w", err)
	}
	return nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
