package cmd

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for export files named on the command line.
var (
	// ErrInputFileNotFound is returned when the input file does not exist.
	ErrInputFileNotFound = errors.New("input file not found")
	// ErrInputFilePermission is returned when the input file cannot be read due to permissions.
	ErrInputFilePermission = errors.New("permission denied reading input file")
	// ErrInputFileEmpty is returned when the input file has no content.
	ErrInputFileEmpty = errors.New("input file is empty")
	ErrInputFileIsDir = errors.New("input file is a directory")
)

// InputFileError wraps input file errors with additional context.
type InputFileError struct {
	Path string
	Err  error
}

func (e *InputFileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Path)
}

func (e *InputFileError) Unwrap() error {
	return e.Err
}

// NewInputFileError creates a new InputFileError with the given path and error.
func NewInputFileError(path string, err error) *InputFileError {
	return &InputFileError{Path: path, Err: err}
}

// CheckInputFile makes sure an export file can be handed to the importer:
// it must exist, be a regular readable file and not be empty. The format
// itself is checked by the importer.
func CheckInputFile(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return wrapInputFileError(filePath, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return wrapInputFileError(filePath, err)
	}
	if st.IsDir() {
		return NewInputFileError(filePath, ErrInputFileIsDir)
	}
	if st.Size() == 0 {
		return NewInputFileError(filePath, ErrInputFileEmpty)
	}
	return nil
}

// wrapInputFileError converts OS-level errors to domain-specific errors.
func wrapInputFileError(path string, err error) error {
	if os.IsNotExist(err) {
		return NewInputFileError(path, ErrInputFileNotFound)
	}
	if os.IsPermission(err) {
		return NewInputFileError(path, ErrInputFilePermission)
	}
	return NewInputFileError(path, err)
}
