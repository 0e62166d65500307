package dataimport

import (
	"errors"
	"fmt"
)

// Category classifies an ImportError.
type Category int

const (
	// CategoryNoData means the expected file or table was absent.
	CategoryNoData Category = iota
	// CategoryDataCorrupted means the input was structurally invalid.
	CategoryDataCorrupted
	// CategoryDecryptionFailed means a key was available but secrets did not decrypt.
	CategoryDecryptionFailed
	// CategoryRequiresSecondaryPassword means the store is locked by a
	// secondary password that was missing or wrong.
	CategoryRequiresSecondaryPassword
	// CategoryKeyMaterialDenied means the OS secret store refused to hand
	// out key material.
	CategoryKeyMaterialDenied
	// CategorySystemError is an opaque OS failure; the code is kept.
	CategorySystemError
)

// Sentinels matched by ImportError.Is, one per category.
var (
	ErrNoData                    = errors.New("no data")
	ErrDataCorrupted             = errors.New("data corrupted")
	ErrDecryptionFailed          = errors.New("decryption failed")
	ErrRequiresSecondaryPassword = errors.New("secondary password required")
	ErrKeyMaterialDenied         = errors.New("key material denied")
	ErrSystem                    = errors.New("system error")
)

var categorySentinels = map[Category]error{
	CategoryNoData:                    ErrNoData,
	CategoryDataCorrupted:             ErrDataCorrupted,
	CategoryDecryptionFailed:          ErrDecryptionFailed,
	CategoryRequiresSecondaryPassword: ErrRequiresSecondaryPassword,
	CategoryKeyMaterialDenied:         ErrKeyMaterialDenied,
	CategorySystemError:               ErrSystem,
}

func (c Category) String() string {
	switch c {
	case CategoryNoData:
		return "noData"
	case CategoryDataCorrupted:
		return "dataCorrupted"
	case CategoryDecryptionFailed:
		return "decryptionFailed"
	case CategoryRequiresSecondaryPassword:
		return "requiresSecondaryPassword"
	case CategoryKeyMaterialDenied:
		return "keyMaterialDenied"
	case CategorySystemError:
		return "systemError"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Recoverable reports whether the orchestrator can recover the category
// locally by prompting and retrying.
func (c Category) Recoverable() bool {
	return c == CategoryRequiresSecondaryPassword || c == CategoryKeyMaterialDenied
}

// ImportError is the typed failure every reader entry point returns.
type ImportError struct {
	// DataType is set by the orchestrator through WithType.
	DataType DataType
	typed    bool
	Category Category
	// Code is the OS error code for CategorySystemError.
	Code int
	// Err is the underlying cause, if any.
	Err error
}

func (e *ImportError) Error() string {
	msg := e.Category.String()
	if e.Category == CategorySystemError {
		msg = fmt.Sprintf("%s(%d)", msg, e.Code)
	}
	if e.typed {
		msg = e.DataType.String() + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// WithType returns a copy of e attributed to dt.
func (e *ImportError) WithType(dt DataType) *ImportError {
	c := *e
	c.DataType = dt
	c.typed = true
	return &c
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches the category sentinels, so errors.Is(err, ErrNoData) works
// through any wrapping.
func (e *ImportError) Is(target error) bool {
	return categorySentinels[e.Category] == target
}

// NewError builds an ImportError of the given category.
func NewError(c Category, err error) *ImportError {
	return &ImportError{Category: c, Err: err}
}

// Errorf builds an ImportError with a formatted cause.
func Errorf(c Category, format string, args ...interface{}) *ImportError {
	return &ImportError{Category: c, Err: fmt.Errorf(format, args...)}
}

// SystemErrorf builds a CategorySystemError with the OS code preserved.
func SystemErrorf(code int, err error) *ImportError {
	return &ImportError{Category: CategorySystemError, Code: code, Err: err}
}

// AsImportError extracts an ImportError from err. Errors of any other kind
// are classified as fallback.
func AsImportError(err error, fallback Category) *ImportError {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	return &ImportError{Category: fallback, Err: err}
}

// CategoryOf returns the category of err, or false if err carries none.
func CategoryOf(err error) (Category, bool) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Category, true
	}
	return 0, false
}
