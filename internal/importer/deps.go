package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/pkg/credman/keyring"
	"github.com/warpdl/warpimport/pkg/logger"
)

// KeyMaterialProvider hands out the OS-held secret a Chromium browser
// encrypts its logins with.
type KeyMaterialProvider interface {
	KeyMaterial(ctx context.Context, source dataimport.Source) ([]byte, error)
}

// PasswordPrompt asks the user for the secondary password of a locked
// store. ok is false when the user declined.
type PasswordPrompt interface {
	RequestPassword(ctx context.Context, source dataimport.Source) (password string, ok bool)
}

// Vault receives imported credentials one at a time.
type Vault interface {
	Store(ctx context.Context, cred dataimport.Credential) (dataimport.StoreOutcome, error)
}

// BookmarkImporter persists an imported bookmark tree under a folder
// named label.
type BookmarkImporter interface {
	ImportBookmarks(ctx context.Context, tree *dataimport.BookmarkTree, label string) (dataimport.Summary, error)
}

// ProgressFunc is called after each record handed to a destination.
type ProgressFunc func(dt dataimport.DataType, done, total int)

// Deps are the collaborators of a Session. Vault and Bookmarks are
// required; the rest are optional.
type Deps struct {
	Keys      KeyMaterialProvider
	Prompt    PasswordPrompt
	Vault     Vault
	Bookmarks BookmarkImporter
	Logger    logger.Logger
	Progress  ProgressFunc
	// BookmarkLabel names the folder imported bookmarks land in.
	// Empty means "Imported from <source name>".
	BookmarkLabel string
}

// classifyKeyError maps a provider failure onto an import error.
func classifyKeyError(err error) *dataimport.ImportError {
	var ie *dataimport.ImportError
	if errors.As(err, &ie) {
		return ie
	}
	if errors.Is(err, keyring.ErrUserDenied) {
		return dataimport.NewError(dataimport.CategoryKeyMaterialDenied, err)
	}
	var sysErr *keyring.SystemError
	if errors.As(err, &sysErr) {
		return dataimport.SystemErrorf(sysErr.Code, err)
	}
	return dataimport.SystemErrorf(0, fmt.Errorf("error: key material unavailable: %w", err))
}
