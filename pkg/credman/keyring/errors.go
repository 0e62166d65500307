package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrUserDenied means the user, or a policy acting for them, refused
// access to a secret.
var ErrUserDenied = errors.New("access to the secret store was denied")

// Codes carried by SystemError. CodeNotFound matches macOS
// errSecItemNotFound.
const (
	CodeUnknown  = -1
	CodeNotFound = -25300
)

// SystemError is a secret store failure other than a denial. Code is
// the platform status when one is known.
type SystemError struct {
	Code int
	Err  error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("secret store error %d: %v", e.Code, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// deniedMarkers are the messages the macOS security tool and the
// freedesktop secret service use for a refused or dismissed prompt.
var deniedMarkers = []string{
	"user canceled",
	"user cancelled",
	"interaction is not allowed",
	"prompt dismissed",
	"access denied",
	"permission denied",
}

func classify(err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return &SystemError{Code: CodeNotFound, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range deniedMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrUserDenied, err)
		}
	}
	return &SystemError{Code: CodeUnknown, Err: err}
}
