package keyring

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/warpdl/warpimport/common"
	"github.com/warpdl/warpimport/internal/dataimport"
)

// SafeStorage hands out the "<Label> Safe Storage" secret a Chromium
// browser keeps in the OS keyring.
type SafeStorage struct {
	// Override, when set, is returned for every source without asking
	// the keyring.
	Override []byte
}

// NewSafeStorage returns a provider that honours common.KeyMaterialEnv.
func NewSafeStorage() (*SafeStorage, error) {
	s := &SafeStorage{}
	if v := os.Getenv(common.KeyMaterialEnv); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", common.KeyMaterialEnv, err)
		}
		s.Override = key
	}
	return s, nil
}

// ServiceName is the keyring service a Chromium source stores its secret
// under.
func ServiceName(info dataimport.SourceInfo) string {
	return info.KeychainLabel + " Safe Storage"
}

// KeyMaterial returns the secret for source. Denials wrap ErrUserDenied;
// every other failure is a *SystemError.
func (s *SafeStorage) KeyMaterial(ctx context.Context, source dataimport.Source) ([]byte, error) {
	if s.Override != nil {
		return append([]byte(nil), s.Override...), nil
	}
	info, ok := source.Info()
	if !ok || info.KeychainLabel == "" {
		return nil, &SystemError{Code: CodeNotFound, Err: fmt.Errorf("%s keeps no secret in the keyring", source)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secret, err := keyringGet(ServiceName(info), info.KeychainLabel)
	if err != nil {
		return nil, classify(err)
	}
	return []byte(secret), nil
}
