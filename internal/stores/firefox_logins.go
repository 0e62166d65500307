package stores

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/der"
)

// FirefoxLoginsFile is the login store inside a Firefox profile.
const FirefoxLoginsFile = "logins.json"

// firefoxAccountsHost marks the entry Firefox keeps for its own sync
// account; it is not a website login.
const firefoxAccountsHost = "chrome://FirefoxAccounts"

type firefoxLogins struct {
	Logins []firefoxLogin `json:"logins"`
}

type firefoxLogin struct {
	Hostname          string `json:"hostname"`
	EncryptedUsername string `json:"encryptedUsername"`
	EncryptedPassword string `json:"encryptedPassword"`
}

// ReadFirefoxCredentials recovers the profile master key with the given
// secondary password and decrypts the saved logins with it.
func ReadFirefoxCredentials(ctx context.Context, profileDir, secondaryPassword string) ([]dataimport.Credential, error) {
	key, err := ReadFirefoxKey(ctx, profileDir, secondaryPassword)
	if err != nil {
		return nil, err
	}
	return ReadFirefoxLogins(ctx, profileDir, key)
}

// ReadFirefoxLogins decrypts logins.json with a master key obtained from
// ReadFirefoxKey. A profile without logins.json has no saved logins and
// yields an empty list.
func ReadFirefoxLogins(ctx context.Context, profileDir string, key []byte) ([]dataimport.Credential, error) {
	raw, err := os.ReadFile(filepath.Join(profileDir, FirefoxLoginsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []dataimport.Credential{}, nil
	}
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read %s: %w", FirefoxLoginsFile, err))
	}
	var doc firefoxLogins
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot parse %s: %w", FirefoxLoginsFile, err))
	}

	var lastErr error
	attempted := 0
	creds := make([]dataimport.Credential, 0, len(doc.Logins))
	for _, l := range doc.Logins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.Hostname == firefoxAccountsHost {
			continue
		}
		attempted++
		username, err := decryptFirefoxField(l.EncryptedUsername, key)
		if err != nil {
			lastErr = err
			continue
		}
		password, err := decryptFirefoxField(l.EncryptedPassword, key)
		if err != nil {
			lastErr = err
			continue
		}
		creds = append(creds, dataimport.Credential{
			URL:      l.Hostname,
			Username: username,
			Password: password,
		})
	}
	if attempted > 0 && len(creds) == 0 {
		return nil, dataimport.NewError(dataimport.CategoryDecryptionFailed, fmt.Errorf("error: cannot decrypt any login: %w", lastErr))
	}
	return creds, nil
}

// decryptFirefoxField decodes one base64 field of logins.json, laid out as
// SEQUENCE { keyId, SEQUENCE { cipher OID, iv }, ciphertext }.
func decryptFirefoxField(field string, key []byte) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return "", fmt.Errorf("bad base64: %w", err)
	}
	root, _, err := der.New(blob).Sequence()
	if err != nil {
		return "", err
	}
	algo, err := der.Path(root, 1)
	if err != nil {
		return "", err
	}
	algoSeq, _, err := algo.Sequence()
	if err != nil {
		return "", err
	}
	oid, rest, err := algoSeq.OID()
	if err != nil {
		return "", err
	}
	iv, _, err := rest.OctetString()
	if err != nil {
		return "", err
	}
	ctEl, err := der.Path(root, 2)
	if err != nil {
		return "", err
	}
	ciphertext, _, err := ctEl.OctetString()
	if err != nil {
		return "", err
	}

	var plain []byte
	switch oid {
	case oidDESEDE3CBC:
		plain, err = des3CBCDecrypt(key, iv, ciphertext)
	case oidAES256CBC:
		if len(key) < 32 {
			return "", fmt.Errorf("%w: AES-256 needs a 32-byte key, have %d", errUnsupportedCipher, len(key))
		}
		plain, err = aesCBCDecrypt(key[:32], iv, ciphertext)
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedCipher, oid)
	}
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
