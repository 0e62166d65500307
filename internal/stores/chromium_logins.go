package stores

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/warpdl/warpimport/internal/dataimport"
	"golang.org/x/crypto/pbkdf2"
)

// Chromium login database files inside a profile directory.
const (
	ChromiumLoginData           = "Login Data"
	ChromiumLoginDataForAccount = "Login Data For Account"
)

// Legacy key derivation parameters of Chromium's OSCrypt.
const (
	chromiumSalt       = "saltysalt"
	chromiumIterations = 1003
	chromiumKeyLength  = 16
	chromiumNonceSize  = 12
)

var (
	chromiumIV       = bytes.Repeat([]byte{' '}, aes.BlockSize)
	chromiumPrefixes = [][]byte{[]byte("v10"), []byte("v11")}
)

// chromiumLoginQueries are tried in order; older schemas lack the
// modification date and, before that, the creation date.
var chromiumLoginQueries = []string{
	`SELECT origin_url, signon_realm, username_value, password_value, blacklisted_by_user, date_password_modified FROM logins`,
	`SELECT origin_url, signon_realm, username_value, password_value, blacklisted_by_user, date_created FROM logins`,
	`SELECT origin_url, signon_realm, username_value, password_value, blacklisted_by_user, 0 FROM logins`,
}

type chromiumLogin struct {
	url      string
	username string
	blob     []byte
	modified int64
}

// ReadChromiumLogins reads and decrypts the saved logins of a Chromium
// profile. keyMaterial is the profile-wide secret from the OS secret store;
// it may be nil when the caller could not obtain it, in which case any
// encrypted row yields CategoryKeyMaterialDenied.
//
// Rows the user blocklisted are excluded. When both login databases exist
// their rows are merged, keeping the most recently modified entry per
// (url, username).
func ReadChromiumLogins(ctx context.Context, profileDir string, keyMaterial []byte) ([]dataimport.Credential, error) {
	var (
		found  bool
		logins []chromiumLogin
		index  = map[[2]string]int{}
	)
	for _, name := range []string{ChromiumLoginData, ChromiumLoginDataForAccount} {
		path := filepath.Join(profileDir, name)
		if !fileExists(path) {
			continue
		}
		found = true
		rows, err := queryChromiumLogins(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, l := range rows {
			k := [2]string{l.url, l.username}
			if i, ok := index[k]; ok {
				if l.modified > logins[i].modified {
					logins[i] = l
				}
				continue
			}
			index[k] = len(logins)
			logins = append(logins, l)
		}
	}
	if !found {
		return nil, dataimport.Errorf(dataimport.CategoryNoData, "error: no login database in profile")
	}

	var dec *chromiumDecrypter
	var lastErr error
	creds := make([]dataimport.Credential, 0, len(logins))
	for _, l := range logins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(l.blob) == 0 {
			continue
		}
		if keyMaterial == nil {
			return nil, dataimport.Errorf(dataimport.CategoryKeyMaterialDenied, "error: key material required to decrypt logins")
		}
		if dec == nil {
			dec = newChromiumDecrypter(keyMaterial)
		}
		password, err := dec.decrypt(l.blob)
		if err != nil {
			lastErr = err
			continue
		}
		creds = append(creds, dataimport.Credential{
			URL:      l.url,
			Username: l.username,
			Password: password,
		})
	}
	if len(creds) == 0 && lastErr != nil {
		return nil, dataimport.NewError(dataimport.CategoryDecryptionFailed, fmt.Errorf("error: cannot decrypt any login: %w", lastErr))
	}
	return creds, nil
}

func queryChromiumLogins(ctx context.Context, path string) ([]chromiumLogin, error) {
	db, closeDB, err := openSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	var rows *sql.Rows
	for _, q := range chromiumLoginQueries {
		rows, err = db.QueryContext(ctx, q)
		if err == nil || !strings.Contains(err.Error(), "no such column") {
			break
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to query logins: %w", err))
	}
	defer rows.Close()

	var out []chromiumLogin
	for rows.Next() {
		var (
			originURL, realm, username sql.NullString
			blob                       []byte
			blocklisted                sql.NullInt64
			modified                   sql.NullInt64
		)
		if err := rows.Scan(&originURL, &realm, &username, &blob, &blocklisted, &modified); err != nil {
			return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to scan login row: %w", err))
		}
		if blocklisted.Int64 == 1 {
			continue
		}
		url := originURL.String
		if url == "" {
			url = realm.String
		}
		out = append(out, chromiumLogin{
			url:      url,
			username: username.String,
			blob:     blob,
			modified: modified.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to iterate login rows: %w", err))
	}
	return out, nil
}

// chromiumDecrypter holds the keys derived once per profile.
type chromiumDecrypter struct {
	cbcKey []byte
	// gcm is nil when the key material is not a raw AES key.
	gcm cipher.AEAD
}

func newChromiumDecrypter(keyMaterial []byte) *chromiumDecrypter {
	d := &chromiumDecrypter{
		cbcKey: pbkdf2.Key(keyMaterial, []byte(chromiumSalt), chromiumIterations, chromiumKeyLength, sha1.New),
	}
	if n := len(keyMaterial); n == 16 || n == 32 {
		if block, err := aes.NewCipher(keyMaterial); err == nil {
			d.gcm, _ = cipher.NewGCM(block)
		}
	}
	return d
}

var errShortBlob = errors.New("encrypted value too short")

// decrypt picks the scheme from the blob prefix. Versioned blobs are
// AES-GCM with the nonce after the prefix; on platforms that store the
// versioned blob as AES-CBC the GCM attempt fails and CBC is used.
// Unprefixed blobs use the legacy CBC scheme.
func (d *chromiumDecrypter) decrypt(blob []byte) (string, error) {
	for _, prefix := range chromiumPrefixes {
		if !bytes.HasPrefix(blob, prefix) {
			continue
		}
		body := blob[len(prefix):]
		if d.gcm != nil && len(body) >= chromiumNonceSize+d.gcm.Overhead() {
			plain, err := d.gcm.Open(nil, body[:chromiumNonceSize], body[chromiumNonceSize:], nil)
			if err == nil {
				return string(plain), nil
			}
		}
		if len(body) == 0 {
			return "", errShortBlob
		}
		plain, err := aesCBCDecrypt(d.cbcKey, chromiumIV, body)
		if err != nil {
			return "", err
		}
		return string(plain), nil
	}
	plain, err := aesCBCDecrypt(d.cbcKey, chromiumIV, blob)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
