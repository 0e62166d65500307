package stores

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warpdl/warpimport/internal/bdb"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/der"
)

// Firefox key database files inside a profile directory.
const (
	FirefoxKey4DB = "key4.db"
	FirefoxKey3DB = "key3.db"
)

const (
	passwordCheck = "password-check"
	// masterKeyLength is the size of the 3DES master key NSS stores.
	masterKeyLength = 24
)

// nssPrivateKeyID is the CKA_ID of the master key entry in both layouts.
var nssPrivateKeyID = []byte{0xf8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}

// ReadFirefoxKey recovers the master key of a Firefox profile. The newer
// SQLite layout (key4.db) is preferred over the Berkeley DB layout
// (key3.db).
//
// A wrong or missing secondary password yields
// CategoryRequiresSecondaryPassword in both cases; an empty string is the
// password of an unprotected store.
func ReadFirefoxKey(ctx context.Context, profileDir, secondaryPassword string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path := filepath.Join(profileDir, FirefoxKey4DB); fileExists(path) {
		return readKey4(ctx, path, []byte(secondaryPassword))
	}
	if path := filepath.Join(profileDir, FirefoxKey3DB); fileExists(path) {
		return readKey3(path, []byte(secondaryPassword))
	}
	return nil, dataimport.Errorf(dataimport.CategoryNoData, "error: no key database in profile")
}

// pbeError classifies a decryptNSSPBE failure: padding errors mean the
// password was wrong, anything else is a malformed store.
func pbeError(what string, err error) error {
	if errors.Is(err, errBadPadding) {
		return dataimport.Errorf(dataimport.CategoryRequiresSecondaryPassword, "error: %s does not decrypt with the given password", what)
	}
	return dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: malformed %s: %w", what, err))
}

func checkPassword(plain []byte) error {
	if string(plain) != passwordCheck {
		return dataimport.Errorf(dataimport.CategoryRequiresSecondaryPassword, "error: password check failed")
	}
	return nil
}

func readKey4(ctx context.Context, path string, password []byte) ([]byte, error) {
	db, closeDB, err := openSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	var globalSalt, check []byte
	err = db.QueryRowContext(ctx, `SELECT item1, item2 FROM metadata WHERE id = 'password'`).Scan(&globalSalt, &check)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read key metadata: %w", err))
	}
	plain, err := decryptNSSPBE(check, globalSalt, password)
	if err != nil {
		return nil, pbeError("password check", err)
	}
	if err := checkPassword(plain); err != nil {
		return nil, err
	}

	a11, err := queryMasterKeyEntry(ctx, db)
	if err != nil {
		return nil, err
	}
	key, err := decryptNSSPBE(a11, globalSalt, password)
	if err != nil {
		return nil, pbeError("master key", err)
	}
	if len(key) < masterKeyLength {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: master key too short (%d bytes)", len(key))
	}
	return key, nil
}

func queryMasterKeyEntry(ctx context.Context, db *sql.DB) ([]byte, error) {
	rows, err := db.QueryContext(ctx, `SELECT a11, a102 FROM nssPrivate`)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read private keys: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var a11, a102 []byte
		if err := rows.Scan(&a11, &a102); err != nil {
			return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to scan private key row: %w", err))
		}
		if bytes.Equal(a102, nssPrivateKeyID) {
			return a11, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: failed to iterate private keys: %w", err))
	}
	return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: master key entry not found")
}

func readKey3(path string, password []byte) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot open key database: %w", err))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot stat key database: %w", err))
	}
	items, err := bdb.ReadHash(f, info.Size())
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read key database: %w", err))
	}

	globalSalt, ok := items["global-salt"]
	if !ok {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: key database has no global salt")
	}
	pc, ok := items[passwordCheck]
	if !ok || len(pc) < 3 || len(pc) < 3+int(pc[1]) || len(pc) < 16 {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: key database has no usable password check")
	}
	entrySalt := pc[3 : 3+int(pc[1])]
	key, iv := nss3DESKey(globalSalt, password, entrySalt)
	plain, err := des3CBCDecrypt(key, iv, pc[len(pc)-16:])
	if err != nil {
		return nil, pbeError("password check", err)
	}
	if err := checkPassword(plain); err != nil {
		return nil, err
	}

	entry, ok := items[string(nssPrivateKeyID)]
	if !ok || len(entry) < 3 {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: master key entry not found")
	}
	start := 3 + int(entry[1]) + int(entry[2])
	if start >= len(entry) {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: master key entry truncated")
	}
	privateKeyInfo, err := decryptNSSPBE(entry[start:], globalSalt, password)
	if err != nil {
		return nil, pbeError("master key", err)
	}
	masterKey, err := keyFromPrivateKeyInfo(privateKeyInfo)
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: malformed master key: %w", err))
	}
	return masterKey, nil
}

// keyFromPrivateKeyInfo extracts the key NSS hides in the fourth integer of
// the private key wrapped by a PKCS#8 PrivateKeyInfo.
func keyFromPrivateKeyInfo(b []byte) ([]byte, error) {
	root, _, err := der.New(b).Sequence()
	if err != nil {
		return nil, err
	}
	el, err := der.Path(root, 2)
	if err != nil {
		return nil, err
	}
	privateKey, _, err := el.OctetString()
	if err != nil {
		return nil, err
	}
	inner, _, err := der.New(privateKey).Sequence()
	if err != nil {
		return nil, err
	}
	el, err = der.Path(inner, 3)
	if err != nil {
		return nil, err
	}
	n, _, err := el.Integer()
	if err != nil {
		return nil, err
	}
	if len(n) < masterKeyLength {
		return nil, fmt.Errorf("key integer has %d bytes", len(n))
	}
	return n[len(n)-masterKeyLength:], nil
}
