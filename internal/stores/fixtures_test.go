package stores

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/sha1"
	"crypto/sha256"
	"database/sql"
	"encoding/asn1"
	"errors"
	"path/filepath"
	"testing"

	"github.com/warpdl/warpimport/internal/dataimport"
	"golang.org/x/crypto/pbkdf2"
)

func mustOID(t *testing.T, dotted string) asn1.ObjectIdentifier {
	t.Helper()
	var oid asn1.ObjectIdentifier
	for _, part := range bytes.Split([]byte(dotted), []byte(".")) {
		n := 0
		for _, c := range part {
			n = n*10 + int(c-'0')
		}
		oid = append(oid, n)
	}
	return oid
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func cbcEncrypt(t *testing.T, block cipher.Block, iv, plain []byte) []byte {
	t.Helper()
	padded := pkcs7Pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func aesCBCEncrypt(t *testing.T, key, iv, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	return cbcEncrypt(t, block, iv, plain)
}

func des3CBCEncrypt(t *testing.T, key, iv, plain []byte) []byte {
	t.Helper()
	block, err := des.NewTripleDESCipher(key[:24])
	if err != nil {
		t.Fatalf("3des: %v", err)
	}
	return cbcEncrypt(t, block, iv, plain)
}

// createSQLite creates a database at path and runs the statements.
func createSQLite(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture db: %v", err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("failed to exec %q: %v", s, err)
		}
	}
}

func execSQLite(t *testing.T, path, stmt string, args ...interface{}) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(stmt, args...); err != nil {
		t.Fatalf("failed to exec %q: %v", stmt, err)
	}
}

func wantCategory(t *testing.T, err error, want dataimport.Category) {
	t.Helper()
	var ie *dataimport.ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *ImportError of category %s, got %v", want, err)
	}
	if ie.Category != want {
		t.Fatalf("got category %s, want %s (%v)", ie.Category, want, err)
	}
}

// NSS PBE structures, encoded with encoding/asn1.

type pbkdf2Params struct {
	Salt      []byte
	Iter      int
	KeyLength int
	PRF       algorithmIdentifier
}

type algorithmIdentifier struct {
	OID    asn1.ObjectIdentifier
	Params asn1.RawValue `asn1:"optional"`
}

type kdfAlgorithm struct {
	OID    asn1.ObjectIdentifier
	Params pbkdf2Params
}

type ivAlgorithm struct {
	OID asn1.ObjectIdentifier
	IV  []byte
}

type pbes2Params struct {
	KDF    kdfAlgorithm
	Cipher ivAlgorithm
}

type pbes2Algorithm struct {
	OID    asn1.ObjectIdentifier
	Params pbes2Params
}

type pbes2Blob struct {
	Algo       pbes2Algorithm
	Ciphertext []byte
}

type pbe3DESParams struct {
	Salt []byte
	Iter int
}

type pbe3DESAlgorithm struct {
	OID    asn1.ObjectIdentifier
	Params pbe3DESParams
}

type pbe3DESBlob struct {
	Algo       pbe3DESAlgorithm
	Ciphertext []byte
}

// encryptPBES2 produces the key4.db form of plain under the password.
func encryptPBES2(t *testing.T, globalSalt, password, plain []byte) []byte {
	t.Helper()
	entrySalt := bytes.Repeat([]byte{0x5a}, 32)
	iv14 := bytes.Repeat([]byte{0x3c}, 14)
	hp := sha1.Sum(append(append([]byte(nil), globalSalt...), password...))
	key := pbkdf2.Key(hp[:], entrySalt, 1, 32, sha256.New)
	ct := aesCBCEncrypt(t, key, append([]byte{0x04, 0x0e}, iv14...), plain)
	b, err := asn1.Marshal(pbes2Blob{
		Algo: pbes2Algorithm{
			OID: mustOID(t, oidPBES2),
			Params: pbes2Params{
				KDF: kdfAlgorithm{
					OID: mustOID(t, oidPBKDF2),
					Params: pbkdf2Params{
						Salt:      entrySalt,
						Iter:      1,
						KeyLength: 32,
						PRF:       algorithmIdentifier{OID: asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}},
					},
				},
				Cipher: ivAlgorithm{OID: mustOID(t, oidAES256CBC), IV: iv14},
			},
		},
		Ciphertext: ct,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// encrypt3DESPBE produces the legacy form of plain under the password.
func encrypt3DESPBE(t *testing.T, globalSalt, password, plain []byte) []byte {
	t.Helper()
	entrySalt := bytes.Repeat([]byte{0x21}, 20)
	key, iv := nss3DESKey(globalSalt, password, entrySalt)
	b, err := asn1.Marshal(pbe3DESBlob{
		Algo: pbe3DESAlgorithm{
			OID:    mustOID(t, oidPBEWithSHA13DES),
			Params: pbe3DESParams{Salt: entrySalt, Iter: 1},
		},
		Ciphertext: des3CBCEncrypt(t, key, iv, plain),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// writeKey4 creates a key4.db in dir protecting masterKey with password.
func writeKey4(t *testing.T, dir string, password string, masterKey []byte) {
	t.Helper()
	globalSalt := bytes.Repeat([]byte{0x47}, 20)
	path := filepath.Join(dir, FirefoxKey4DB)
	createSQLite(t, path,
		`CREATE TABLE metadata (id TEXT PRIMARY KEY, item1 BLOB, item2 BLOB)`,
		`CREATE TABLE nssPrivate (id INTEGER PRIMARY KEY, a11 BLOB, a102 BLOB)`,
	)
	execSQLite(t, path, `INSERT INTO metadata (id, item1, item2) VALUES ('password', ?, ?)`,
		globalSalt, encryptPBES2(t, globalSalt, []byte(password), []byte(passwordCheck)))
	execSQLite(t, path, `INSERT INTO nssPrivate (a11, a102) VALUES (?, ?)`,
		[]byte("unrelated"), []byte{0x01, 0x02})
	execSQLite(t, path, `INSERT INTO nssPrivate (a11, a102) VALUES (?, ?)`,
		encryptPBES2(t, globalSalt, []byte(password), masterKey), nssPrivateKeyID)
}

// firefoxField encrypts value the way logins.json stores it.
func firefoxField(t *testing.T, key []byte, value string) []byte {
	t.Helper()
	iv := bytes.Repeat([]byte{0x09}, 8)
	b, err := asn1.Marshal(struct {
		KeyID []byte
		Algo  ivAlgorithm
		CT    []byte
	}{
		KeyID: nssPrivateKeyID,
		Algo:  ivAlgorithm{OID: mustOID(t, oidDESEDE3CBC), IV: iv},
		CT:    des3CBCEncrypt(t, key, iv, []byte(value)),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
