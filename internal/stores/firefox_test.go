package stores

import (
	"bytes"
	"context"
	"encoding/asn1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/warpdl/warpimport/internal/bdb/bdbtest"
	"github.com/warpdl/warpimport/internal/dataimport"
)

var testMasterKey = bytes.Repeat([]byte{0x11, 0x22, 0x33}, 8)

func TestReadFirefoxKey4(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		supplied string
		wantErr  bool
	}{
		{name: "no secondary password", stored: "", supplied: ""},
		{name: "correct secondary password", stored: "hunter2", supplied: "hunter2"},
		{name: "missing secondary password", stored: "hunter2", supplied: "", wantErr: true},
		{name: "wrong secondary password", stored: "hunter2", supplied: "hunter3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeKey4(t, dir, tt.stored, testMasterKey)
			key, err := ReadFirefoxKey(context.Background(), dir, tt.supplied)
			if tt.wantErr {
				wantCategory(t, err, dataimport.CategoryRequiresSecondaryPassword)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(key, testMasterKey) {
				t.Fatalf("got key %x, want %x", key, testMasterKey)
			}
		})
	}
}

func TestReadFirefoxKeyRetryAfterWrongPassword(t *testing.T) {
	dir := t.TempDir()
	writeKey4(t, dir, "secret", testMasterKey)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := ReadFirefoxKey(ctx, dir, "guess")
		wantCategory(t, err, dataimport.CategoryRequiresSecondaryPassword)
	}
	key, err := ReadFirefoxKey(ctx, dir, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 24 {
		t.Fatalf("got %d-byte key, want 24", len(key))
	}
}

func TestReadFirefoxKeyNoDatabase(t *testing.T) {
	_, err := ReadFirefoxKey(context.Background(), t.TempDir(), "")
	wantCategory(t, err, dataimport.CategoryNoData)
}

func TestReadFirefoxKey4Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FirefoxKey4DB)
	createSQLite(t, path, `CREATE TABLE metadata (id TEXT PRIMARY KEY, item1 BLOB, item2 BLOB)`)
	execSQLite(t, path, `INSERT INTO metadata (id, item1, item2) VALUES ('password', ?, ?)`,
		[]byte("salt"), []byte{0x30, 0x03, 0x04, 0x01})
	_, err := ReadFirefoxKey(context.Background(), dir, "")
	wantCategory(t, err, dataimport.CategoryDataCorrupted)
}

type rsaPrivateKey struct {
	Version int
	N       *big.Int
	E       int
	D       *big.Int
}

type privateKeyInfo struct {
	Version    int
	Algorithm  algorithmIdentifier
	PrivateKey []byte
}

func writeKey3(t *testing.T, dir, password string) {
	t.Helper()
	globalSalt := bytes.Repeat([]byte{0x61}, 20)
	checkSalt := bytes.Repeat([]byte{0x62}, 16)
	key, iv := nss3DESKey(globalSalt, []byte(password), checkSalt)
	check := []byte{0x03, byte(len(checkSalt)), 0x01}
	check = append(check, checkSalt...)
	check = append(check, 0x00)
	check = append(check, des3CBCEncrypt(t, key, iv, []byte(passwordCheck))...)

	inner, err := asn1.Marshal(rsaPrivateKey{
		N: big.NewInt(1),
		E: 3,
		D: new(big.Int).SetBytes(testMasterKey),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pki, err := asn1.Marshal(privateKeyInfo{
		Algorithm:  algorithmIdentifier{OID: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}, Params: asn1.NullRawValue},
		PrivateKey: inner,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	nick := []byte("Server-Key")
	salt := bytes.Repeat([]byte{0x63}, 16)
	entry := []byte{0x03, byte(len(salt)), byte(len(nick))}
	entry = append(entry, salt...)
	entry = append(entry, nick...)
	entry = append(entry, encrypt3DESPBE(t, globalSalt, []byte(password), pki)...)

	raw := bdbtest.Build(binary.BigEndian, []bdbtest.Item{
		{Key: []byte("global-salt"), Value: globalSalt},
		{Key: []byte(passwordCheck), Value: check},
		{Key: nssPrivateKeyID, Value: entry},
		{Key: []byte("Version"), Value: []byte{3}},
	})
	if err := os.WriteFile(filepath.Join(dir, FirefoxKey3DB), raw, 0o600); err != nil {
		t.Fatalf("failed to write key3.db: %v", err)
	}
}

func TestReadFirefoxKey3(t *testing.T) {
	dir := t.TempDir()
	writeKey3(t, dir, "pw")
	ctx := context.Background()

	_, err := ReadFirefoxKey(ctx, dir, "")
	wantCategory(t, err, dataimport.CategoryRequiresSecondaryPassword)

	key, err := ReadFirefoxKey(ctx, dir, "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(key, testMasterKey) {
		t.Fatalf("got key %x, want %x", key, testMasterKey)
	}
}

func writeLogins(t *testing.T, dir string, entries []map[string]string) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"nextId": len(entries) + 1, "logins": entries})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FirefoxLoginsFile), raw, 0o600); err != nil {
		t.Fatalf("failed to write logins.json: %v", err)
	}
}

func TestReadFirefoxCredentials(t *testing.T) {
	dir := t.TempDir()
	writeKey4(t, dir, "", testMasterKey)
	enc := func(s string) string {
		return base64.StdEncoding.EncodeToString(firefoxField(t, testMasterKey, s))
	}
	writeLogins(t, dir, []map[string]string{
		{"hostname": "https://example.com", "encryptedUsername": enc("alice"), "encryptedPassword": enc("s3cret")},
		{"hostname": firefoxAccountsHost, "encryptedUsername": enc("sync"), "encryptedPassword": enc("token")},
		{"hostname": "https://duck.com", "encryptedUsername": enc(""), "encryptedPassword": enc("quack")},
	})

	creds, err := ReadFirefoxCredentials(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []dataimport.Credential{
		{URL: "https://example.com", Username: "alice", Password: "s3cret"},
		{URL: "https://duck.com", Username: "", Password: "quack"},
	}
	if len(creds) != len(want) {
		t.Fatalf("got %d credentials, want %d", len(creds), len(want))
	}
	for i := range want {
		if creds[i] != want[i] {
			t.Fatalf("credential %d: got %+v, want %+v", i, creds[i], want[i])
		}
	}
}

func TestReadFirefoxLoginsMissingFile(t *testing.T) {
	creds, err := ReadFirefoxLogins(context.Background(), t.TempDir(), testMasterKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds == nil || len(creds) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", creds)
	}
}

func TestReadFirefoxLoginsUnsupportedCipher(t *testing.T) {
	dir := t.TempDir()
	b, err := asn1.Marshal(struct {
		KeyID []byte
		Algo  ivAlgorithm
		CT    []byte
	}{
		KeyID: nssPrivateKeyID,
		Algo:  ivAlgorithm{OID: asn1.ObjectIdentifier{1, 2, 3}, IV: make([]byte, 8)},
		CT:    make([]byte, 8),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	field := base64.StdEncoding.EncodeToString(b)
	writeLogins(t, dir, []map[string]string{
		{"hostname": "https://example.com", "encryptedUsername": field, "encryptedPassword": field},
	})
	_, err = ReadFirefoxLogins(context.Background(), dir, testMasterKey)
	wantCategory(t, err, dataimport.CategoryDecryptionFailed)
}

func TestReadFirefoxBookmarks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FirefoxPlacesFile)
	createSQLite(t, path,
		`CREATE TABLE moz_places (id INTEGER PRIMARY KEY, url TEXT)`,
		`CREATE TABLE moz_bookmarks (id INTEGER PRIMARY KEY, type INTEGER, fk INTEGER, parent INTEGER, position INTEGER, title TEXT, guid TEXT)`,
		`INSERT INTO moz_places (id, url) VALUES (1, 'https://duck.com/'), (2, 'https://go.dev/'), (3, 'place:sort=8'), (4, 'https://m.example.com/')`,
		`INSERT INTO moz_bookmarks (id, type, fk, parent, position, title, guid) VALUES
			(1, 2, NULL, 0, 0, '', 'root________'),
			(2, 2, NULL, 1, 0, 'menu', 'menu________'),
			(3, 2, NULL, 1, 1, 'toolbar', 'toolbar_____'),
			(4, 2, NULL, 1, 3, 'unfiled', 'unfiled_____'),
			(5, 2, NULL, 1, 4, 'mobile', 'mobile______'),
			(10, 1, 1, 3, 0, 'DuckDuckGo', 'a1'),
			(11, 3, NULL, 3, 1, '', 'a2'),
			(12, 2, NULL, 3, 2, 'Dev', 'a3'),
			(13, 1, 2, 12, 0, 'Go', 'a4'),
			(14, 1, 3, 2, 0, 'Most Visited', 'a5'),
			(15, 1, 2, 4, 0, 'Go again', 'a6'),
			(16, 1, 4, 5, 0, 'Phone', 'a7')`,
	)

	tree, err := ReadFirefoxBookmarks(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.BookmarksBar.Leaves(); got != 2 {
		t.Fatalf("bookmarks bar has %d leaves, want 2", got)
	}
	if n := len(tree.BookmarksBar.Children); n != 2 || tree.BookmarksBar.Children[1].Title != "Dev" {
		t.Fatalf("unexpected bar children: %+v", tree.BookmarksBar.Children)
	}
	other := tree.OtherBookmarks.Children
	if len(other) != 2 {
		t.Fatalf("got %d other children, want 2", len(other))
	}
	if other[0].Title != "Go again" {
		t.Fatalf("got %q, want unfiled bookmark first", other[0].Title)
	}
	if !other[1].IsFolder || other[1].Title != dataimport.MobileBookmarksTitle || other[1].Leaves() != 1 {
		t.Fatalf("unexpected mobile folder: %+v", other[1])
	}
}
