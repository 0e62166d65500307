// Package credman is the destination of an import: a SQLite vault that
// keeps credentials encrypted at rest next to the imported bookmark
// folders.
package credman

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/pkg/credman/encryption"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id        INTEGER PRIMARY KEY,
	host      TEXT NOT NULL,
	signature BLOB NOT NULL UNIQUE,
	title     BLOB NOT NULL,
	url       BLOB NOT NULL,
	username  BLOB NOT NULL,
	password  BLOB NOT NULL,
	notes     BLOB NOT NULL,
	created   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS credentials_host ON credentials(host);
CREATE TABLE IF NOT EXISTS bookmarks (
	id        INTEGER PRIMARY KEY,
	parent    INTEGER REFERENCES bookmarks(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	title     TEXT NOT NULL,
	url       TEXT,
	is_folder INTEGER NOT NULL,
	created   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS bookmarks_parent ON bookmarks(parent);
CREATE INDEX IF NOT EXISTS bookmarks_url ON bookmarks(url);
`

// Subkey purposes derived from the vault key.
const (
	purposeEncryption = "warpimport vault encryption"
	purposeSignature  = "warpimport vault signature"
)

// Vault stores imported credentials and bookmarks. It is safe for
// concurrent use.
type Vault struct {
	db     *sql.DB
	cipher *encryption.Cipher
	sigKey []byte
}

// OpenVault opens or creates the vault at path. key is the 32-byte vault
// key.
func OpenVault(path string, key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credman: vault key must be 32 bytes, got %d", len(key))
	}
	encKey, err := encryption.DeriveKey(key, purposeEncryption)
	if err != nil {
		return nil, fmt.Errorf("credman: derive key: %w", err)
	}
	sigKey, err := encryption.DeriveKey(key, purposeSignature)
	if err != nil {
		return nil, fmt.Errorf("credman: derive key: %w", err)
	}
	c, err := encryption.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("credman: cipher: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credman: mkdir: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("credman: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("credman: schema: %w", err)
	}
	return &Vault{db: db, cipher: c, sigKey: sigKey}, nil
}

func (v *Vault) Close() error {
	return v.db.Close()
}

// signature identifies a credential without revealing it. Two
// credentials with the same URL, username and password are duplicates.
func (v *Vault) signature(c dataimport.Credential) []byte {
	mac := hmac.New(sha256.New, v.sigKey)
	for _, field := range []string{normalizeURL(c.URL), c.Username, c.Password} {
		mac.Write([]byte(field))
		mac.Write([]byte{0})
	}
	return mac.Sum(nil)
}

// normalizeURL lowercases scheme and host and drops a trailing slash.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/")
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Store saves one credential. A credential already in the vault is
// reported as dataimport.StoreDuplicate. When c lacks a username or a
// password, any stored credential for the same URL that agrees on the
// fields c does carry counts as a duplicate.
func (v *Vault) Store(ctx context.Context, c dataimport.Credential) (dataimport.StoreOutcome, error) {
	if c.Username == "" && c.Password == "" {
		return dataimport.StoreFailed, errors.New("credman: credential has neither username nor password")
	}
	if c.Username == "" || c.Password == "" {
		dup, err := v.matchesPartial(ctx, c)
		if err != nil {
			return dataimport.StoreFailed, err
		}
		if dup {
			return dataimport.StoreDuplicate, nil
		}
	}
	fields := []string{c.Title, c.URL, c.Username, c.Password, c.Notes}
	sealed := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		ct, err := v.cipher.Seal([]byte(f))
		if err != nil {
			return dataimport.StoreFailed, fmt.Errorf("credman: seal: %w", err)
		}
		sealed = append(sealed, ct)
	}
	args := append([]interface{}{hostOf(c.URL), v.signature(c)}, sealed...)
	args = append(args, time.Now().Unix())
	res, err := v.db.ExecContext(ctx,
		`INSERT INTO credentials (host, signature, title, url, username, password, notes, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(signature) DO NOTHING`, args...)
	if err != nil {
		return dataimport.StoreFailed, fmt.Errorf("credman: insert credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dataimport.StoreDuplicate, nil
	}
	return dataimport.Stored, nil
}

// matchesPartial reports whether a stored credential for the same URL
// agrees with every field c carries. A missing username or password in c
// matches any stored value.
func (v *Vault) matchesPartial(ctx context.Context, c dataimport.Credential) (bool, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT url, username, password FROM credentials WHERE host = ?`, hostOf(c.URL))
	if err != nil {
		return false, fmt.Errorf("credman: query credentials: %w", err)
	}
	defer rows.Close()

	want := normalizeURL(c.URL)
	for rows.Next() {
		var sealed [3][]byte
		if err := rows.Scan(&sealed[0], &sealed[1], &sealed[2]); err != nil {
			return false, fmt.Errorf("credman: scan credential: %w", err)
		}
		var plain [3]string
		for i, ct := range sealed {
			p, err := v.cipher.Open(ct)
			if err != nil {
				return false, fmt.Errorf("credman: open credential: %w", err)
			}
			plain[i] = string(p)
		}
		if normalizeURL(plain[0]) != want {
			continue
		}
		if (c.Username == "" || c.Username == plain[1]) && (c.Password == "" || c.Password == plain[2]) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Credentials returns every stored credential, decrypted, ordered by
// host.
func (v *Vault) Credentials(ctx context.Context) ([]dataimport.Credential, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT title, url, username, password, notes FROM credentials ORDER BY host, id`)
	if err != nil {
		return nil, fmt.Errorf("credman: query credentials: %w", err)
	}
	defer rows.Close()

	var out []dataimport.Credential
	for rows.Next() {
		var sealed [5][]byte
		if err := rows.Scan(&sealed[0], &sealed[1], &sealed[2], &sealed[3], &sealed[4]); err != nil {
			return nil, fmt.Errorf("credman: scan credential: %w", err)
		}
		var plain [5]string
		for i, ct := range sealed {
			p, err := v.cipher.Open(ct)
			if err != nil {
				return nil, fmt.Errorf("credman: open credential: %w", err)
			}
			plain[i] = string(p)
		}
		out = append(out, dataimport.Credential{
			Title:    plain[0],
			URL:      plain[1],
			Username: plain[2],
			Password: plain[3],
			Notes:    plain[4],
		})
	}
	return out, rows.Err()
}

// Stats counts the stored credentials and bookmarks.
type Stats struct {
	Credentials int
	Bookmarks   int
	Folders     int
}

func (v *Vault) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := v.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM credentials),
		(SELECT COUNT(*) FROM bookmarks WHERE is_folder = 0),
		(SELECT COUNT(*) FROM bookmarks WHERE is_folder = 1)`).Scan(&s.Credentials, &s.Bookmarks, &s.Folders)
	if err != nil {
		return Stats{}, fmt.Errorf("credman: stats: %w", err)
	}
	return s, nil
}
