package stores

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/warpdl/warpimport/internal/csvtext"
	"github.com/warpdl/warpimport/internal/dataimport"
)

// CSVOptions tunes ReadCSVLogins.
type CSVOptions struct {
	// Source selects vendor default column positions for files without a
	// header row. Zero value means generic CSV.
	Source dataimport.Source
}

// Header vocabularies. A column name matches when it ends with one of the
// words, case-insensitively.
var (
	usernameHeader = regexp.MustCompile(`(?i)(?:^|\b|\s|_)(?:login|username)$`)
	passwordHeader = regexp.MustCompile(`(?i)(?:^|\b|\s|_)(?:password|pwd)$`)
	titleHeader    = regexp.MustCompile(`(?i)(?:^|\b|\s|_)(?:name|title)$`)
	urlHeader      = regexp.MustCompile(`(?i)(?:^|\b|\s|_)(?:url|uri|hostname|website)$`)
	notesHeader    = regexp.MustCompile(`(?i)(?:^|\b|\s|_)(?:notes|note|extra|comments)$`)
)

// Zoho Vault exports.
const (
	zohoFirstHeader  = "Password Name"
	zohoSecretData   = "SecretData"
	zohoGeneralWidth = 7
	zohoUserPrefix   = "User Name:"
	zohoPassPrefix   = "Password:"
)

// columns locates the credential fields of a row; -1 marks an absent column.
type columns struct {
	title, url, username, password, notes int
	// secretData means username and password are lines of one cell.
	secretData bool
}

var (
	withTitle    = columns{title: 3, url: 0, username: 1, password: 2, notes: -1}
	withoutTitle = columns{title: -1, url: 0, username: 1, password: 2, notes: -1}
	onePassword  = columns{title: 3, url: 5, username: 6, password: 2, notes: -1}
)

func (c columns) max() int {
	m := c.title
	for _, v := range []int{c.url, c.username, c.password, c.notes} {
		if v > m {
			m = v
		}
	}
	return m
}

func defaultColumns(src dataimport.Source) (columns, bool) {
	switch src {
	case dataimport.OnePassword7, dataimport.OnePassword8:
		return onePassword, true
	}
	return columns{}, false
}

func firstMatch(header []string, re *regexp.Regexp) int {
	for i, h := range header {
		if h != "" && re.MatchString(strings.TrimSpace(h)) {
			return i
		}
	}
	return -1
}

// headerColumns infers column positions from the first row, or reports
// false when the first row does not look like a header. Matched columns
// are blanked so that one name is never claimed twice.
func headerColumns(rows [][]string) (columns, bool) {
	if len(rows) == 0 {
		return columns{}, false
	}
	header := append([]string(nil), rows[0]...)
	c := columns{title: -1, url: -1, username: -1, password: -1, notes: -1}

	if c.username = firstMatch(header, usernameHeader); c.username >= 0 {
		header[c.username] = ""
		if c.password = firstMatch(header, passwordHeader); c.password < 0 {
			return columns{}, false
		}
		header[c.password] = ""
	} else if len(header) > 0 && strings.TrimSpace(header[0]) == zohoFirstHeader && len(rows) > 1 {
		secret := indexOf(header, zohoSecretData)
		if secret < 0 {
			secret = indexOf(rows[1], zohoSecretData)
		}
		switch {
		case secret >= 0:
			c.username, c.password, c.secretData = secret, secret, true
		case len(rows[1]) == zohoGeneralWidth:
			c.username, c.password = 5, 6
		default:
			return columns{}, false
		}
		for _, i := range []int{c.username, c.password} {
			if i < len(header) {
				header[i] = ""
			}
		}
	} else {
		return columns{}, false
	}

	for _, f := range []struct {
		dst *int
		re  *regexp.Regexp
	}{{&c.title, titleHeader}, {&c.url, urlHeader}, {&c.notes, notesHeader}} {
		if *f.dst = firstMatch(header, f.re); *f.dst >= 0 {
			header[*f.dst] = ""
		}
	}
	return c, true
}

func indexOf(row []string, s string) int {
	for i, v := range row {
		if strings.TrimSpace(v) == s {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// read extracts a credential from row, or reports false when the row is
// too short for the layout.
func (c columns) read(row []string) (dataimport.Credential, bool) {
	var cred dataimport.Credential
	if c.secretData {
		if c.username >= len(row) {
			return cred, false
		}
		var user, pass bool
		for _, line := range strings.Split(row[c.username], "\n") {
			switch {
			case !user && strings.HasPrefix(line, zohoUserPrefix):
				cred.Username, user = strings.TrimPrefix(line, zohoUserPrefix), true
			case !pass && strings.HasPrefix(line, zohoPassPrefix):
				cred.Password, pass = strings.TrimPrefix(line, zohoPassPrefix), true
			}
		}
		if !user || !pass {
			return cred, false
		}
	} else {
		if c.username >= len(row) || c.password >= len(row) {
			return cred, false
		}
		cred.Username = row[c.username]
		cred.Password = row[c.password]
	}
	cred.Title = cell(row, c.title)
	cred.URL = cell(row, c.url)
	cred.Notes = cell(row, c.notes)
	return cred, true
}

// ReadCSVLogins reads credentials from a delimited export. A header row is
// recognized by its column names; without one the source's default layout
// is used, else url, username, password and an optional title.
func ReadCSVLogins(ctx context.Context, r io.Reader, opts CSVOptions) ([]dataimport.Credential, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot read file: %w", err))
	}
	rows, err := csvtext.Parse(string(raw))
	if err != nil {
		if errors.Is(err, csvtext.ErrSyntax) {
			return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, err)
		}
		return nil, dataimport.NewError(dataimport.CategoryDataCorrupted, fmt.Errorf("error: cannot parse file: %w", err))
	}

	layout, hasHeader := headerColumns(rows)
	if hasHeader {
		rows = rows[1:]
	}
	fixed, hasDefault := defaultColumns(opts.Source)

	creds := make([]dataimport.Credential, 0, len(rows))
	unreadable := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := layout
		switch {
		case hasHeader:
		case hasDefault:
			c = fixed
		case len(row) > withTitle.max():
			c = withTitle
		default:
			c = withoutTitle
		}
		cred, ok := c.read(row)
		if !ok {
			unreadable++
			continue
		}
		if cred.Username == "" && cred.Password == "" {
			continue
		}
		if titleRepeatsURL(cred.Title, cred.URL) {
			cred.Title = ""
		}
		creds = append(creds, cred)
	}
	if len(creds) == 0 && unreadable > 0 && unreadable == len(rows) {
		return nil, dataimport.Errorf(dataimport.CategoryDataCorrupted, "error: no row has the expected columns")
	}
	return creds, nil
}

func stripHostPrefix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}

// titleRepeatsURL reports whether title carries no information beyond the
// url: the url itself, its host, host and query, or host, path and query.
// Scheme and a leading "www." are ignored on both sides.
func titleRepeatsURL(title, rawURL string) bool {
	if title == "" || rawURL == "" {
		return false
	}
	t := stripHostPrefix(title)
	if t == stripHostPrefix(rawURL) {
		return true
	}
	withScheme := rawURL
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	candidates := []string{host}
	if u.RawQuery != "" {
		candidates = append(candidates, host+"?"+u.RawQuery, host+u.Path+"?"+u.RawQuery)
	}
	for _, c := range candidates {
		if t == strings.TrimSuffix(c, "/") {
			return true
		}
	}
	return false
}
