// Package csvtext tokenizes the loosely formatted delimited text that
// browsers and password managers export.
//
// Exports in the wild mix two conventions for quotes embedded in quoted
// fields: doubled quotes ("") and backslash escapes (\"). Every record is
// read under both conventions and the interpretations are scored:
//
//  1. identical interpretations are taken as is;
//  2. an interpretation that needed no lenient recovery beats one that did;
//  3. otherwise the interpretation whose field count matches the document's
//     majority field count wins;
//  4. otherwise the doubled-quote interpretation wins.
//
// A record is only ambiguous when both readings needed recovery, so the
// majority field count never overrides a clean reading. In
// a,b,c\n"x\",y",z the backslash reading of the second line is clean and
// yields two fields even though the majority is three.
//
// Lenient recovery never aborts parsing: stray quotes are kept literally and
// an unterminated quoted field is re-read as an unquoted one.
package csvtext

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrSyntax is returned for input that cannot be decoded as text.
var ErrSyntax = errors.New("csvtext: syntax error")

// Convention is a quote escaping convention.
type Convention int

const (
	// Doubled escapes a quote as "".
	Doubled Convention = iota
	// Backslash escapes a quote as \" and a backslash as \\.
	Backslash
)

func (c Convention) String() string {
	if c == Backslash {
		return "backslash"
	}
	return "doubled"
}

// Parse splits text into rows of fields. Blank lines are skipped and empty
// input yields no rows.
func Parse(text string) ([][]string, error) {
	src, err := normalize(text)
	if err != nil {
		return nil, err
	}
	start := skipBlank(src, 0)
	if start >= len(src) {
		return nil, nil
	}

	p := &parser{src: src, delim: detectDelimiter(src, start)}
	majority := p.majorityFieldCount(start)

	var rows [][]string
	for pos := start; pos < len(src); pos = skipBlank(src, pos) {
		d := p.record(pos, Doubled)
		b := p.record(pos, Backslash)
		r := choose(d, b, majority)
		rows = append(rows, r.fields)
		pos = r.end
	}
	return rows, nil
}

// normalize decodes UTF-16 input, drops byte-order marks and strips ASCII
// control characters other than tab and newline.
func normalize(text string) (string, error) {
	utf16 := strings.HasPrefix(text, "\xff\xfe") || strings.HasPrefix(text, "\xfe\xff")
	if !utf16 && !utf8.ValidString(text) {
		return "", ErrSyntax
	}
	decoded, _, err := transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), text)
	if err != nil {
		return "", errors.Join(ErrSyntax, err)
	}
	decoded = strings.TrimPrefix(decoded, "\ufeff")

	var b strings.Builder
	b.Grow(len(decoded))
	for i := 0; i < len(decoded); i++ {
		c := decoded[i]
		if (c < 0x20 && c != '\t' && c != '\n') || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func skipBlank(src string, pos int) int {
	for pos < len(src) && src[pos] == '\n' {
		pos++
	}
	return pos
}

// detectDelimiter picks semicolon only when it splits the first record
// into strictly more fields than comma does.
func detectDelimiter(src string, start int) byte {
	best := func(delim byte) int {
		p := &parser{src: src, delim: delim}
		n := len(p.record(start, Doubled).fields)
		if m := len(p.record(start, Backslash).fields); m > n {
			n = m
		}
		return n
	}
	if best(';') > best(',') {
		return ';'
	}
	return ','
}

type record struct {
	fields []string
	end    int
	// clean is false when any lenient recovery was needed.
	clean bool
}

func choose(d, b record, majority int) record {
	if d.end == b.end && equalFields(d.fields, b.fields) {
		return d
	}
	if d.clean != b.clean {
		if b.clean {
			return b
		}
		return d
	}
	dm, bm := len(d.fields) == majority, len(b.fields) == majority
	if bm && !dm {
		return b
	}
	return d
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type parser struct {
	src   string
	delim byte
}

// majorityFieldCount returns the most frequent field count among clean
// records of both whole-document parses, or 0 if there are none.
func (p *parser) majorityFieldCount(start int) int {
	counts := map[int]int{}
	var order []int
	for _, conv := range []Convention{Doubled, Backslash} {
		for pos := start; pos < len(p.src); pos = skipBlank(p.src, pos) {
			r := p.record(pos, conv)
			if r.clean {
				if counts[len(r.fields)] == 0 {
					order = append(order, len(r.fields))
				}
				counts[len(r.fields)]++
			}
			pos = r.end
		}
	}
	best, bestN := 0, 0
	for _, n := range order {
		if counts[n] > bestN {
			best, bestN = n, counts[n]
		}
	}
	return best
}

// record reads one record starting at pos under conv.
func (p *parser) record(pos int, conv Convention) record {
	r := record{clean: true}
	for {
		f, next, ok := p.field(pos, conv)
		r.fields = append(r.fields, f)
		r.clean = r.clean && ok
		pos = next
		if pos >= len(p.src) {
			r.end = pos
			return r
		}
		if p.src[pos] == '\n' {
			r.end = pos + 1
			return r
		}
		// delimiter
		pos++
		if pos >= len(p.src) {
			r.fields = append(r.fields, "")
			r.end = pos
			return r
		}
	}
}

// field reads one field starting at pos. It returns the field value, the
// offset of the delimiter, newline or end that terminated it, and whether
// it was read without recovery.
func (p *parser) field(pos int, conv Convention) (string, int, bool) {
	q := pos
	for q < len(p.src) && (p.src[q] == ' ' || p.src[q] == '\t') {
		q++
	}
	if q < len(p.src) && p.src[q] == '"' {
		if v, end, ok, terminated := p.quoted(q, conv); terminated {
			return v, end, ok
		}
		v, end, _ := p.unquoted(pos)
		return v, end, false
	}
	return p.unquoted(pos)
}

func (p *parser) unquoted(pos int) (string, int, bool) {
	end := pos
	for end < len(p.src) && p.src[end] != p.delim && p.src[end] != '\n' {
		end++
	}
	v := p.src[pos:end]
	return v, end, !strings.Contains(v, `"`)
}

// quoted reads a quoted field whose opening quote is at open. terminated is
// false when the input ended before a closing quote.
func (p *parser) quoted(open int, conv Convention) (v string, end int, ok, terminated bool) {
	var b strings.Builder
	ok = true
	src := p.src
	for i := open + 1; i < len(src); {
		c := src[i]
		if conv == Backslash && c == '\\' && i+1 < len(src) && (src[i+1] == '"' || src[i+1] == '\\') {
			b.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == '"' {
			if j, closes := p.closesAt(i + 1); closes {
				return b.String(), j, ok, true
			}
			if conv == Doubled && i+1 < len(src) && src[i+1] == '"' {
				b.WriteByte('"')
				i += 2
				continue
			}
			b.WriteByte('"')
			ok = false
			i++
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, false, false
}

// closesAt reports whether a quote just before j closes a field: only
// blanks may separate it from a delimiter, a newline or the end of input.
func (p *parser) closesAt(j int) (int, bool) {
	for j < len(p.src) && (p.src[j] == ' ' || p.src[j] == '\t') {
		j++
	}
	if j >= len(p.src) || p.src[j] == p.delim || p.src[j] == '\n' {
		return j, true
	}
	return j, false
}
