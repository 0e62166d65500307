// Package der is a pull-based reader for the small subset of DER that NSS
// key databases and Firefox login blobs use: SEQUENCE, OCTET STRING,
// INTEGER, OBJECT IDENTIFIER and NULL with definite lengths.
//
// A Cursor is an immutable view over a byte slice. Each read returns the
// decoded value together with the cursor positioned after it, so callers
// walk structures without building a tree:
//
//	inner, rest, err := c.Sequence()
//	salt, inner, err := inner.OctetString()
package der

import (
	"fmt"
	"strconv"
	"strings"
)

// Universal tags understood by the cursor.
const (
	TagInteger     byte = 0x02
	TagOctetString byte = 0x04
	TagNull        byte = 0x05
	TagOID         byte = 0x06
	TagSequence    byte = 0x30
)

// FormatError reports malformed or unexpected DER at an absolute offset
// into the original input.
type FormatError struct {
	Offset int
	Tag    byte
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("der: %s at offset %d (tag 0x%02x)", e.Msg, e.Offset, e.Tag)
}

// Cursor reads DER elements from a byte slice.
type Cursor struct {
	data []byte
	// base is the offset of data[0] in the original input.
	base int
}

// New returns a cursor over b.
func New(b []byte) Cursor {
	return Cursor{data: b}
}

// Empty reports whether the cursor has no bytes left.
func (c Cursor) Empty() bool {
	return len(c.data) == 0
}

// Offset is the absolute position of the cursor.
func (c Cursor) Offset() int {
	return c.base
}

// PeekTag returns the tag of the next element without consuming it.
func (c Cursor) PeekTag() (byte, bool) {
	if len(c.data) == 0 {
		return 0, false
	}
	return c.data[0], true
}

// element splits off the next TLV. It returns the content and the cursor
// after the element.
func (c Cursor) element(want byte) (content Cursor, rest Cursor, err error) {
	if len(c.data) < 2 {
		return Cursor{}, c, &FormatError{Offset: c.base, Tag: want, Msg: "truncated header"}
	}
	tag := c.data[0]
	if want != 0 && tag != want {
		return Cursor{}, c, &FormatError{Offset: c.base, Tag: tag, Msg: fmt.Sprintf("unexpected tag, want 0x%02x", want)}
	}
	n := int(c.data[1])
	hdr := 2
	if n&0x80 != 0 {
		octets := n & 0x7f
		if octets == 0 {
			return Cursor{}, c, &FormatError{Offset: c.base + 1, Tag: tag, Msg: "indefinite length"}
		}
		if octets > 4 {
			return Cursor{}, c, &FormatError{Offset: c.base + 1, Tag: tag, Msg: "length too long"}
		}
		if len(c.data) < 2+octets {
			return Cursor{}, c, &FormatError{Offset: c.base + 1, Tag: tag, Msg: "truncated length"}
		}
		n = 0
		for _, b := range c.data[2 : 2+octets] {
			n = n<<8 | int(b)
		}
		hdr += octets
	}
	if n < 0 || n > len(c.data)-hdr {
		return Cursor{}, c, &FormatError{Offset: c.base, Tag: tag, Msg: fmt.Sprintf("length %d exceeds input", n)}
	}
	content = Cursor{data: c.data[hdr : hdr+n], base: c.base + hdr}
	rest = Cursor{data: c.data[hdr+n:], base: c.base + hdr + n}
	return content, rest, nil
}

// Sequence reads a SEQUENCE and returns a cursor over its contents.
func (c Cursor) Sequence() (Cursor, Cursor, error) {
	return c.element(TagSequence)
}

// OctetString reads an OCTET STRING.
func (c Cursor) OctetString() ([]byte, Cursor, error) {
	content, rest, err := c.element(TagOctetString)
	if err != nil {
		return nil, c, err
	}
	return content.data, rest, nil
}

// Integer reads an INTEGER and returns its big-endian content bytes,
// including any leading zero octet.
func (c Cursor) Integer() ([]byte, Cursor, error) {
	content, rest, err := c.element(TagInteger)
	if err != nil {
		return nil, c, err
	}
	if len(content.data) == 0 {
		return nil, c, &FormatError{Offset: c.base, Tag: TagInteger, Msg: "empty integer"}
	}
	return content.data, rest, nil
}

// Int reads a non-negative INTEGER that fits in an int.
func (c Cursor) Int() (int, Cursor, error) {
	b, rest, err := c.Integer()
	if err != nil {
		return 0, c, err
	}
	if b[0]&0x80 != 0 {
		return 0, c, &FormatError{Offset: c.base, Tag: TagInteger, Msg: "negative integer"}
	}
	for len(b) > 1 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) > 4 {
		return 0, c, &FormatError{Offset: c.base, Tag: TagInteger, Msg: "integer too large"}
	}
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v, rest, nil
}

// OID reads an OBJECT IDENTIFIER and returns it in dotted form.
func (c Cursor) OID() (string, Cursor, error) {
	content, rest, err := c.element(TagOID)
	if err != nil {
		return "", c, err
	}
	b := content.data
	if len(b) == 0 {
		return "", c, &FormatError{Offset: c.base, Tag: TagOID, Msg: "empty object identifier"}
	}
	var arcs []string
	v := 0
	for i, x := range b {
		if v > 1<<24 {
			return "", c, &FormatError{Offset: content.base + i, Tag: TagOID, Msg: "arc too large"}
		}
		v = v<<7 | int(x&0x7f)
		if x&0x80 != 0 {
			if i == len(b)-1 {
				return "", c, &FormatError{Offset: content.base + i, Tag: TagOID, Msg: "truncated arc"}
			}
			continue
		}
		if len(arcs) == 0 {
			first := v / 40
			if first > 2 {
				first = 2
			}
			arcs = append(arcs, strconv.Itoa(first), strconv.Itoa(v-first*40))
		} else {
			arcs = append(arcs, strconv.Itoa(v))
		}
		v = 0
	}
	return strings.Join(arcs, "."), rest, nil
}

// Null reads a NULL.
func (c Cursor) Null() (Cursor, error) {
	content, rest, err := c.element(TagNull)
	if err != nil {
		return c, err
	}
	if !content.Empty() {
		return c, &FormatError{Offset: c.base, Tag: TagNull, Msg: "non-empty null"}
	}
	return rest, nil
}

// Skip steps over the next element whatever its tag.
func (c Cursor) Skip() (Cursor, error) {
	_, rest, err := c.element(0)
	return rest, err
}

// Index returns a cursor positioned at the i-th element of c.
func (c Cursor) Index(i int) (Cursor, error) {
	cur := c
	for k := 0; k < i; k++ {
		next, err := cur.Skip()
		if err != nil {
			return Cursor{}, err
		}
		cur = next
	}
	if cur.Empty() {
		return Cursor{}, &FormatError{Offset: cur.base, Msg: fmt.Sprintf("no element at index %d", i)}
	}
	return cur, nil
}

// Path descends through nested sequences: for each index it selects that
// element of the current sequence and enters it. The returned cursor is
// positioned at the element named by the last index, which need not be a
// sequence itself.
//
//	Path(c, 0, 1, 0) is the first element of the second element of the
//	first element of c.
func Path(c Cursor, indexes ...int) (Cursor, error) {
	cur := c
	for n, i := range indexes {
		el, err := cur.Index(i)
		if err != nil {
			return Cursor{}, err
		}
		if n == len(indexes)-1 {
			return el, nil
		}
		inner, _, err := el.Sequence()
		if err != nil {
			return Cursor{}, err
		}
		cur = inner
	}
	return cur, nil
}
