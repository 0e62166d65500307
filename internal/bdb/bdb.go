// Package bdb reads the key/value pairs of a Berkeley DB 1.85 hash file,
// the container format of legacy NSS key databases (key3.db).
//
// Only the layout NSS writes is supported: small items stored inline on
// bucket pages. Overflow (big) items are reported as corrupt.
package bdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	hashMagic = 0x061561
	// headerSize covers the fixed header fields up to and including hdrpages.
	headerSize = 0x40
	// Offsets below this value mark overflow and partial pairs.
	minItemOffset = 4
)

// ErrCorrupt is returned for files that are not hash databases or that use
// layouts the reader does not understand.
var ErrCorrupt = errors.New("bdb: corrupt or unsupported hash file")

type header struct {
	order    binary.ByteOrder
	pageSize int
	nkeys    int
	hdrPages int
}

func readHeader(r io.ReaderAt) (*header, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	var order binary.ByteOrder
	switch {
	case binary.BigEndian.Uint32(buf[0:4]) == hashMagic:
		order = binary.BigEndian
	case binary.LittleEndian.Uint32(buf[0:4]) == hashMagic:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("%w: bad magic %x", ErrCorrupt, buf[0:4])
	}
	h := &header{
		order:    order,
		pageSize: int(order.Uint32(buf[12:16])),
		nkeys:    int(order.Uint32(buf[0x38:0x3c])),
	}
	if h.pageSize < 64 || h.pageSize > 1<<16 || h.pageSize&(h.pageSize-1) != 0 {
		return nil, fmt.Errorf("%w: bad page size %d", ErrCorrupt, h.pageSize)
	}
	h.hdrPages = int(order.Uint32(buf[0x3c:0x40]))
	if h.hdrPages < 1 || h.hdrPages > 16 {
		h.hdrPages = 1
	}
	return h, nil
}

// ReadHash returns every key/value pair in the hash file of the given size.
// Keys are returned as strings so that binary keys can be looked up with a
// string conversion.
func ReadHash(r io.ReaderAt, size int64) (map[string][]byte, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, h.nkeys)
	page := make([]byte, h.pageSize)
	pages := int(size / int64(h.pageSize))
	var pageErr error
	// Bitmap pages sit between bucket pages and do not decode as buckets;
	// they are skipped and only reported if keys end up missing.
	for p := h.hdrPages; p < pages && len(out) < h.nkeys; p++ {
		if _, err := r.ReadAt(page, int64(p)*int64(h.pageSize)); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrCorrupt, p, err)
		}
		items, err := readPage(page, h.order)
		if err != nil {
			pageErr = fmt.Errorf("page %d: %w", p, err)
			continue
		}
		for k, v := range items {
			out[k] = v
		}
	}
	if len(out) < h.nkeys {
		if pageErr != nil {
			return nil, pageErr
		}
		return nil, fmt.Errorf("%w: found %d of %d keys", ErrCorrupt, len(out), h.nkeys)
	}
	return out, nil
}

// readPage decodes one bucket page. The page starts with a uint16 count of
// offsets followed by (key, data) offset pairs; items are packed from the
// end of the page downwards, each key immediately above its data.
func readPage(page []byte, order binary.ByteOrder) (map[string][]byte, error) {
	n := int(order.Uint16(page[0:2]))
	if n == 0 {
		return nil, nil
	}
	if n%2 != 0 || 2+2*n > len(page) {
		return nil, fmt.Errorf("%w: bad entry count %d", ErrCorrupt, n)
	}
	out := make(map[string][]byte, n/2)
	top := len(page)
	for i := 0; i < n; i += 2 {
		keyOff := int(order.Uint16(page[2+2*i:]))
		dataOff := int(order.Uint16(page[4+2*i:]))
		if keyOff < minItemOffset || dataOff < minItemOffset {
			return nil, fmt.Errorf("%w: overflow item", ErrCorrupt)
		}
		if !(dataOff <= keyOff && keyOff <= top) {
			return nil, fmt.Errorf("%w: bad item offsets %d/%d", ErrCorrupt, keyOff, dataOff)
		}
		key := page[keyOff:top]
		data := make([]byte, keyOff-dataOff)
		copy(data, page[dataOff:keyOff])
		out[string(key)] = data
		top = dataOff
	}
	return out, nil
}
