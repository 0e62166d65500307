// Package bdbtest writes minimal Berkeley DB 1.85 hash files for tests.
package bdbtest

import (
	"encoding/binary"
	"sort"
)

// PageSize is the page size of files written by Build.
const PageSize = 1024

// Item is one key/value pair.
type Item struct {
	Key   []byte
	Value []byte
}

// Build returns a hash file holding items, one bucket page per item so that
// large values fit. Items are written in key order.
func Build(order binary.ByteOrder, items []Item) []byte {
	sorted := append([]Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return string(sorted[i].Key) < string(sorted[j].Key) })

	buf := make([]byte, PageSize*(1+len(sorted)))
	order.PutUint32(buf[0:4], 0x061561)
	order.PutUint32(buf[4:8], 2)
	order.PutUint32(buf[8:12], 1234)
	order.PutUint32(buf[12:16], PageSize)
	order.PutUint32(buf[0x38:0x3c], uint32(len(sorted)))
	order.PutUint32(buf[0x3c:0x40], 1)

	for i, it := range sorted {
		page := buf[PageSize*(i+1) : PageSize*(i+2)]
		keyOff := PageSize - len(it.Key)
		dataOff := keyOff - len(it.Value)
		copy(page[keyOff:], it.Key)
		copy(page[dataOff:], it.Value)
		order.PutUint16(page[0:2], 2)
		order.PutUint16(page[2:4], uint16(keyOff))
		order.PutUint16(page[4:6], uint16(dataOff))
	}
	return buf
}
