// Package dataimport holds the domain model shared by the store readers, the
// profile locator and the import orchestrator: data types, import sources,
// credential records, bookmark trees, per-type summaries and import errors.
package dataimport

import (
	"fmt"
	"strings"
)

// DataType identifies a category of browsing data that can be imported.
type DataType int

const (
	// Bookmarks covers bookmark trees.
	Bookmarks DataType = iota
	// Passwords covers saved website credentials.
	Passwords
)

// AllDataTypes lists every DataType in the order imports are sequenced.
var AllDataTypes = []DataType{Bookmarks, Passwords}

func (d DataType) String() string {
	switch d {
	case Bookmarks:
		return "bookmarks"
	case Passwords:
		return "passwords"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// ParseDataType converts a CLI name ("bookmarks", "passwords") to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bookmarks", "bookmark":
		return Bookmarks, nil
	case "passwords", "password", "logins":
		return Passwords, nil
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// SortDataTypes returns the given types deduplicated and in import order.
func SortDataTypes(types []DataType) []DataType {
	out := make([]DataType, 0, len(types))
	for _, dt := range AllDataTypes {
		for _, t := range types {
			if t == dt {
				out = append(out, dt)
				break
			}
		}
	}
	return out
}

// Credential is a decrypted login record produced by a store reader.
// An empty string means the field is absent.
// IMPORTANT: Password is SENSITIVE and must never be logged.
type Credential struct {
	Title    string
	URL      string
	Username string
	Password string
	Notes    string
}

// BookmarkNode is a bookmark or a folder of bookmarks.
type BookmarkNode struct {
	Title    string
	URL      string
	IsFolder bool
	Children []*BookmarkNode
}

// NewFolder returns an empty folder node.
func NewFolder(title string) *BookmarkNode {
	return &BookmarkNode{Title: title, IsFolder: true}
}

// Leaves counts the non-folder nodes below n, including n itself.
func (n *BookmarkNode) Leaves() int {
	if n == nil {
		return 0
	}
	if !n.IsFolder {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += c.Leaves()
	}
	return total
}

// Root titles of a BookmarkTree.
const (
	BookmarksBarTitle    = "Bookmarks Bar"
	OtherBookmarksTitle  = "Other Bookmarks"
	MobileBookmarksTitle = "Mobile Bookmarks"
)

// BookmarkTree is a normalized bookmark import. Both roots are always
// present, even when empty.
type BookmarkTree struct {
	BookmarksBar   *BookmarkNode
	OtherBookmarks *BookmarkNode
}

// NewBookmarkTree returns a tree with two empty roots.
func NewBookmarkTree() *BookmarkTree {
	return &BookmarkTree{
		BookmarksBar:   NewFolder(BookmarksBarTitle),
		OtherBookmarks: NewFolder(OtherBookmarksTitle),
	}
}

// Leaves counts all bookmarks in the tree.
func (t *BookmarkTree) Leaves() int {
	if t == nil {
		return 0
	}
	return t.BookmarksBar.Leaves() + t.OtherBookmarks.Leaves()
}

// Summary counts the outcome of handing records to a destination.
type Summary struct {
	Successful int
	Duplicate  int
	Failed     int
}

// Total is the number of records the destination saw.
func (s Summary) Total() int {
	return s.Successful + s.Duplicate + s.Failed
}

// Add accumulates another summary into s.
func (s *Summary) Add(o Summary) {
	s.Successful += o.Successful
	s.Duplicate += o.Duplicate
	s.Failed += o.Failed
}

func (s Summary) String() string {
	return fmt.Sprintf("%d imported, %d duplicate, %d failed", s.Successful, s.Duplicate, s.Failed)
}

// Result is the outcome of one import attempt for one DataType. Exactly one
// of Summary and Err is set.
type Result struct {
	Summary *Summary
	Err     *ImportError
}

// Success wraps a summary into a Result.
func Success(s Summary) Result {
	return Result{Summary: &s}
}

// Failure wraps an error into a Result.
func Failure(err *ImportError) Result {
	return Result{Err: err}
}

// IsSuccess reports whether the attempt produced a summary.
func (r Result) IsSuccess() bool {
	return r.Summary != nil && r.Err == nil
}

// Imported reports whether the attempt succeeded and the destination saw at
// least one record.
func (r Result) Imported() bool {
	return r.IsSuccess() && r.Summary.Total() > 0
}

// StoreOutcome is what a vault did with one credential.
type StoreOutcome int

const (
	Stored StoreOutcome = iota
	StoreDuplicate
	StoreFailed
)

func (o StoreOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case StoreDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Count adds one outcome to the summary.
func (s *Summary) Count(o StoreOutcome) {
	switch o {
	case Stored:
		s.Successful++
	case StoreDuplicate:
		s.Duplicate++
	default:
		s.Failed++
	}
}
