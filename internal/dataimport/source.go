package dataimport

import (
	"fmt"
	"sort"
	"strings"
)

// Family groups sources that share a store format.
type Family int

const (
	// FamilyFile sources only support manual file import.
	FamilyFile Family = iota
	// FamilyChromium sources keep Chromium-style profile directories.
	FamilyChromium
	// FamilyFirefox sources keep NSS key databases and logins.json.
	FamilyFirefox
)

func (f Family) String() string {
	switch f {
	case FamilyChromium:
		return "chromium"
	case FamilyFirefox:
		return "firefox"
	default:
		return "file"
	}
}

// Source identifies a third-party product whose data can be imported.
type Source string

const (
	Brave         Source = "brave"
	Chrome        Source = "chrome"
	Chromium      Source = "chromium"
	CocCoc        Source = "coccoc"
	Edge          Source = "edge"
	Opera         Source = "opera"
	OperaGX       Source = "operaGX"
	Vivaldi       Source = "vivaldi"
	Yandex        Source = "yandex"
	Firefox       Source = "firefox"
	LibreWolf     Source = "librewolf"
	Tor           Source = "tor"
	Safari        Source = "safari"
	Bitwarden     Source = "bitwarden"
	LastPass      Source = "lastPass"
	OnePassword7  Source = "onePassword7"
	OnePassword8  Source = "onePassword8"
	CSV           Source = "csv"
	BookmarksHTML Source = "bookmarksHTML"
)

// SourceInfo describes a Source.
type SourceInfo struct {
	Name   string
	Family Family
	// KeychainLabel is the OS secret-store label for Chromium browsers,
	// e.g. "Chrome" for the "Chrome Safe Storage" entry.
	KeychainLabel string
	// DataTypes lists the types the source can provide.
	DataTypes []DataType
	// FileDataType is the type a manual file import starts with.
	FileDataType DataType
}

// ProfileBased reports whether the source is imported from profile
// directories rather than from exported files.
func (i SourceInfo) ProfileBased() bool {
	return i.Family != FamilyFile
}

// Supports reports whether dt is among the source's data types.
func (i SourceInfo) Supports(dt DataType) bool {
	for _, t := range i.DataTypes {
		if t == dt {
			return true
		}
	}
	return false
}

var both = []DataType{Bookmarks, Passwords}

var sources = map[Source]SourceInfo{
	Brave:         {Name: "Brave", Family: FamilyChromium, KeychainLabel: "Brave", DataTypes: both, FileDataType: Passwords},
	Chrome:        {Name: "Chrome", Family: FamilyChromium, KeychainLabel: "Chrome", DataTypes: both, FileDataType: Passwords},
	Chromium:      {Name: "Chromium", Family: FamilyChromium, KeychainLabel: "Chromium", DataTypes: both, FileDataType: Passwords},
	CocCoc:        {Name: "Cốc Cốc", Family: FamilyChromium, KeychainLabel: "CocCoc", DataTypes: both, FileDataType: Passwords},
	Edge:          {Name: "Edge", Family: FamilyChromium, KeychainLabel: "Microsoft Edge", DataTypes: both, FileDataType: Passwords},
	Opera:         {Name: "Opera", Family: FamilyChromium, KeychainLabel: "Opera", DataTypes: both, FileDataType: Passwords},
	OperaGX:       {Name: "Opera GX", Family: FamilyChromium, KeychainLabel: "Opera", DataTypes: both, FileDataType: Passwords},
	Vivaldi:       {Name: "Vivaldi", Family: FamilyChromium, KeychainLabel: "Vivaldi", DataTypes: both, FileDataType: Passwords},
	Yandex:        {Name: "Yandex", Family: FamilyChromium, KeychainLabel: "Yandex", DataTypes: []DataType{Bookmarks}, FileDataType: Bookmarks},
	Firefox:       {Name: "Firefox", Family: FamilyFirefox, DataTypes: both, FileDataType: Passwords},
	LibreWolf:     {Name: "LibreWolf", Family: FamilyFirefox, DataTypes: both, FileDataType: Passwords},
	Tor:           {Name: "Tor Browser", Family: FamilyFirefox, DataTypes: []DataType{Bookmarks}, FileDataType: Bookmarks},
	Safari:        {Name: "Safari", Family: FamilyFile, DataTypes: both, FileDataType: Passwords},
	Bitwarden:     {Name: "Bitwarden", Family: FamilyFile, DataTypes: []DataType{Passwords}, FileDataType: Passwords},
	LastPass:      {Name: "LastPass", Family: FamilyFile, DataTypes: []DataType{Passwords}, FileDataType: Passwords},
	OnePassword7:  {Name: "1Password 7", Family: FamilyFile, DataTypes: []DataType{Passwords}, FileDataType: Passwords},
	OnePassword8:  {Name: "1Password", Family: FamilyFile, DataTypes: []DataType{Passwords}, FileDataType: Passwords},
	CSV:           {Name: "CSV Passwords File", Family: FamilyFile, DataTypes: []DataType{Passwords}, FileDataType: Passwords},
	BookmarksHTML: {Name: "HTML Bookmarks File", Family: FamilyFile, DataTypes: []DataType{Bookmarks}, FileDataType: Bookmarks},
}

// Info returns the description of s. Unknown sources report ok=false.
func (s Source) Info() (SourceInfo, bool) {
	info, ok := sources[s]
	return info, ok
}

// MustInfo returns the description of a known source and panics otherwise.
func (s Source) MustInfo() SourceInfo {
	info, ok := sources[s]
	if !ok {
		panic(fmt.Sprintf("dataimport: unknown source %q", string(s)))
	}
	return info
}

// ParseSource looks a source up by its identifier, ignoring case.
func ParseSource(name string) (Source, error) {
	for s := range sources {
		if strings.EqualFold(string(s), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", name)
}

// AllSources returns every known source sorted by identifier.
func AllSources() []Source {
	out := make([]Source, 0, len(sources))
	for s := range sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
