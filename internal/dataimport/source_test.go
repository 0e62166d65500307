package dataimport

import (
	"sort"
	"testing"
)

func TestSourceInfo(t *testing.T) {
	for _, s := range AllSources() {
		info := s.MustInfo()
		if info.Name == "" || len(info.DataTypes) == 0 {
			t.Errorf("%s: incomplete info %+v", s, info)
		}
		if !info.Supports(info.FileDataType) {
			t.Errorf("%s: file data type %s not supported", s, info.FileDataType)
		}
		if (info.Family == FamilyChromium) != (info.KeychainLabel != "") {
			t.Errorf("%s: keychain label %q for family %s", s, info.KeychainLabel, info.Family)
		}
	}
	if Safari.MustInfo().ProfileBased() || !Firefox.MustInfo().ProfileBased() {
		t.Error("unexpected ProfileBased")
	}
	if Tor.MustInfo().Supports(Passwords) {
		t.Error("Tor only provides bookmarks")
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want Source
	}{
		{"chrome", Chrome},
		{"OperaGX", OperaGX},
		{" lastpass ", LastPass},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("%q: want %s, got %s (%v)", tt.in, tt.want, got, err)
		}
	}
	if _, err := ParseSource("netscape"); err == nil {
		t.Error("expected error")
	}
}

func TestAllSourcesSorted(t *testing.T) {
	all := AllSources()
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i] < all[j] }) {
		t.Fatalf("not sorted: %v", all)
	}
	if _, ok := Source("netscape").Info(); ok {
		t.Error("unknown source must not resolve")
	}
	defer func() {
		if recover() == nil {
			t.Error("MustInfo must panic for unknown sources")
		}
	}()
	Source("netscape").MustInfo()
}
