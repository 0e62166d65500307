package keyring

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/warpdl/warpimport/common"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/zalando/go-keyring"
)

func stubKeyring(t *testing.T) map[string]string {
	t.Helper()
	origSet, origGet, origDelete, origRand := keyringSet, keyringGet, keyringDelete, randRead
	t.Cleanup(func() {
		keyringSet, keyringGet, keyringDelete, randRead = origSet, origGet, origDelete, origRand
	})
	store := map[string]string{}
	keyringSet = func(app, key, value string) error {
		store[app+"/"+key] = value
		return nil
	}
	keyringGet = func(app, key string) (string, error) {
		v, ok := store[app+"/"+key]
		if !ok {
			return "", keyring.ErrNotFound
		}
		return v, nil
	}
	keyringDelete = func(app, key string) error {
		if _, ok := store[app+"/"+key]; !ok {
			return keyring.ErrNotFound
		}
		delete(store, app+"/"+key)
		return nil
	}
	randRead = func(b []byte) (int, error) {
		for i := range b {
			b[i] = byte(i)
		}
		return len(b), nil
	}
	return store
}

func TestKeyringSetGetDelete(t *testing.T) {
	store := stubKeyring(t)
	kr := NewKeyring()

	if _, err := kr.GetKey(); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	key, err := kr.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if store["warpimport/vault"] != hex.EncodeToString(key) {
		t.Fatalf("unexpected stored value %q", store["warpimport/vault"])
	}
	got, err := kr.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatalf("roundtrip failed: set %x, got %x", key, got)
	}
	if err := kr.DeleteKey(); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, ok := store["warpimport/vault"]; ok {
		t.Fatal("key should be deleted")
	}
	if err := kr.DeleteKey(); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestKeyringGetKeyBadValue(t *testing.T) {
	store := stubKeyring(t)
	kr := NewKeyring()
	for _, v := range []string{"not-valid-hex!", "aabbcc"} {
		store["warpimport/vault"] = v
		if _, err := kr.GetKey(); err == nil {
			t.Fatalf("expected error for %q", v)
		}
	}
}

func TestKeyringSetKeyErrors(t *testing.T) {
	stubKeyring(t)
	kr := NewKeyring()

	randRead = func([]byte) (int, error) { return 0, errors.New("rand fail") }
	if _, err := kr.SetKey(); err == nil {
		t.Fatal("expected rand error")
	}

	randRead = func(b []byte) (int, error) { return len(b), nil }
	keyringSet = func(string, string, string) error { return errors.New("dbus: no session bus") }
	_, err := kr.SetKey()
	var sysErr *SystemError
	if !errors.As(err, &sysErr) || sysErr.Code != CodeUnknown {
		t.Fatalf("expected SystemError, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		denied bool
		code   int
	}{
		{keyring.ErrNotFound, false, CodeNotFound},
		{errors.New("security: User canceled the operation."), true, 0},
		{errors.New("Prompt dismissed"), true, 0},
		{errors.New("exit status 51"), false, CodeUnknown},
	}
	for _, tt := range tests {
		err := classify(tt.err)
		if tt.denied {
			if !errors.Is(err, ErrUserDenied) {
				t.Errorf("classify(%v) = %v, want a denial", tt.err, err)
			}
			continue
		}
		var sysErr *SystemError
		if !errors.As(err, &sysErr) || sysErr.Code != tt.code {
			t.Errorf("classify(%v) = %v, want code %d", tt.err, err, tt.code)
		}
		if !errors.Is(err, tt.err) {
			t.Errorf("classify(%v) should wrap the cause", tt.err)
		}
	}
}

func TestSafeStorageKeyMaterial(t *testing.T) {
	store := stubKeyring(t)
	store["Chrome Safe Storage/Chrome"] = "peanuts-and-more"

	s := &SafeStorage{}
	got, err := s.KeyMaterial(context.Background(), dataimport.Chrome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "peanuts-and-more" {
		t.Fatalf("unexpected key material %q", got)
	}

	if _, err := s.KeyMaterial(context.Background(), dataimport.Brave); !IsNotFound(err) {
		t.Fatalf("expected not found for Brave, got %v", err)
	}
	if _, err := s.KeyMaterial(context.Background(), dataimport.Firefox); !IsNotFound(err) {
		t.Fatalf("Firefox keeps no safe-storage secret, got %v", err)
	}

	keyringGet = func(string, string) (string, error) {
		return "", errors.New("User canceled the operation")
	}
	if _, err := s.KeyMaterial(context.Background(), dataimport.Chrome); !errors.Is(err, ErrUserDenied) {
		t.Fatalf("expected denial, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.KeyMaterial(ctx, dataimport.Edge); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSafeStorageOverride(t *testing.T) {
	stubKeyring(t)
	keyringGet = func(string, string) (string, error) {
		t.Fatal("the keyring must not be asked when an override is set")
		return "", nil
	}
	t.Setenv(common.KeyMaterialEnv, "70656e75747321")
	s, err := NewSafeStorage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.KeyMaterial(context.Background(), dataimport.Vivaldi)
	if err != nil || string(got) != "penuts!" {
		t.Fatalf("got %q, %v", got, err)
	}

	t.Setenv(common.KeyMaterialEnv, "zz")
	if _, err := NewSafeStorage(); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}
