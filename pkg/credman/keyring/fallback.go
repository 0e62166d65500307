package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyFileName = "vault.key"
	keyFileMode = 0600
)

// FileKeyStore keeps the vault key in a 0600 file when no OS keyring is
// available. The key is stored hex-encoded.
type FileKeyStore struct {
	configDir string
}

var (
	fileRandRead = rand.Read
	fileReadFile = os.ReadFile
	fileRemove   = os.Remove
	fileRename   = os.Rename
	fileMkdirAll = os.MkdirAll
	fileTempFile = os.CreateTemp
)

func NewFileKeyStore(configDir string) *FileKeyStore {
	return &FileKeyStore{configDir: configDir}
}

func (f *FileKeyStore) keyPath() string {
	return filepath.Join(f.configDir, keyFileName)
}

// SetKey generates a new key and replaces the key file atomically.
func (f *FileKeyStore) SetKey() ([]byte, error) {
	if err := fileMkdirAll(f.configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	key := make([]byte, KeyLength)
	if _, err := fileRandRead(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := f.writeAtomic([]byte(hex.EncodeToString(key))); err != nil {
		return nil, err
	}
	return key, nil
}

func (f *FileKeyStore) writeAtomic(data []byte) error {
	tmp, err := fileTempFile(f.configDir, ".vault.key.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, keyFileMode)
	}
	if err == nil {
		err = fileRename(tmpPath, f.keyPath())
	}
	if err != nil {
		fileRemove(tmpPath)
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// GetKey reads the key file. A missing file is reported with an error
// satisfying os.IsNotExist.
func (f *FileKeyStore) GetKey() ([]byte, error) {
	data, err := fileReadFile(f.keyPath())
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}
	if len(key) != KeyLength {
		return nil, fmt.Errorf("invalid key length: expected %d, got %d", KeyLength, len(key))
	}
	return key, nil
}

func (f *FileKeyStore) DeleteKey() error {
	return fileRemove(f.keyPath())
}
