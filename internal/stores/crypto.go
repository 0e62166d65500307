package stores

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/warpdl/warpimport/internal/der"
	"golang.org/x/crypto/pbkdf2"
)

var (
	// errBadPadding means CBC plaintext did not end in valid PKCS#7
	// padding, which in practice means the key was wrong.
	errBadPadding = errors.New("bad padding")
	// errUnsupportedCipher is returned for algorithm OIDs no reader knows.
	errUnsupportedCipher = errors.New("unsupported cipher")
)

// Object identifiers used by NSS.
const (
	oidPBES2           = "1.2.840.113549.1.5.13"
	oidPBKDF2          = "1.2.840.113549.1.5.12"
	oidPBEWithSHA13DES = "1.2.840.113549.1.12.5.1.3"
	oidDESEDE3CBC      = "1.2.840.113549.3.7"
	oidAES256CBC       = "2.16.840.1.101.3.4.1.42"
)

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// cbcDecrypt decrypts ciphertext with the given block cipher and strips
// PKCS#7 padding.
func cbcDecrypt(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(ciphertext), bs)
	}
	if len(iv) != bs {
		return nil, fmt.Errorf("iv length %d, want %d", len(iv), bs)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, bs)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}

func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, iv, ciphertext)
}

func des3CBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) < 24 {
		return nil, fmt.Errorf("3DES key length %d", len(key))
	}
	block, err := des.NewTripleDESCipher(key[:24])
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, iv, ciphertext)
}

func hmacSHA1(key, data []byte) []byte {
	m := hmac.New(sha1.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// nss3DESKey derives the DES-EDE3 key and IV NSS uses for its
// pbeWithSha1AndTripleDES-CBC scheme.
func nss3DESKey(globalSalt, password, entrySalt []byte) (key, iv []byte) {
	hp := sha1.Sum(concat(globalSalt, password))
	chp := sha1.Sum(concat(hp[:], entrySalt))
	pes := make([]byte, 20)
	copy(pes, entrySalt)
	k1 := hmacSHA1(chp[:], concat(pes, entrySalt))
	tk := hmacSHA1(chp[:], pes)
	k2 := hmacSHA1(chp[:], concat(tk, entrySalt))
	k := concat(k1, k2)
	return k[:24], k[len(k)-8:]
}

// decryptNSSPBE decrypts an NSS password-based-encryption blob: either a
// PBES2 structure (PBKDF2-SHA256 + AES-256-CBC) or the legacy
// pbeWithSha1AndTripleDES-CBC structure.
//
// Structural problems are returned as *der.FormatError or
// errUnsupportedCipher; a wrong password surfaces as errBadPadding.
func decryptNSSPBE(blob, globalSalt, password []byte) ([]byte, error) {
	root, _, err := der.New(blob).Sequence()
	if err != nil {
		return nil, err
	}
	oidEl, err := der.Path(root, 0, 0)
	if err != nil {
		return nil, err
	}
	oid, _, err := oidEl.OID()
	if err != nil {
		return nil, err
	}
	ctEl, err := der.Path(root, 1)
	if err != nil {
		return nil, err
	}
	ciphertext, _, err := ctEl.OctetString()
	if err != nil {
		return nil, err
	}

	switch oid {
	case oidPBES2:
		kdfEl, err := der.Path(root, 0, 1, 0, 0)
		if err != nil {
			return nil, err
		}
		if kdf, _, err := kdfEl.OID(); err != nil {
			return nil, err
		} else if kdf != oidPBKDF2 {
			return nil, fmt.Errorf("%w: key derivation %s", errUnsupportedCipher, kdf)
		}
		saltEl, err := der.Path(root, 0, 1, 0, 1, 0)
		if err != nil {
			return nil, err
		}
		entrySalt, rest, err := saltEl.OctetString()
		if err != nil {
			return nil, err
		}
		iterations, rest, err := rest.Int()
		if err != nil {
			return nil, err
		}
		keyLen, _, err := rest.Int()
		if err != nil {
			return nil, err
		}
		if iterations < 1 || keyLen != 32 {
			return nil, fmt.Errorf("%w: pbkdf2 iterations=%d keyLen=%d", errUnsupportedCipher, iterations, keyLen)
		}
		ivEl, err := der.Path(root, 0, 1, 1, 1)
		if err != nil {
			return nil, err
		}
		iv, _, err := ivEl.OctetString()
		if err != nil {
			return nil, err
		}
		hp := sha1.Sum(concat(globalSalt, password))
		key := pbkdf2.Key(hp[:], entrySalt, iterations, keyLen, sha256.New)
		if len(iv) == 14 {
			// NSS keeps the octet string header of the short IV.
			iv = concat([]byte{0x04, 0x0e}, iv)
		}
		return aesCBCDecrypt(key, iv, ciphertext)
	case oidPBEWithSHA13DES:
		saltEl, err := der.Path(root, 0, 1, 0)
		if err != nil {
			return nil, err
		}
		entrySalt, _, err := saltEl.OctetString()
		if err != nil {
			return nil, err
		}
		key, iv := nss3DESKey(globalSalt, password, entrySalt)
		return des3CBCDecrypt(key, iv, ciphertext)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedCipher, oid)
	}
}
