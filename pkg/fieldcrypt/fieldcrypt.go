// Package fieldcrypt implements the deterministic field cipher applied to
// student identity fields before they reach the datastore.
//
// The scheme is AES-256-CBC with a fixed all-zero IV and a key derived from
// a configured secret via SHA-256. Determinism is a functional requirement:
// equal plaintexts must map to equal ciphertexts so the datastore can enforce
// uniqueness on the encrypted columns and the login flow can run equality
// lookups without decrypting rows. The equality leakage this implies is an
// accepted trade-off for the identity fields; do not reuse this cipher for
// fields that only need confidentiality.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
)

// Cipher encrypts and decrypts short text fields deterministically.
// It is stateless after construction and safe for concurrent use.
type Cipher struct {
	key [32]byte
}

// New derives the AES-256 key from secret. Derivation happens exactly once;
// the key lives for the process lifetime with no rotation.
func New(secret string) *Cipher {
	return &Cipher{key: sha256.Sum256([]byte(secret))}
}

// Encrypt returns the lowercase hex AES-256-CBC ciphertext of plaintext.
// Equal inputs always produce equal outputs under the same secret.
func (c *Cipher) Encrypt(plaintext string) string {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		// aes.NewCipher only fails on bad key sizes; the key is always 32 bytes.
		panic(err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))

	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(out)
}

// Decrypt inverts Encrypt. The boolean reports whether decryption succeeded:
// on malformed input or a key mismatch the original string is returned
// unchanged with ok=false, so callers can surface the raw value instead of
// failing the whole request. Callers should treat a fallback as a signal of
// key mismatch or data corruption and log it.
func (c *Cipher) Decrypt(ciphertext string) (plaintext string, ok bool) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return ciphertext, false
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return ciphertext, false
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		panic(err)
	}

	out := make([]byte, len(raw))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return ciphertext, false
	}
	return string(unpadded), true
}

// pkcs7Pad appends PKCS#7 padding so len is a multiple of blockSize. A full
// extra block is appended when the input is already aligned, keeping the
// padding unambiguous.
func pkcs7Pad(src []byte, blockSize int) []byte {
	padding := blockSize - (len(src) % blockSize)
	padded := make([]byte, len(src)+padding)
	copy(padded, src)
	for i := len(src); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(src []byte, blockSize int) ([]byte, error) {
	length := len(src)
	if length == 0 || length%blockSize != 0 {
		return nil, errBadPadding
	}
	padding := int(src[length-1])
	if padding == 0 || padding > blockSize || padding > length {
		return nil, errBadPadding
	}
	for i := length - padding; i < length; i++ {
		if src[i] != byte(padding) {
			return nil, errBadPadding
		}
	}
	return src[:length-padding], nil
}

type paddingError struct{}

func (paddingError) Error() string { return "fieldcrypt: invalid PKCS#7 padding" }

var errBadPadding = paddingError{}
