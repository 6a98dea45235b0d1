// Package crypto implements reversible encryption for tenant API secrets.
//
// Values are AES-256-CBC with PKCS7 padding, keyed by the SHA-256 hash of a
// configured master passphrase. Two wire encodings exist historically and both
// must decrypt: a legacy form with a fixed all-zero IV and no salt, and an
// OpenSSL-compatible form prefixed with "Salted__" plus an 8-byte salt where
// key and IV are derived via EVP_BytesToKey (iterated MD5). New writes always
// use the legacy form; external writers may still produce the salted form.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // required by the OpenSSL EVP_BytesToKey derivation
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/promptroute/promptroute/internal/domain"
)

const (
	keyLen = 32
	ivLen  = aes.BlockSize

	opensslSaltHeader = "Salted__"
	opensslSaltLen    = 8
)

// ErrMalformedCiphertext is returned when the input is not valid base64 or
// not a whole number of cipher blocks.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Cipher encrypts and decrypts credential secrets. It is safe for concurrent
// use; the derived key is read-only after construction.
type Cipher struct {
	key        [keyLen]byte
	passphrase []byte
}

// New derives a cipher from the master passphrase.
func New(passphrase string) *Cipher {
	return &Cipher{
		key:        sha256.Sum256([]byte(passphrase)),
		passphrase: []byte(passphrase),
	}
}

// Encrypt encrypts a secret and returns it base64-encoded in the legacy
// fixed-IV form.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	iv := make([]byte, ivLen) // fixed zero IV, kept for compatibility with stored rows
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decodes either historical encoding. The "Salted__" header selects
// the OpenSSL-derived form; anything else is treated as the legacy form.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", domain.DecryptionError(fmt.Errorf("%w: %w", ErrMalformedCiphertext, err))
	}

	var plaintext []byte
	if bytes.HasPrefix(raw, []byte(opensslSaltHeader)) {
		plaintext, err = c.decryptSalted(raw)
	} else {
		plaintext, err = c.decryptLegacy(raw)
	}
	if err != nil {
		return "", domain.DecryptionError(err)
	}

	return string(plaintext), nil
}

// decryptLegacy handles the fixed zero-IV encoding produced by Encrypt.
func (c *Cipher) decryptLegacy(raw []byte) ([]byte, error) {
	iv := make([]byte, ivLen)
	return c.decryptCBC(c.key[:], iv, raw)
}

// decryptSalted handles the OpenSSL "Salted__" encoding where key and IV are
// derived from the passphrase and the embedded salt.
func (c *Cipher) decryptSalted(raw []byte) ([]byte, error) {
	if len(raw) < len(opensslSaltHeader)+opensslSaltLen {
		return nil, fmt.Errorf("%w: truncated salt header", ErrMalformedCiphertext)
	}

	salt := raw[len(opensslSaltHeader) : len(opensslSaltHeader)+opensslSaltLen]
	body := raw[len(opensslSaltHeader)+opensslSaltLen:]

	key, iv := evpBytesToKey(c.passphrase, salt, keyLen, ivLen)
	return c.decryptCBC(key, iv, body)
}

func (c *Cipher) decryptCBC(key, iv, body []byte) ([]byte, error) {
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a block multiple", ErrMalformedCiphertext, len(body))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	return pkcs7Unpad(out, aes.BlockSize)
}

// evpBytesToKey reproduces OpenSSL's EVP_BytesToKey with MD5 and one
// iteration: digest chunks of md5(prev || password || salt) are concatenated
// until keyLen+ivLen bytes are available.
func evpBytesToKey(password, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New() //nolint:gosec // dictated by the wire format
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("invalid padding: empty input")
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding")
		}
	}

	return data[:len(data)-padLen], nil
}
