package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

var (
	ErrInvalidKey     = errors.New("encryption key must be 32 bytes of hex")
	ErrInvalidPayload = errors.New("invalid encrypted payload")
)

// SecretBox encrypts and decrypts sender app passwords with AES-256-CBC.
// Ciphertext and IV are stored hex encoded; the key comes from config and is
// opaque to everything outside this package.
type SecretBox struct {
	key []byte
}

func NewSecretBox(hexKey string) (*SecretBox, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return &SecretBox{key: key}, nil
}

// Encrypt returns the hex-encoded ciphertext and the hex-encoded IV used.
func (b *SecretBox) Encrypt(plaintext string) (string, string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", "", errors.Wrap(err, "cipher init")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", "", errors.Wrap(err, "iv generation")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(ciphertext), hex.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt given the stored ciphertext and IV.
func (b *SecretBox) Decrypt(cipherHex, ivHex string) (string, error) {
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", ErrInvalidPayload
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrInvalidPayload
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrInvalidPayload
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", errors.Wrap(err, "cipher init")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPayload
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, ErrInvalidPayload
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidPayload
		}
	}
	return data[:len(data)-padding], nil
}
