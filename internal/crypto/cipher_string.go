package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// EncryptionType is the numeric prefix of a cipher string.
type EncryptionType int

const (
	AesCbc256B64           EncryptionType = 0
	AesCbc256HmacSha256B64 EncryptionType = 2
)

// CipherString is a parsed "type.iv|data|mac" value.
type CipherString struct {
	Type EncryptionType
	IV   []byte
	Data []byte
	Mac  []byte
}

// ParseCipherString parses s. Base64 parts may use the standard or URL-safe
// alphabet, with or without padding.
func ParseCipherString(s string) (CipherString, error) {
	s = strings.TrimSpace(s)
	head, body, ok := strings.Cut(s, ".")
	if !ok {
		return CipherString{}, fmt.Errorf("%w: missing type prefix", ErrInvalidCipherString)
	}

	n, err := strconv.Atoi(head)
	if err != nil {
		return CipherString{}, fmt.Errorf("%w: bad type prefix %q", ErrInvalidCipherString, head)
	}

	parts := strings.Split(body, "|")
	cs := CipherString{Type: EncryptionType(n)}

	switch cs.Type {
	case AesCbc256B64:
		if len(parts) != 2 {
			return CipherString{}, fmt.Errorf("%w: expected 2 parts, got %d", ErrInvalidCipherString, len(parts))
		}
	case AesCbc256HmacSha256B64:
		if len(parts) != 3 {
			return CipherString{}, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidCipherString, len(parts))
		}
	default:
		return CipherString{}, fmt.Errorf("%w: type %d", ErrUnsupportedEncryption, n)
	}

	if cs.IV, err = decodeB64(parts[0]); err != nil {
		return CipherString{}, fmt.Errorf("%w: iv: %v", ErrInvalidCipherString, err)
	}
	if cs.Data, err = decodeB64(parts[1]); err != nil {
		return CipherString{}, fmt.Errorf("%w: data: %v", ErrInvalidCipherString, err)
	}
	if cs.Type == AesCbc256HmacSha256B64 {
		if cs.Mac, err = decodeB64(parts[2]); err != nil {
			return CipherString{}, fmt.Errorf("%w: mac: %v", ErrInvalidCipherString, err)
		}
	}

	if len(cs.IV) != aes.BlockSize {
		return CipherString{}, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidCipherString, aes.BlockSize)
	}
	if len(cs.Data) == 0 || len(cs.Data)%aes.BlockSize != 0 {
		return CipherString{}, fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrInvalidCipherString)
	}

	return cs, nil
}

// String encodes cs back into its wire form.
func (cs CipherString) String() string {
	enc := base64.StdEncoding
	out := strconv.Itoa(int(cs.Type)) + "." + enc.EncodeToString(cs.IV) + "|" + enc.EncodeToString(cs.Data)
	if cs.Type == AesCbc256HmacSha256B64 {
		out += "|" + enc.EncodeToString(cs.Mac)
	}
	return out
}

// Encrypt seals plain with AES-256-CBC and, when key has a MAC half,
// authenticates iv||data with HMAC-SHA256.
func Encrypt(plain []byte, key *SymmetricCryptoKey) (CipherString, error) {
	var cs CipherString
	err := key.withKeys(func(encKey, macKey []byte) error {
		iv := make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return fmt.Errorf("generate iv: %w", err)
		}

		block, err := aes.NewCipher(encKey)
		if err != nil {
			return fmt.Errorf("create cipher: %w", err)
		}

		padded := pkcs7Pad(plain, aes.BlockSize)
		data := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, padded)
		Wipe(padded)

		cs = CipherString{Type: AesCbc256B64, IV: iv, Data: data}
		if len(macKey) > 0 {
			cs.Type = AesCbc256HmacSha256B64
			cs.Mac = computeMac(macKey, iv, data)
		}
		return nil
	})
	return cs, err
}

// Decrypt verifies the MAC before touching the ciphertext and fails closed:
// on any error no plaintext is returned.
func Decrypt(cs CipherString, key *SymmetricCryptoKey) ([]byte, error) {
	var plain []byte
	err := key.withKeys(func(encKey, macKey []byte) error {
		switch cs.Type {
		case AesCbc256HmacSha256B64:
			if len(macKey) == 0 {
				return fmt.Errorf("%w: key has no mac half", ErrMacMismatch)
			}
			if !hmac.Equal(cs.Mac, computeMac(macKey, cs.IV, cs.Data)) {
				return ErrMacMismatch
			}
		case AesCbc256B64:
			if len(macKey) != 0 {
				return fmt.Errorf("%w: unauthenticated cipher string for a mac key", ErrMacMismatch)
			}
		default:
			return ErrUnsupportedEncryption
		}

		block, err := aes.NewCipher(encKey)
		if err != nil {
			return fmt.Errorf("create cipher: %w", err)
		}
		if len(cs.IV) != aes.BlockSize || len(cs.Data) == 0 || len(cs.Data)%aes.BlockSize != 0 {
			return ErrInvalidCipherString
		}

		out := make([]byte, len(cs.Data))
		cipher.NewCBCDecrypter(block, cs.IV).CryptBlocks(out, cs.Data)

		unpadded, err := pkcs7Unpad(out, aes.BlockSize)
		if err != nil {
			Wipe(out)
			return err
		}
		plain = unpadded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// EncryptToString is Encrypt followed by String.
func EncryptToString(plain []byte, key *SymmetricCryptoKey) (string, error) {
	cs, err := Encrypt(plain, key)
	if err != nil {
		return "", err
	}
	return cs.String(), nil
}

// DecryptString parses and decrypts s.
func DecryptString(s string, key *SymmetricCryptoKey) ([]byte, error) {
	cs, err := ParseCipherString(s)
	if err != nil {
		return nil, err
	}
	return Decrypt(cs, key)
}

// DecryptUserKey opens the protected symmetric key returned by the identity
// server with the stretched master key.
func DecryptUserKey(protected string, stretched *SymmetricCryptoKey) (*SymmetricCryptoKey, error) {
	raw, err := DecryptString(protected, stretched)
	if err != nil {
		return nil, fmt.Errorf("decrypt user key: %w", err)
	}
	return SymmetricKeyFromBytes(raw)
}

func computeMac(macKey, iv, data []byte) []byte {
	m := hmac.New(sha256.New, macKey)
	m.Write(iv)
	m.Write(data)
	return m.Sum(nil)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrDecrypt
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrDecrypt
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrDecrypt
		}
	}
	return b[:len(b)-n], nil
}

func decodeB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	s = strings.TrimRight(s, "=")
	return base64.RawStdEncoding.DecodeString(s)
}
