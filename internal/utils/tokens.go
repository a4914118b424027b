package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewOpaqueToken returns nBytes of randomness hex-encoded.
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns a zero-padded decimal code of the given length,
// drawn uniformly from crypto/rand.
func NewNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("unsupported code length %d", digits)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// TokenHasher derives the at-rest form of a token: HMAC-SHA256 keyed with a
// server-side pepper. Equal inputs hash equally, so lookups by value work.
type TokenHasher struct {
	pepper []byte
}

func NewTokenHasher(pepper string) *TokenHasher {
	return &TokenHasher{pepper: []byte(pepper)}
}

func (h *TokenHasher) Hash(token string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches compares a presented token against a stored hash in constant time.
func (h *TokenHasher) Matches(storedHash, presented string) bool {
	return hmac.Equal([]byte(storedHash), []byte(h.Hash(presented)))
}
