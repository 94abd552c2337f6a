package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// AuthTokenBytes даёт ключ из 40 hex-символов.
const AuthTokenBytes = 20

func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = AuthTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
