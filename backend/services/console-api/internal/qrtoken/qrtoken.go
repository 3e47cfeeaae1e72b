// Package qrtoken issues the opaque tokens encoded in booking QR codes.
package qrtoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const nonceBytes = 18

// Issue returns a fresh URL-safe token with 144 bits of entropy.
func Issue() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("qrtoken: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares tokens exactly in constant time. Surrounding whitespace counts, and an
// empty stored token never matches.
func Equal(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// PNG renders token as a QR code image of size pixels.
func PNG(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("qrtoken: empty token")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: encode png: %w", err)
	}
	return png, nil
}
