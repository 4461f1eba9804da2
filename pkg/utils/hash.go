package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString creates a SHA-256 hash of the input string
func HashString(input string) string {
	h := sha256.New()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// ContactHash identifies a registrant in logs without writing their email or
// phone number. It prefers the email, falls back to the phone, and shortens
// the digest to 12 characters.
func ContactHash(email, phone string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		key = strings.TrimSpace(phone)
	}
	if key == "" {
		return "anonymous"
	}
	return HashString(key)[:12]
}
