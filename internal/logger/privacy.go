package logger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// MinHashSaltLength is the minimum accepted LOG_HASH_SALT length.
const MinHashSaltLength = 32

var hashSalt string

// InitHashSalt loads the salt used for identity hashes from LOG_HASH_SALT.
// Without it a random per-process salt is used, so hashes only correlate within one run.
func InitHashSalt() error {
	salt := os.Getenv("LOG_HASH_SALT")
	if salt == "" {
		buf := make([]byte, MinHashSaltLength)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate hash salt: %w", err)
		}
		hashSalt = hex.EncodeToString(buf)
		return nil
	}
	if len(salt) < MinHashSaltLength {
		return fmt.Errorf("LOG_HASH_SALT must be at least %d characters", MinHashSaltLength)
	}
	hashSalt = salt
	return nil
}

// InitHashSaltForTesting sets the salt directly.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashIdentity creates a privacy-preserving hash of an identity id.
// This allows tracking actions without exposing provider-issued ids.
func HashIdentity(uid string) string {
	if uid == "" {
		return "guest"
	}
	data := uid + ":" + hashSalt
	hash := sha256.Sum256([]byte(data))
	// First 8 characters for readability.
	return hex.EncodeToString(hash[:])[:8]
}

// RedactEmail keeps only the domain of an email address.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "<redacted>"
	}
	return "***" + email[at:]
}

// SanitizeDescription removes or truncates sensitive information from descriptions.
// This redacts the description but preserves length information for debugging.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}

	words := strings.Fields(desc)
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(words), len(desc))
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
