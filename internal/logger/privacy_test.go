package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize hash salt for all tests in this package.
	InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashIdentity(t *testing.T) {
	t.Run("produces consistent hash for same identity", func(t *testing.T) {
		require.Equal(t, HashIdentity("uid-12345"), HashIdentity("uid-12345"))
	})

	t.Run("produces different hashes for different identities", func(t *testing.T) {
		require.NotEqual(t, HashIdentity("uid-12345"), HashIdentity("uid-67890"))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashIdentity("uid-12345"), 8)
	})

	t.Run("labels the guest identity", func(t *testing.T) {
		require.Equal(t, "guest", HashIdentity(""))
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashIdentity("uid-12345")

		hashSalt = "different-salt"
		hash2 := HashIdentity("uid-12345")

		require.NotEqual(t, hash1, hash2)
	})
}

func TestRedactEmail(t *testing.T) {
	t.Run("keeps the domain only", func(t *testing.T) {
		require.Equal(t, "***@example.com", RedactEmail("alice@example.com"))
	})

	t.Run("redacts values without a domain", func(t *testing.T) {
		require.Equal(t, "<redacted>", RedactEmail("alice"))
	})
}

func TestSanitizeDescription(t *testing.T) {
	t.Run("redacts empty description", func(t *testing.T) {
		require.Equal(t, "<empty>", SanitizeDescription(""))
	})

	t.Run("shows word and character count", func(t *testing.T) {
		result := SanitizeDescription("lunch at hawker center")
		require.Contains(t, result, "4 words")
		require.Contains(t, result, "22 chars")
	})

	t.Run("preserves length information for debugging", func(t *testing.T) {
		desc := "expensive dinner with clients"
		result := SanitizeDescription(desc)
		require.Contains(t, result, "4 words")
		require.Contains(t, result, "29 chars")
		require.NotContains(t, result, "dinner")
		require.NotContains(t, result, "clients")
	})
}

func TestSanitizeText(t *testing.T) {
	t.Run("redacts empty text", func(t *testing.T) {
		require.Equal(t, "<empty>", SanitizeText(""))
	})

	t.Run("shows length for short text", func(t *testing.T) {
		require.Equal(t, "<5 chars>", SanitizeText("short"))
	})

	t.Run("shows prefix for longer text", func(t *testing.T) {
		result := SanitizeText("this is a long text")
		require.Contains(t, result, "thi...")
		require.Contains(t, result, "19 chars")
	})
}

func TestInitHashSalt(t *testing.T) {
	t.Run("generates a random salt when LOG_HASH_SALT is missing", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		t.Setenv("LOG_HASH_SALT", "")

		require.NoError(t, InitHashSalt())
		first := hashSalt
		require.Len(t, first, 2*MinHashSaltLength)

		require.NoError(t, InitHashSalt())
		require.NotEqual(t, first, hashSalt)
	})

	t.Run("fails when LOG_HASH_SALT is too short", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		t.Setenv("LOG_HASH_SALT", "short")

		require.Error(t, InitHashSalt())
	})

	t.Run("succeeds with valid LOG_HASH_SALT", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		validSalt := "this-is-a-valid-salt-with-at-least-32-characters"
		t.Setenv("LOG_HASH_SALT", validSalt)

		require.NoError(t, InitHashSalt())
		require.Equal(t, validSalt, hashSalt)
	})
}
