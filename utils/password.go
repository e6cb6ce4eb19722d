package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	hashPrefix   = "sha256:"
	passwordSalt = ":checkin-v9"
)

// HashPassword produces the stored form of a password.
func HashPassword(plain string) string {
	sum := sha256.Sum256([]byte(plain + passwordSalt))
	return hashPrefix + hex.EncodeToString(sum[:])
}

// CheckPassword verifies a candidate against a stored credential.
// Stored values without the hash prefix are legacy plaintext and are
// compared directly.
func CheckPassword(stored, candidate string) bool {
	if strings.HasPrefix(stored, hashPrefix) {
		return stored == HashPassword(candidate)
	}
	return stored == candidate
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenID returns a 6-character random identifier.
func GenID() string {
	return randomString(6, idAlphabet)
}

// RandomPassword returns an 8-character temporary password.
func RandomPassword() string {
	return randomString(8, idAlphabet)
}

func randomString(n int, alphabet string) string {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken.
			panic(err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String()
}

// AvatarInitials derives up to two uppercase initials from a name.
func AvatarInitials(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	initials := strings.ToUpper(parts[0][:1])
	if len(parts) > 1 {
		initials += strings.ToUpper(parts[len(parts)-1][:1])
	}
	return initials
}
