package shared

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const tokenCost = bcrypt.DefaultCost

// NewConfirmationToken generates a random confirmation token and its bcrypt hash.
// Only the hash is stored; the plain token travels in the event that mails it.
func NewConfirmationToken() (token string, hash string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(token), tokenCost)
	if err != nil {
		return "", "", err
	}
	return token, string(h), nil
}

// VerifyConfirmationToken reports whether token matches the stored hash
func VerifyConfirmationToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
