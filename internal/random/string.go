package random

import (
	"crypto/rand"
	"math/big"
)

var (
	// CharsetAlphanumeric contains characters a-zA-Z0-9
	CharsetAlphanumeric = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	// CharsetTokens contains all alphanumeric characters plus '-._~' which keeps tokens cookie and URL safe
	CharsetTokens = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~")
)

// String generates a cryptographically secure random string with a specific length, only using characters out of the
// given charset
func String(length int, charset []rune) (string, error) {
	max := big.NewInt(int64(len(charset)))
	buf := make([]rune, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = charset[n.Int64()]
	}
	return string(buf), nil
}

// MustString works like String but panics if the system's secure random source fails
func MustString(length int, charset []rune) string {
	str, err := String(length, charset)
	if err != nil {
		panic(err)
	}
	return str
}
