package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	codeCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 4
	maxCodeAttempts = 32
)

// GenerateCode returns a random room code of uppercase letters and digits.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode upper-cases and trims a user-typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
