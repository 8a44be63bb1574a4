package couple

import (
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6
)

// NewCodeGenerator returns a generator of join codes such as "K7Q2ZD".
func NewCodeGenerator() (func() string, error) {
	return nanoid.CustomASCII(codeAlphabet, CodeLength)
}

// NormalizeCode upper-cases and trims user-typed codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}
