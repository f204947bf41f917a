package lobby

import (
	"crypto/rand"
	"fmt"
)

// CodeAlphabet omits I, O, 0 and 1. Its 32 symbols let every random byte map
// onto it without bias.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of a room join code.
const CodeLength = 6

// GenerateCode returns a random join code.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(buf), nil
}
