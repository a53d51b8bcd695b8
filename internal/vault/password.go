package vault

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet is every printable ASCII character except space. The
// generator draws each character independently with crypto/rand, so the
// output carries no modulo bias.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// GeneratePassword returns a random password of the given length drawn
// from the printable ASCII alphabet.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("vault: invalid password length %d", length)
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("vault: generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
