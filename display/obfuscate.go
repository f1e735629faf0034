package display

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strings"
)

// Obfuscate scrambles the interior of every token longer than three
// characters. The shuffle is seeded from the token itself so a name always
// renders the same way.
func Obfuscate(s string) string {
	tokens := strings.Fields(s)
	for i, token := range tokens {
		tokens[i] = scrambleToken(token)
	}
	return strings.Join(tokens, " ")
}

func scrambleToken(token string) string {
	runes := []rune(token)
	if len(runes) <= 3 {
		return token
	}

	sum := sha256.Sum256([]byte(token))
	seed := binary.BigEndian.Uint32(sum[:4])
	rng := rand.New(rand.NewPCG(uint64(seed), 0))

	interior := runes[1 : len(runes)-1]
	for i := len(interior) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		interior[i], interior[j] = interior[j], interior[i]
	}

	return string(runes)
}
