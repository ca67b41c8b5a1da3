package solana

import (
	"crypto/rand"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

// NewReference produces a fresh payment reference: 16 cryptographically
// random bytes encoded as a base58 Solana public key. The reference is a
// correlation token only -- there is no private key behind it and it never
// holds funds. 128 bits of randomness makes collision and guessing
// practically impossible.
func NewReference() (string, error) {
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to read random bytes for reference: %w", err)
	}

	// PublicKeyFromBytes zero-pads to the 32-byte key length
	return solanago.PublicKeyFromBytes(seed).String(), nil
}
