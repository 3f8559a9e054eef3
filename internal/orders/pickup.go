package orders

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

var (
	pickupReader io.Reader = rand.Reader
	pickupGroup            = big.NewInt(10000)

	// PickupCodePattern matches every issued pickup code.
	PickupCodePattern = regexp.MustCompile(`^\d{4}-\d{4}$`)
)

// generatePickupCode draws two independent 4-digit groups from a CSPRNG.
// Codes are confirmation tokens and may collide across orders.
func generatePickupCode() (string, error) {
	first, err := rand.Int(pickupReader, pickupGroup)
	if err != nil {
		return "", fmt.Errorf("draw pickup code: %w", err)
	}
	second, err := rand.Int(pickupReader, pickupGroup)
	if err != nil {
		return "", fmt.Errorf("draw pickup code: %w", err)
	}
	return fmt.Sprintf("%04d-%04d", first.Int64(), second.Int64()), nil
}
