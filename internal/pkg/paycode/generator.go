package paycode

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
)

// DefaultMaxAttempts bounds the collision-retry loop. The keyspace is
// bounded (codes live only minutes), so a handful of probes is enough.
const DefaultMaxAttempts = 10

// Generator produces fixed-length numeric payment codes embedding the
// appointment id, collision-checked against the live code store. Codes are
// values exposed in transfer descriptions, not secrets, so uniform
// pseudo-random suffixes are sufficient.
type Generator struct {
	store       Store
	maxAttempts int
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store, maxAttempts: DefaultMaxAttempts}
}

// Generate returns a CodeLength-digit code whose prefix is the decimal
// appointment id and whose suffix is a uniformly drawn random number
// zero-padded to fill the remaining digits.
func (g *Generator) Generate(ctx context.Context, appointmentID uint) (string, error) {
	prefix := strconv.FormatUint(uint64(appointmentID), 10)
	randomDigits := CodeLength - len(prefix)
	if randomDigits < 1 {
		return "", fmt.Errorf("%w: appointment %d", ErrCodeTooLong, appointmentID)
	}

	// Uniform over [10^(n-1), 10^n - 1].
	low := pow10(randomDigits - 1)
	high := pow10(randomDigits) - 1

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		suffix := low + rand.Int63n(high-low+1)
		code := prefix + fmt.Sprintf("%0*d", randomDigits, suffix)

		exists, err := g.store.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: after %d attempts", ErrGenerationExhausted, g.maxAttempts)
}

func pow10(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
