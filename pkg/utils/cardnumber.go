package utils

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

const (
	cardNumberMin   int64 = 1000_0000_0000
	cardNumberRange int64 = 8999_9999_9999
)

// ErrCardNumberExhausted is returned when no unused card number was drawn
// within the allowed number of attempts.
var ErrCardNumberExhausted = errors.New("could not draw an unused card number")

// RandomSource draws a uniform number in [0, n).
type RandomSource interface {
	Int63n(n int64) int64
}

type cryptoSource struct{}

// NewCryptoSource returns a RandomSource backed by crypto/rand.
func NewCryptoSource() RandomSource {
	return cryptoSource{}
}

func (cryptoSource) Int63n(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return v.Int64()
}

// CardNumberExists reports whether a card number is already taken.
type CardNumberExists func(ctx context.Context, cardNumber string) (bool, error)

// GenerateCardNumber draws 12-digit card numbers from src until exists
// reports one as unused, giving up after maxAttempts draws.
func GenerateCardNumber(ctx context.Context, src RandomSource, exists CardNumberExists, maxAttempts int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := strconv.FormatInt(cardNumberMin+src.Int63n(cardNumberRange), 10)

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", ErrCardNumberExhausted
}
