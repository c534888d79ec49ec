package utils

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDays(t *testing.T) {
	loanDate := time.Date(2026, 10, 19, 15, 42, 0, 0, time.UTC)

	due := AddDays(loanDate, 7)

	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), due)
}

func TestSameDay(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)

	tests := []struct {
		name     string
		a        time.Time
		b        time.Time
		expected bool
	}{
		{
			name:     "same instant",
			a:        time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
			b:        time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
			expected: true,
		},
		{
			name:     "date column against local time",
			a:        time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			b:        time.Date(2026, 10, 19, 23, 30, 0, 0, almaty),
			expected: true,
		},
		{
			name:     "one day early",
			a:        time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			b:        time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
			expected: false,
		},
		{
			name:     "one day late",
			a:        time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
			b:        time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SameDay(tt.a, tt.b))
		})
	}
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "j***@gmail.com", MaskEmail("john@gmail.com"))
	assert.Equal(t, "+7*******3344", MaskPhone("+77711223344"))
	assert.Equal(t, "***", MaskPhone("+77"))
	assert.Equal(t, "John Watson", FullName("John", "Watson"))
}

func TestMasking_NonASCII(t *testing.T) {
	email := MaskEmail("Ärlan@пошта.kz")
	assert.True(t, utf8.ValidString(email))
	assert.Equal(t, "Ä****@пошта.kz", email)
	assert.Equal(t, "****", MaskEmail("Äsel"))

	phone := MaskPhone("+7 (701) ёё1-2345")
	assert.True(t, utf8.ValidString(phone))
	assert.Equal(t, "+7***********2345", phone)
	assert.Equal(t, "******", MaskPhone("ёёёёёё"))
}

type sequenceSource struct {
	values []int64
	calls  int
}

func (s *sequenceSource) Int63n(n int64) int64 {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v % n
}

func TestGenerateCardNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("redraws until unused", func(t *testing.T) {
		src := &sequenceSource{values: []int64{1, 2, 3}}
		taken := map[string]bool{"100000000001": true, "100000000002": true}

		card, err := GenerateCardNumber(ctx, src, func(_ context.Context, c string) (bool, error) {
			return taken[c], nil
		}, 5)

		require.NoError(t, err)
		assert.Equal(t, "100000000003", card)
		assert.Equal(t, 3, src.calls)
	})

	t.Run("always twelve digits", func(t *testing.T) {
		src := &sequenceSource{values: []int64{0, cardNumberRange - 1}}
		free := func(context.Context, string) (bool, error) { return false, nil }

		low, err := GenerateCardNumber(ctx, src, free, 1)
		require.NoError(t, err)
		high, err := GenerateCardNumber(ctx, src, free, 1)
		require.NoError(t, err)

		assert.Len(t, low, 12)
		assert.Len(t, high, 12)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		src := &sequenceSource{values: []int64{7}}

		_, err := GenerateCardNumber(ctx, src, func(context.Context, string) (bool, error) {
			return true, nil
		}, 3)

		assert.ErrorIs(t, err, ErrCardNumberExhausted)
		assert.Equal(t, 3, src.calls)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		boom := errors.New("db down")

		_, err := GenerateCardNumber(ctx, &sequenceSource{values: []int64{1}}, func(context.Context, string) (bool, error) {
			return false, boom
		}, 3)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("crypto source stays in range", func(t *testing.T) {
		src := NewCryptoSource()
		for i := 0; i < 100; i++ {
			v := src.Int63n(10)
			assert.GreaterOrEqual(t, v, int64(0))
			assert.Less(t, v, int64(10))
		}
	})
}
