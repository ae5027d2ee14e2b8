package strutils_test

import (
	"testing"

	"github.com/Amund211/blockfinder/internal/strutils"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBlock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input          string
		expected       string
		errorSubstring string
	}{
		{input: "44-07", expected: "44-07"},
		{input: "  44-07\t", expected: "44-07"},
		{input: "x12", expected: "X12"},
		{input: "Ab-9c", expected: "AB-9C"},
		{input: "1234567890123456", expected: "1234567890123456"},
		{input: "", errorSubstring: "block is empty"},
		{input: "   ", errorSubstring: "block is empty"},
		{input: "12345678901234567", errorSubstring: "block is too long"},
		{input: "-4407", errorSubstring: "start or end with a dash"},
		{input: "4407-", errorSubstring: "start or end with a dash"},
		{input: "44 07", errorSubstring: "invalid character"},
		{input: "44/07", errorSubstring: "invalid character"},
		{input: "44-07;DROP", errorSubstring: "invalid character"},
		{input: "øø-07", errorSubstring: "invalid character"},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()

			normalized, err := strutils.NormalizeBlock(c.input)
			if c.errorSubstring != "" {
				require.ErrorContains(t, err, c.errorSubstring)
				require.False(t, strutils.BlockIsNormalized(c.input))
				return
			}

			require.NoError(t, err)
			require.Equal(t, c.expected, normalized)
			require.True(t, strutils.BlockIsNormalized(normalized))
			require.Equal(t, c.input == c.expected, strutils.BlockIsNormalized(c.input))
		})
	}
}
