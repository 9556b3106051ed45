package records

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
)

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"45.00", 4500},
		{"60", 6000},
		{"0.5", 50},
		{"0.05", 5},
		{"123.45", 12345},
		{"1000000", 100000000},
	}
	for _, tc := range cases {
		got, err := ParseAmountCents(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseAmountCentsRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "0", "0.00", "1.234", "1.", "12,50", "1e3"} {
		_, err := ParseAmountCents(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, apperr.ErrValidation), in)
	}
}

func TestFormatCents(t *testing.T) {
	require.Equal(t, "105.00", FormatCents(10500))
	require.Equal(t, "0.05", FormatCents(5))
	require.Equal(t, "123.45", FormatCents(12345))
}
