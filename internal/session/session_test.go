package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatHours(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{4 * time.Hour, "4.00"},
		{2*time.Hour + 30*time.Minute, "2.50"},
		{15 * time.Minute, "0.25"},
		{0, "0.00"},
		{7*time.Hour + 20*time.Minute, "7.33"},
		{time.Minute, "0.02"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatHours(tc.d), "FormatHours(%s)", tc.d)
	}
}
