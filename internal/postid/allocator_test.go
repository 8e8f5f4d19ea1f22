package postid

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatDay(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{"formats YYMMDD in UTC", time.Date(2026, 1, 8, 15, 30, 0, 0, time.UTC), "260108"},
		{"zero-pads single digits", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), "260305"},
		{"handles year wrap", time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC), "991231"},
		{"first day of year", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "260101"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatDay(tc.in))
		})
	}
}

func TestFormatDayConvertsToUTC(t *testing.T) {
	// 23:30 on Jan 8 in UTC+5 is still Jan 8 UTC-wise at 18:30, but 01:30
	// UTC+5 on Jan 9 is Jan 8 in UTC.
	loc := time.FixedZone("east", 5*3600)
	require.Equal(t, "260108", FormatDay(time.Date(2026, 1, 9, 1, 30, 0, 0, loc)))
}

func TestRandomNonceLength(t *testing.T) {
	for _, n := range []int{2, 3} {
		nonce, err := RandomNonce(n)
		require.NoError(t, err)
		require.Len(t, nonce, n)
	}
}

func TestRandomNonceAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		nonce, err := RandomNonce(3)
		require.NoError(t, err)
		for _, c := range nonce {
			require.Contains(t, Alphabet, string(c), "nonce %q contains %q", nonce, c)
		}
		require.Equal(t, strings.ToLower(nonce), nonce)
	}
}

func TestRandomNonceUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		nonce, err := RandomNonce(3)
		require.NoError(t, err)
		seen[nonce] = struct{}{}
	}
	// 8000 combinations over 100 draws: expect high uniqueness.
	require.Greater(t, len(seen), 95)
}

func TestPattern(t *testing.T) {
	for _, id := range []string{"260108-bc", "260108-xyz", "260108-bcf"} {
		require.True(t, Pattern.MatchString(id), id)
	}
	for _, id := range []string{
		"260108-a",    // 'a' not in alphabet
		"260108-bcfg", // too long
		"260108-b",    // too short
		"26010-bc",    // date too short
		"260108-BC",   // uppercase
		"260108-12",   // numbers
	} {
		require.False(t, Pattern.MatchString(id), id)
	}
}

func TestAllocate(t *testing.T) {
	now := time.Date(2026, 1, 8, 15, 30, 0, 0, time.UTC)

	t.Run("produces well-formed ids", func(t *testing.T) {
		id, err := Allocate(now, func(string) (bool, error) { return false, nil })
		require.NoError(t, err)
		require.True(t, Pattern.MatchString(id), id)
		require.True(t, strings.HasPrefix(id, "260108-"))
	})

	t.Run("never returns a taken id", func(t *testing.T) {
		taken := make(map[string]struct{})
		for i := 0; i < 50; i++ {
			id, err := Allocate(now, func(candidate string) (bool, error) {
				_, ok := taken[candidate]
				return ok, nil
			})
			require.NoError(t, err)
			_, dup := taken[id]
			require.False(t, dup, "allocated taken id %s", id)
			taken[id] = struct{}{}
		}
	})

	t.Run("escalates nonce width after short collisions", func(t *testing.T) {
		id, err := Allocate(now, func(candidate string) (bool, error) {
			// Every width-2 nonce is taken for this day.
			return len(candidate) == len("260108-")+shortNonceLen, nil
		})
		require.NoError(t, err)
		require.Len(t, id, len("260108-")+longNonceLen)
	})

	t.Run("fails with ErrExhausted when nothing is free", func(t *testing.T) {
		calls := 0
		_, err := Allocate(now, func(string) (bool, error) {
			calls++
			return true, nil
		})
		require.ErrorIs(t, err, ErrExhausted)
		require.Equal(t, shortAttempts+longAttempts, calls)
	})

	t.Run("propagates oracle errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Allocate(now, func(string) (bool, error) { return false, boom })
		require.ErrorIs(t, err, boom)
	})
}
