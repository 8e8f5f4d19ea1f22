// Package postid allocates collision-resistant, sortable, human-typable post
// identifiers of the form YYMMDD-nonce.
package postid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Alphabet is the nonce vocabulary: lowercase consonant-like letters with
// vowels and easily-confused glyphs excluded. 20 symbols.
const Alphabet = "bcdfghjkmnpqrstvwxyz"

const (
	// shortNonceLen is where allocation starts; 20^2 = 400 combinations per
	// day, enough for low volume and short enough to retype.
	shortNonceLen = 2

	// longNonceLen is the escalation width after short nonces keep
	// colliding; 20^3 = 8000 combinations per day.
	longNonceLen = 3

	// shortAttempts and longAttempts bound the resampling at each width.
	// Exhausting both means the day's namespace is effectively full and the
	// allocation fails rather than looping.
	shortAttempts = 4
	longAttempts  = 8
)

// Pattern matches every identifier this package can produce.
var Pattern = regexp.MustCompile(`^[0-9]{6}-[` + Alphabet + `]{2,3}$`)

// ExistsFunc is the allocator's collision oracle: it reports whether an id is
// already taken in the index or store.
type ExistsFunc func(id string) (bool, error)

// FormatDay renders t's UTC calendar day as YYMMDD, zero-padded.
func FormatDay(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%02d%02d%02d", u.Year()%100, int(u.Month()), u.Day())
}

// RandomNonce draws n characters uniformly from Alphabet using crypto/rand.
func RandomNonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		// 256 mod 20 == 16, so plain modulo would skew the first 16
		// symbols. Resample the rare biased tail instead.
		for b >= 240 {
			var one [1]byte
			if _, err := rand.Read(one[:]); err != nil {
				return "", fmt.Errorf("read random: %w", err)
			}
			b = one[0]
		}
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}

// ErrExhausted marks an allocation that spent its retry budget at both nonce
// widths without finding a free id.
var ErrExhausted = errors.New("allocation exhausted")

// Allocate produces a unique id for now's UTC day, consulting exists before
// accepting a candidate. It retries with fresh nonces at width 2, escalates
// to width 3, and fails with an ErrExhausted-wrapped error once the bounded
// budget is spent. Nothing is reserved: the caller must write the record
// promptly, and racing writers fall under the ledger's last-writer-wins
// semantics.
func Allocate(now time.Time, exists ExistsFunc) (string, error) {
	day := FormatDay(now)
	attempts := 0

	for _, plan := range []struct{ width, tries int }{
		{shortNonceLen, shortAttempts},
		{longNonceLen, longAttempts},
	} {
		for i := 0; i < plan.tries; i++ {
			attempts++
			nonce, err := RandomNonce(plan.width)
			if err != nil {
				return "", err
			}
			id := day + "-" + nonce
			taken, err := exists(id)
			if err != nil {
				return "", fmt.Errorf("check id %s: %w", id, err)
			}
			if !taken {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("no free id for day %s after %d attempts: %w", day, attempts, ErrExhausted)
}
