// Package ulid generates the time-ordered IDs used for audit entries and
// their pagination cursors.
package ulid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns an ID for the current time. IDs from one process sort in
// creation order even within the same millisecond.
func New() string {
	return NewFromTime(time.Now())
}

// NewFromTime returns an ID carrying the given timestamp.
func NewFromTime(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// IsValid reports whether s can be used as a cursor.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
