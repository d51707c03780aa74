// Package credential issues and rotates opaque OAuth client credential pairs.
//
// The Issuer is a pure function of its entropy source and the uniqueness set
// passed to each call. It performs no I/O and keeps no state between calls, so
// a single Issuer can be shared by concurrent request handlers.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/google/uuid"
)

const (
	// ClientIDBytes is the entropy of a client ID (128 bits).
	ClientIDBytes = 16
	// ClientSecretBytes is the entropy of a client secret (256 bits).
	ClientSecretBytes = 32

	// ClientIDLength is the rendered length of a client ID (hex).
	ClientIDLength = ClientIDBytes * 2
	// ClientSecretLength is the rendered length of a client secret (unpadded base64url).
	ClientSecretLength = 43

	// DefaultMaxAttempts bounds client ID collision retries.
	DefaultMaxAttempts = 5
)

// Pair is a client identifier and its secret.
type Pair struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Directive tells the store boundary how to apply a rotation.
type Directive string

// ReplaceUnconditionally means the stored pair must be swapped for the new one
// in a single atomic write. Old and new pairs are never both valid.
const ReplaceUnconditionally Directive = "replace_unconditionally"

// Rotation is the result of regenerating credentials for an application.
type Rotation struct {
	ApplicationID uuid.UUID
	Pair          Pair
	Directive     Directive
}

// ClientIDSet reports whether a client ID is already taken.
type ClientIDSet interface {
	Contains(clientID string) bool
}

// ClientIDs is an in-memory ClientIDSet.
type ClientIDs map[string]struct{}

// NewClientIDs builds a set from the given IDs, ignoring empty strings.
func NewClientIDs(ids ...string) ClientIDs {
	set := make(ClientIDs, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Contains implements ClientIDSet.
func (s ClientIDs) Contains(clientID string) bool {
	_, ok := s[clientID]
	return ok
}

// Add inserts a client ID into the set.
func (s ClientIDs) Add(clientID string) {
	s[clientID] = struct{}{}
}

// Issuer generates credential pairs.
type Issuer struct {
	entropy     io.Reader
	maxAttempts int
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithEntropy overrides the entropy source. Intended for tests.
func WithEntropy(r io.Reader) Option {
	return func(i *Issuer) {
		i.entropy = r
	}
}

// WithMaxAttempts sets the collision retry bound. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(i *Issuer) {
		if n >= 1 {
			i.maxAttempts = n
		}
	}
}

// NewIssuer creates an Issuer backed by crypto/rand.
func NewIssuer(opts ...Option) *Issuer {
	i := &Issuer{
		entropy:     rand.Reader,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// MaxAttempts returns the collision retry bound.
func (i *Issuer) MaxAttempts() int {
	return i.maxAttempts
}

// Issue generates a fresh pair whose client ID is not in existing.
// A nil set is treated as empty.
func (i *Issuer) Issue(existing ClientIDSet) (Pair, error) {
	clientID, err := i.newClientID(existing)
	if err != nil {
		return Pair{}, err
	}

	secret, err := i.read(ClientSecretBytes)
	if err != nil {
		return Pair{}, &GenerationError{Err: err}
	}

	return Pair{
		ClientID:     clientID,
		ClientSecret: base64.RawURLEncoding.EncodeToString(secret),
	}, nil
}

// Regenerate issues a replacement pair for an application. The caller must
// include the application's current client ID in existing so that the new pair
// never equals the one it replaces.
func (i *Issuer) Regenerate(applicationID uuid.UUID, existing ClientIDSet) (Rotation, error) {
	pair, err := i.Issue(existing)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{
		ApplicationID: applicationID,
		Pair:          pair,
		Directive:     ReplaceUnconditionally,
	}, nil
}

func (i *Issuer) newClientID(existing ClientIDSet) (string, error) {
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		b, err := i.read(ClientIDBytes)
		if err != nil {
			return "", &GenerationError{Err: err}
		}
		id := hex.EncodeToString(b)
		if existing == nil || !existing.Contains(id) {
			return id, nil
		}
	}
	return "", &ExhaustedRetriesError{Attempts: i.maxAttempts}
}

func (i *Issuer) read(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(i.entropy, b); err != nil {
		return nil, err
	}
	return b, nil
}
