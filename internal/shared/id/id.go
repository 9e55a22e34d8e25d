// Package id generates the gateway's request identifiers.
//
// IDs are prefixed ULIDs ("req_01J..."): sortable by creation time and
// readable in logs next to the Portal's own identifiers.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an inbound API request.
type RequestID string

// CaptureID identifies a captured Portal page fixture.
type CaptureID string

const (
	RequestPrefix = "req"
	CapturePrefix = "cap"
)

const separator = "_"

// Generator hands out ULIDs from one entropy source. It is safe for
// concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator creates a generator whose IDs increase strictly within the
// same millisecond.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

var shared = NewGenerator()

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

func (g *Generator) prefixed(prefix string) string {
	return prefix + separator + g.Generate().String()
}

// NewRequestID returns a fresh "req_" ID.
func NewRequestID() RequestID {
	return RequestID(shared.prefixed(RequestPrefix))
}

// NewCaptureID returns a fresh "cap_" ID, used to name page captures.
func NewCaptureID() CaptureID {
	return CaptureID(shared.prefixed(CapturePrefix))
}

func (id RequestID) String() string { return string(id) }
func (id CaptureID) String() string { return string(id) }

// Parse parses a ULID with or without a type prefix
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndex(id, separator); i >= 0 {
		id = id[i+len(separator):]
	}
	return ulid.ParseStrict(id)
}

// IsValid reports whether id is a ULID, prefixed or not
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
