// Package id provides centralized ID generation for the host process.
//
// All host-generated identifiers are prefixed ULIDs: lexicographically
// sortable, unique without coordination, and readable in logs (tab_*,
// strm_*, conn_*). Caller-supplied identifiers (idempotency keys from the
// UI process, stream ids per logical agent turn) are accepted verbatim and
// never rewritten.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TabID identifies a browsing context.
type TabID string

// StreamID identifies a relayed event-stream session.
type StreamID string

// ConnID identifies a UI bridge connection.
type ConnID string

const (
	TabPrefix    = "tab"
	StreamPrefix = "strm"
	ConnPrefix   = "conn"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with secure monotonic
// entropy, so ids minted by one generator sort in creation order even
// within a single millisecond.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewTabID generates a new tab ID.
func NewTabID() TabID {
	return TabID(Default().GenerateWithPrefix(TabPrefix))
}

// NewStreamID generates a new stream session ID.
func NewStreamID() StreamID {
	return StreamID(Default().GenerateWithPrefix(StreamPrefix))
}

// NewConnID generates a new bridge connection ID.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id TabID) String() string    { return string(id) }
func (id StreamID) String() string { return string(id) }
func (id ConnID) String() string   { return string(id) }
