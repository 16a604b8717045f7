// Package id provides centralized ID generation for the supervisor.
//
// References handed out over the IPC surface are prefixed ULIDs. A ULID is
// never reused, so a stale reference can never alias a record created later;
// lookups against the broker's map simply miss. Prefixes make the logs
// readable and prevent a reference of one kind being accepted where another
// is expected.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// AppProcRef is an opaque reference to a client-created application process.
type AppProcRef string

// SessionID identifies a client IPC session.
type SessionID string

// RequestID identifies a single request on the IPC surface.
type RequestID string

// Prefixes for type identification in logs and on the wire.
const (
	AppProcPrefix = "aproc"
	SessionPrefix = "sess"
	RequestPrefix = "req"
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

// NewGenerator creates a new ULID generator with secure entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewAppProcRef generates a new application process reference.
func (g *Generator) NewAppProcRef() AppProcRef {
	return AppProcRef(g.GenerateWithPrefix(AppProcPrefix))
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// HasPrefix reports whether the raw reference carries the given prefix.
// The broker uses it to reject obviously malformed references before the
// map lookup.
func HasPrefix(raw, prefix string) bool {
	return strings.HasPrefix(raw, prefix+"_")
}
