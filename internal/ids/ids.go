package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a random identifier for entity rows. The schema declares UUID
// primary keys, so ids minted here stay interchangeable with rows created by
// the database default.
func New() string {
	return uuid.NewString()
}

// Request returns a lexicographically sortable identifier used for request
// correlation in logs and audit entries.
func Request() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
