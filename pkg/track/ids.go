package track

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
)

// trackIDAllocator hands out monotonically increasing base-36 track ids,
// never reusing one even after its track is evicted. Grounded on
// pkg/idgen.Uint32's atomic monotonic counter.
type trackIDAllocator struct {
	next atomic.Uint64
}

// Next returns the next id, starting at 1.
func (a *trackIDAllocator) Next() string {
	n := a.next.Add(1)
	return strconv.FormatUint(n, 36)
}

// newSessionID returns a random 16-bit hex session id. Grounded on
// server/configdb/rand.go's crypto/rand-backed random helpers.
func newSessionID() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("objtrack: unable to read from crypto/rand: %v", err))
	}
	return hex.EncodeToString(buf)
}
