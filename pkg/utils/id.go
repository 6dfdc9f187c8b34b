package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var keySeq uint64

// GenID returns a collision-resistant opaque record id. Submission and prompt
// ids must stay unique across process restarts, so this does not reuse the
// timestamp+sequence scheme used for ordering keys.
func GenID() string {
	return uuid.New().String()
}

// OrderKey returns a sortable key segment for the given timestamp. Keys built
// from it iterate in insertion order; the sequence suffix disambiguates
// records created within the same nanosecond.
func OrderKey(ts time.Time) string {
	s := atomic.AddUint64(&keySeq, 1)
	return fmt.Sprintf("%020d-%06d", ts.UTC().UnixNano(), s)
}
