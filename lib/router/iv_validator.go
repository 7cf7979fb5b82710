package router

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultReplayWindow is how long a seen IV is remembered. It matches the
// tunnel lifetime; a replay older than that reaches an expired hop anyway.
const DefaultReplayWindow = 10 * time.Minute

// IVValidator decides whether a message with this chaining IV has been seen
// before. ReceiveIV records iv and returns false for a duplicate.
// Implementations must be safe for concurrent use.
type IVValidator interface {
	ReceiveIV(iv []byte) bool
}

// IVFilter remembers IVs for a fixed window. Entries older than the window
// are forgotten, so the filter does not grow without bound.
type IVFilter struct {
	seen *cache.Cache
}

// NewIVFilter returns a filter that remembers IVs for window.
func NewIVFilter(window time.Duration) *IVFilter {
	return &IVFilter{seen: cache.New(window, window/2)}
}

// ReceiveIV records iv. Add fails when the key is already present and not
// expired, which makes check and insert one atomic step.
func (f *IVFilter) ReceiveIV(iv []byte) bool {
	return f.seen.Add(string(iv), struct{}{}, cache.DefaultExpiration) == nil
}

// Len is the number of IVs currently remembered.
func (f *IVFilter) Len() int {
	return f.seen.ItemCount()
}

var _ IVValidator = (*IVFilter)(nil)
