package listview

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry hands out one controller per session. Controllers nobody has
// touched for the idle TTL are evicted.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	fetcher Fetcher
	opts    Options
}

func NewRegistry(fetcher Fetcher, opts Options, idleTTL time.Duration) *Registry {
	return &Registry{
		cache:   cache.New(idleTTL, idleTTL/2+time.Second),
		fetcher: fetcher,
		opts:    opts,
	}
}

// For returns the controller of sessionID, creating it on first use.
func (r *Registry) For(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(sessionID); ok {
		ctrl := v.(*Controller)
		r.cache.SetDefault(sessionID, ctrl)
		return ctrl
	}
	ctrl := NewController(r.fetcher, r.opts)
	r.cache.SetDefault(sessionID, ctrl)
	return ctrl
}

// Drop forgets the controller of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Peek returns the controller of sessionID without creating one.
func (r *Registry) Peek(sessionID string) (*Controller, bool) {
	v, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Controller), true
}
