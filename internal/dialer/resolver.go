package dialer

import (
	"context"
	"net/netip"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Resolver looks up the addresses of a host. *net.Resolver implements it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// CachingResolver remembers successful lookups for a fixed TTL and collapses
// concurrent lookups of the same name into one. Failures are never cached.
//
// Returned slices are shared between callers and must not be modified.
type CachingResolver struct {
	next  Resolver
	cache *cache.Cache
	sf    singleflight.Group
}

// NewCachingResolver wraps next, remembering non-empty answers for ttl.
// Failures are never cached.
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *CachingResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	key := network + "/" + host
	if v, ok := r.cache.Get(key); ok {
		return v.([]netip.Addr), nil
	}

	// The shared lookup outlives any single caller's cancellation, so other
	// waiters still get an answer.
	ch := r.sf.DoChan(key, func() (any, error) {
		addrs, err := r.next.LookupNetIP(context.WithoutCancel(ctx), network, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) > 0 {
			r.cache.SetDefault(key, addrs)
		}
		return addrs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]netip.Addr), nil
	}
}

// Len returns the number of cached names, including expired entries not yet
// swept.
func (r *CachingResolver) Len() int {
	return r.cache.ItemCount()
}
