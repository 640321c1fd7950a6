package dialer

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"
)

func TestCachingResolver(t *testing.T) {
	t.Parallel()

	next := &fakeResolver{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.1")}}
	r := NewCachingResolver(next, time.Minute)
	ctx := context.Background()

	for range 3 {
		addrs, err := r.LookupNetIP(ctx, "ip", "example.test")
		if err != nil {
			t.Fatal(err)
		}
		if len(addrs) != 1 || addrs[0] != next.addrs[0] {
			t.Fatalf("got %v", addrs)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("expected 1 upstream lookup, got %d", n)
	}

	// Address family is part of the key.
	if _, err := r.LookupNetIP(ctx, "ip6", "example.test"); err != nil {
		t.Fatal(err)
	}
	if n := next.calls.Load(); n != 2 {
		t.Fatalf("expected 2 upstream lookups, got %d", n)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 cached names, got %d", r.Len())
	}
}

func TestCachingResolverDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	next := &fakeResolver{err: &net.DNSError{Err: "no such host", Name: "nx.test", IsNotFound: true}}
	r := NewCachingResolver(next, time.Minute)

	for range 2 {
		_, err := r.LookupNetIP(context.Background(), "ip", "nx.test")
		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
			t.Fatalf("got %v", err)
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Fatalf("expected 2 upstream lookups, got %d", n)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", r.Len())
	}
}

type blockingResolver struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (r *blockingResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	<-r.release
	return []netip.Addr{netip.MustParseAddr("192.0.2.2")}, nil
}

func TestCachingResolverCollapsesConcurrentLookups(t *testing.T) {
	t.Parallel()

	next := &blockingResolver{release: make(chan struct{})}
	r := NewCachingResolver(next, time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.LookupNetIP(context.Background(), "ip", "slow.test")
			errs <- err
		}()
	}

	// Give the lookups time to pile up behind the first one.
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	next.mu.Lock()
	defer next.mu.Unlock()
	if next.calls > 2 {
		t.Fatalf("expected concurrent lookups to share a call, got %d calls", next.calls)
	}
}

func TestCachingResolverCallerCancel(t *testing.T) {
	t.Parallel()

	next := &blockingResolver{release: make(chan struct{})}
	defer close(next.release)
	r := NewCachingResolver(next, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.LookupNetIP(ctx, "ip", "slow.test"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
