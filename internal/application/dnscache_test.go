package application

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	answers map[string][]net.IP
	err     error
	calls   map[string]int
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		answers: make(map[string][]net.IP),
		calls:   make(map[string]int),
	}
}

func (r *stubResolver) Lookup(host string) ([]net.IP, error) {
	r.calls[host]++
	if r.err != nil {
		return nil, r.err
	}
	return r.answers[host], nil
}

func TestQueryCachesSuccess(t *testing.T) {
	stub := newStubResolver()
	stub.answers["example.com"] = []net.IP{net.ParseIP("93.184.216.34"), net.ParseIP("1.2.3.4")}
	cache := NewDNSCache(stub)

	ip, ok := cache.Query("example.com")
	require.True(t, ok)
	require.Equal(t, "93.184.216.34", ip.String())

	ip, ok = cache.Query("example.com")
	require.True(t, ok)
	require.Equal(t, "93.184.216.34", ip.String())
	require.Equal(t, 1, stub.calls["example.com"], "cache hit must not re-resolve")
}

func TestQueryEmptyResultNotCached(t *testing.T) {
	stub := newStubResolver()
	cache := NewDNSCache(stub)

	_, ok := cache.Query("flaky.example")
	require.False(t, ok)

	// The host becomes resolvable; a stale empty entry would hide it.
	stub.answers["flaky.example"] = []net.IP{net.ParseIP("10.0.0.1")}
	ip, ok := cache.Query("flaky.example")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", ip.String())
	require.Equal(t, 2, stub.calls["flaky.example"])
}

func TestQueryErrorLooksLikeNoAddress(t *testing.T) {
	stub := newStubResolver()
	stub.err = errors.New("servfail")
	cache := NewDNSCache(stub)

	ip, ok := cache.Query("broken.example")
	require.False(t, ok)
	require.Nil(t, ip)
}
