package application

import (
	"net"

	"http-proxy/internal/domain"
)

// DNSCache memoizes resolver results. A resolution error and an empty
// answer look identical to callers: no address. Empty results are never
// left cached, so a later query for the same host resolves again.
// Successful entries have no TTL; the cache lives as long as the process.
type DNSCache struct {
	resolver domain.Resolver
	entries  map[string][]net.IP
}

func NewDNSCache(r domain.Resolver) *DNSCache {
	return &DNSCache{resolver: r, entries: make(map[string][]net.IP)}
}

// Query returns the first known address for host, resolving on a miss.
func (c *DNSCache) Query(host string) (net.IP, bool) {
	ips, ok := c.entries[host]
	if !ok {
		ips, _ = c.resolver.Lookup(host)
		c.entries[host] = ips
	}
	if len(ips) == 0 {
		delete(c.entries, host)
		return nil, false
	}
	return ips[0], true
}
