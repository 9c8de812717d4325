// Package resolver is the blocking DNS collaborator, backed by the servers
// in /etc/resolv.conf. A lookup runs on the reactor thread and stalls every
// session until it returns; the domain.Resolver port exists so a
// completion-event implementation can replace this one without touching the
// session machine.
package resolver

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

type Client struct {
	cli     *dns.Client
	servers []string
}

func New() (*Client, error) {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("read resolv.conf: %w", err)
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return &Client{cli: new(dns.Client), servers: servers}, nil
}

// Lookup resolves host to its A records, trying each configured server in
// order. An IP literal resolves to itself without a query.
func (c *Client) Lookup(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		r, _, err := c.cli.Exchange(m, server)
		if err != nil {
			lastErr = err
			continue
		}

		var ips []net.IP
		for _, ans := range r.Answer {
			if a, ok := ans.(*dns.A); ok {
				ips = append(ips, a.A)
			}
		}
		if len(ips) > 0 {
			return ips, nil
		}
		lastErr = fmt.Errorf("no A records for %s", host)
	}
	return nil, lastErr
}
