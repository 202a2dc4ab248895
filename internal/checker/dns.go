package checker

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Resolver abstracts IP lookups for testability. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

type dnsProber struct {
	resolver Resolver
	timeout  time.Duration
}

// NewDNSProber returns the DNS driver resolving IPv4 addresses through r.
func NewDNSProber(r Resolver, timeout time.Duration) Prober {
	if r == nil {
		r = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = DefaultTimeouts().DNS
	}
	return &dnsProber{resolver: r, timeout: timeout}
}

func (p *dnsProber) Probe(ctx context.Context, target string) (out Outcome) {
	start := time.Now()
	defer recoverOutcome(start, &out)

	host := Hostname(target)
	if host == "" {
		return Failed(time.Since(start), fmt.Sprintf("no hostname in target %q", target))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ips, err := p.resolver.LookupIP(ctx, "ip4", host)
	elapsed := time.Since(start)
	if err != nil {
		return Failed(elapsed, err.Error())
	}
	if len(ips) == 0 {
		return Failed(elapsed, fmt.Sprintf("no A records for %s", host))
	}
	return Succeeded(elapsed)
}
