package checker

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

// Type selects the probe protocol of a monitor.
type Type string

const (
	TypeHTTP Type = "http"
	TypeDNS  Type = "dns"
	TypeICMP Type = "icmp"
)

// ParseType normalises s into a known Type. Empty or unrecognised values
// fall back to HTTP; ok reports whether s was recognised.
func ParseType(s string) (t Type, ok bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeHTTP:
		return TypeHTTP, true
	case TypeDNS:
		return TypeDNS, true
	case TypeICMP:
		return TypeICMP, true
	default:
		return TypeHTTP, false
	}
}

// Prober performs a single protocol-specific probe. Implementations never
// panic or return errors; every fault is reported through the Outcome.
type Prober interface {
	Probe(ctx context.Context, target string) Outcome
}

// Timeouts holds the per-protocol probe ceilings.
type Timeouts struct {
	HTTP time.Duration
	DNS  time.Duration
	ICMP time.Duration
}

// DefaultTimeouts returns the stock probe ceilings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		HTTP: 10 * time.Second,
		DNS:  5 * time.Second,
		ICMP: 2 * time.Second,
	}
}

// For returns the ceiling for t, falling back to the defaults for zero values.
func (to Timeouts) For(t Type) time.Duration {
	def := DefaultTimeouts()
	switch t {
	case TypeDNS:
		if to.DNS > 0 {
			return to.DNS
		}
		return def.DNS
	case TypeICMP:
		if to.ICMP > 0 {
			return to.ICMP
		}
		return def.ICMP
	default:
		if to.HTTP > 0 {
			return to.HTTP
		}
		return def.HTTP
	}
}

// Options configures the drivers returned by New.
type Options struct {
	Timeouts       Timeouts
	ICMPPrivileged bool
}

// New returns the driver for t. Unknown types get the HTTP driver.
func New(t Type, opts Options) Prober {
	switch t {
	case TypeDNS:
		return NewDNSProber(net.DefaultResolver, opts.Timeouts.For(TypeDNS))
	case TypeICMP:
		return NewICMPProber(&proBingPinger{privileged: opts.ICMPPrivileged}, opts.Timeouts.For(TypeICMP))
	default:
		return NewHTTPProber(nil, opts.Timeouts.For(TypeHTTP))
	}
}

// Hostname extracts the host part of target, stripping any scheme, port,
// credentials and path.
func Hostname(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil {
			return u.Hostname()
		}
	}
	if i := strings.IndexAny(target, "/?#"); i >= 0 {
		target = target[:i]
	}
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return strings.Trim(target, "[]")
}
