package checker

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingStats is the part of an echo exchange the ICMP driver needs.
type PingStats struct {
	Received int
	RTT      time.Duration
}

// Pinger abstracts ICMP echo for testability.
type Pinger interface {
	Ping(ctx context.Context, host string, timeout time.Duration) (PingStats, error)
}

type icmpProber struct {
	pinger  Pinger
	timeout time.Duration
}

// NewICMPProber returns the ICMP driver sending a single echo request.
func NewICMPProber(p Pinger, timeout time.Duration) Prober {
	if timeout <= 0 {
		timeout = DefaultTimeouts().ICMP
	}
	return &icmpProber{pinger: p, timeout: timeout}
}

func (c *icmpProber) Probe(ctx context.Context, target string) (out Outcome) {
	start := time.Now()
	defer recoverOutcome(start, &out)

	host := Hostname(target)
	if host == "" {
		return Failed(time.Since(start), fmt.Sprintf("no hostname in target %q", target))
	}

	// The pinger stops itself at timeout; the extra second only guards a
	// pinger that ignores its own deadline.
	ctx, cancel := context.WithTimeout(ctx, c.timeout+time.Second)
	defer cancel()

	stats, err := c.pinger.Ping(ctx, host, c.timeout)
	elapsed := time.Since(start)
	if err != nil {
		return Failed(elapsed, fmt.Sprintf("ping %s: %v", host, err))
	}
	if stats.Received == 0 {
		return Failed(elapsed, fmt.Sprintf("ping %s: no reply within %s", host, c.timeout))
	}
	if stats.RTT > 0 {
		elapsed = stats.RTT
	}
	return Succeeded(elapsed)
}

// proBingPinger is the real Pinger backed by pro-bing.
type proBingPinger struct {
	privileged bool
}

func (p *proBingPinger) Ping(ctx context.Context, host string, timeout time.Duration) (PingStats, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return PingStats{}, err
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return PingStats{}, err
	}

	st := pinger.Statistics()
	rtt := st.AvgRtt
	if rtt == 0 {
		rtt = st.MinRtt
	}
	return PingStats{Received: st.PacketsRecv, RTT: rtt}, nil
}
