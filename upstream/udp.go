package upstream

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// udpResolver is a single-shot UDP resolver: one datagram per query, no
// connection reuse, bounded by timeout, per spec §4.5.
type udpResolver struct {
	tag     string
	addr    string
	client  *dns.Client
	timeout time.Duration
}

// NewUDP returns a UDP Resolver addressing addr ("host:port"), bounded by
// timeout.
func NewUDP(tag, addr string, timeout time.Duration) Resolver {
	return &udpResolver{
		tag:  tag,
		addr: addr,
		client: &dns.Client{
			Net:     "udp",
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Resolve implements Resolver.
func (u *udpResolver) Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	if u.timeout <= 0 {
		return nil, &Error{Upstream: u.tag, Err: context.DeadlineExceeded}
	}

	m := newOutboundQuery(q, checkingDisabled)

	resp, _, err := u.client.ExchangeContext(ctx, m, u.addr)
	if err != nil {
		return nil, &Error{Upstream: u.tag, Err: err}
	}
	if resp.Id != m.Id {
		return nil, &Error{Upstream: u.tag, Err: dns.ErrId}
	}

	return resp, nil
}
