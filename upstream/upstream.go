// Package upstream implements the four upstream resolver methods described
// in spec §3/§4.5: plain UDP, DNS-over-TLS, DNS-over-HTTPS, and Hybrid, a
// composite that races its members and returns the first success.
package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// Resolver resolves a single question, bounded by its own per-method
// timeout. Implementations must be safe for concurrent use by multiple
// queries, matching §5's "upstream owns its connections, multiplexed with
// mutual exclusion around writes" model. checkingDisabled mirrors the
// inbound query's CD bit and is forwarded on the outbound message so a
// DNSSEC-aware upstream doesn't validate on our behalf.
type Resolver interface {
	Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error)
}

// Error is an UpstreamError per spec §7: a transport timeout, connection
// failure, TLS handshake failure, malformed reply, or non-2xx HTTP status.
type Error struct {
	Upstream string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %q: %v", e.Upstream, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoAnswer is the error a hybrid resolver wraps when it has no members,
// or when its members finished without reporting either a reply or an
// error.
var ErrNoAnswer = errors.New("upstream: no usable answer")

// newOutboundQuery builds a fresh outbound message for q: a new, randomly
// chosen transaction ID (never the inbound ID, per spec §4.5), EDNS0
// enabled at a conservative UDP size, recursion desired, and the CD bit
// carried over from the inbound query.
func newOutboundQuery(q dns.Question, checkingDisabled bool) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(q.Name, q.Qtype)
	m.Question[0].Qclass = q.Qclass
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.CheckingDisabled = checkingDisabled
	m.SetEdns0(4096, false)
	return m
}
