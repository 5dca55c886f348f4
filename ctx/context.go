// Package ctx defines the per-query context threaded through matchers,
// actions and the router while a single DNS query is being evaluated.
package ctx

import (
	"net"

	"github.com/miekg/dns"
)

// Context is created per inbound query and destroyed when the response is
// sent. It is exclusively owned by one routing evaluation; it must never be
// shared across queries.
type Context struct {
	// Question is the first question of the inbound message. Matching and
	// upstream dispatch are driven entirely by this value.
	Question dns.Question

	// Response is populated by actions (Disable, Query). It starts nil and,
	// if still nil when the router terminates, the caller must synthesize
	// SERVFAIL.
	Response *dns.Msg

	// ClientAddr is the source address of the inbound query, consulted by
	// the GeoIP matcher when on=src.
	ClientAddr net.Addr

	// ID is the inbound message's transaction ID, preserved in the
	// outbound response regardless of what ID the upstream used.
	ID uint16

	// CheckingDisabled mirrors the inbound message's CD bit. The query
	// action forwards it to upstream.Resolver.Resolve so DNSSEC-aware
	// upstreams don't validate on our behalf.
	CheckingDisabled bool
}

// New builds a Context from an inbound request and its source address. The
// caller must ensure req has at least one question before routing; a
// zero-question message should be dropped before a Context is constructed.
func New(req *dns.Msg, addr net.Addr) *Context {
	return &Context{
		Question:         req.Question[0],
		ClientAddr:       addr,
		ID:               req.Id,
		CheckingDisabled: req.CheckingDisabled,
	}
}

// ClientIP extracts the IP portion of ClientAddr, or nil if it cannot be
// determined (e.g. a nil address in tests).
func (c *Context) ClientIP() net.IP {
	if c.ClientAddr == nil {
		return nil
	}

	switch a := c.ClientAddr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(c.ClientAddr.String())
		if err != nil {
			return net.ParseIP(c.ClientAddr.String())
		}
		return net.ParseIP(host)
	}
}
