package matcher

import (
	"net"

	"github.com/miekg/dns"

	"github.com/dcompass/dcompass/ctx"
	"github.com/dcompass/dcompass/geoip"
)

// On selects which IP address GeoIP looks at.
type On int

const (
	// OnSrc looks at the client's source address.
	OnSrc On = iota
	// OnResp looks at the first A/AAAA record of the response, if any.
	OnResp
)

// GeoIP matches when the country code of the relevant IP (src or resp, per
// On) is a member of the configured code set. A missing database, an
// unresolved IP, or (for OnResp) a response with no A/AAAA record, all
// report false rather than erroring, per spec §4.1.
type GeoIP struct {
	on    On
	codes map[string]struct{}
	db    geoip.DB
}

// NewGeoIP returns a GeoIP matcher.
func NewGeoIP(on On, codes []string, db geoip.DB) *GeoIP {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return &GeoIP{on: on, codes: m, db: db}
}

// Matches implements Matcher.
func (g *GeoIP) Matches(c *ctx.Context) bool {
	if g.db == nil {
		return false
	}

	var ip net.IP
	switch g.on {
	case OnSrc:
		ip = c.ClientIP()
	case OnResp:
		ip = firstAddr(c.Response)
	}

	if ip == nil {
		return false
	}

	country, ok := g.db.Lookup(ip)
	if !ok {
		return false
	}

	_, match := g.codes[country]
	return match
}

// firstAddr returns the IP carried by the first A or AAAA record in msg's
// answer section, or nil if there is none.
func firstAddr(msg *dns.Msg) net.IP {
	if msg == nil {
		return nil
	}
	for _, rr := range msg.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			return rr.A
		case *dns.AAAA:
			return rr.AAAA
		}
	}
	return nil
}
