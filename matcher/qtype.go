package matcher

import "github.com/dcompass/dcompass/ctx"

// QType matches when the query's qtype is a member of the configured set.
type QType struct {
	types map[uint16]struct{}
}

// NewQType returns a QType matcher over the given RR types (e.g.
// dns.TypeA, dns.TypeAAAA).
func NewQType(types []uint16) *QType {
	m := make(map[uint16]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return &QType{types: m}
}

// Matches implements Matcher.
func (q *QType) Matches(c *ctx.Context) bool {
	_, ok := q.types[c.Question.Qtype]
	return ok
}
