package matcher

import (
	"github.com/dcompass/dcompass/ctx"
	"github.com/dcompass/dcompass/domainset"
)

// Domain matches when the query's qname equals, or is a subdomain of, any
// domain in the configured set. The set is built once from the external
// list files named in config; this matcher depends only on the compiled
// domainset.Set, not on file I/O.
type Domain struct {
	set *domainset.Set
}

// NewDomain returns a Domain matcher backed by set.
func NewDomain(set *domainset.Set) *Domain {
	return &Domain{set: set}
}

// Matches implements Matcher.
func (d *Domain) Matches(c *ctx.Context) bool {
	return d.set.Match(c.Question.Name)
}
