// Package matcher implements the predicates a routing rule evaluates over
// a query context, per spec §4.1. Matchers are pure functions of the
// context and their own configured state: they must never mutate ctx.
package matcher

import (
	"github.com/dcompass/dcompass/ctx"
)

// Matcher is the common interface every matcher variant implements.
type Matcher interface {
	// Matches reports whether c satisfies the matcher. It must not mutate c.
	Matches(c *ctx.Context) bool
}
