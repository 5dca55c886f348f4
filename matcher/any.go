package matcher

import "github.com/dcompass/dcompass/ctx"

// Any always matches. It is the usual fallback at the end of a table.
type Any struct{}

// Matches implements Matcher.
func (Any) Matches(*ctx.Context) bool { return true }
