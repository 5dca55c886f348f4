package router

import (
	"fmt"

	"github.com/dcompass/dcompass/ctx"
)

// Evaluate walks the table starting at StartTag, invoking each rule's
// matcher and the actions of whichever branch it selects, per spec
// §4.3's evaluation contract. A visited-tag set enforces termination:
// re-entering a tag is a routing error, since the table permits arbitrary
// tag jumps but evaluation must not loop forever.
func (t *Table) Evaluate(c *ctx.Context) error {
	tag := StartTag
	visited := make(map[string]bool)

	for {
		if visited[tag] {
			return fmt.Errorf("router: cycle detected re-entering tag %q", tag)
		}
		visited[tag] = true

		rule, ok := t.rules[tag]
		if !ok {
			return fmt.Errorf("router: undefined tag %q", tag)
		}

		branch := rule.Else
		if rule.If.Matches(c) {
			branch = rule.Then
		}

		for _, act := range branch.Actions {
			if err := act.Act(c); err != nil {
				return fmt.Errorf("router: rule %q: %w", tag, err)
			}
		}

		if branch.Next == EndTag {
			return nil
		}
		tag = branch.Next
	}
}
