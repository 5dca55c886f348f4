// Package router compiles the declarative routing table into an indexed
// form and evaluates it per query, per spec §4.3.
package router

import (
	"fmt"

	"github.com/dcompass/dcompass/action"
	"github.com/dcompass/dcompass/matcher"
)

// StartTag is the mandatory entry point of every routing table.
const StartTag = "start"

// EndTag is the terminal pseudo-tag that halts evaluation.
const EndTag = "end"

// Branch is a sequence of actions followed by a next-tag reference.
type Branch struct {
	Actions []action.Action
	Next    string
}

// Rule is one node of the routing table.
type Rule struct {
	Tag  string
	If   matcher.Matcher
	Then Branch
	Else Branch
}

// Table is the compiled, validated routing table: an index from tag to
// Rule with `start` guaranteed present and every `next` reference
// guaranteed to resolve, per spec §4.3's compilation contract.
type Table struct {
	rules map[string]Rule
}

// Compile validates rules and returns an indexed Table.
//
// Checks, per spec §3/§4.3:
//   - start exists;
//   - every next reference is either "end" or a defined tag;
//   - no rule is unreachable from start.
func Compile(rules []Rule) (*Table, error) {
	index := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if r.Tag == "" {
			return nil, fmt.Errorf("router: rule with empty tag")
		}
		if _, dup := index[r.Tag]; dup {
			return nil, fmt.Errorf("router: duplicate tag %q", r.Tag)
		}
		index[r.Tag] = r
	}

	if _, ok := index[StartTag]; !ok {
		return nil, fmt.Errorf("router: missing %q rule", StartTag)
	}

	for _, r := range index {
		for _, next := range []string{r.Then.Next, r.Else.Next} {
			if next == EndTag {
				continue
			}
			if _, ok := index[next]; !ok {
				return nil, fmt.Errorf("router: rule %q references undefined tag %q", r.Tag, next)
			}
		}
	}

	reachable := make(map[string]bool, len(index))
	var walk func(tag string)
	walk = func(tag string) {
		if tag == EndTag || reachable[tag] {
			return
		}
		r, ok := index[tag]
		if !ok {
			return
		}
		reachable[tag] = true
		walk(r.Then.Next)
		walk(r.Else.Next)
	}
	walk(StartTag)

	for tag := range index {
		if !reachable[tag] {
			return nil, fmt.Errorf("router: rule %q is unreachable from %q", tag, StartTag)
		}
	}

	return &Table{rules: index}, nil
}
