// Package domainset implements a compressed label trie for domain-suffix
// membership, the same structure the original dcompass's Domain matcher
// builds from external list files (a dmatcher-style trie keyed on
// dot-separated labels read in reverse, root-to-TLD order).
package domainset

import "strings"

// Set is an immutable-after-build predicate over domain names: Match
// reports whether a name is, or is a subdomain of, one of the domains
// inserted into the set.
type Set struct {
	root *node
}

type node struct {
	children map[string]*node
	terminal bool
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// New returns an empty Set.
func New() *Set {
	return &Set{root: newNode()}
}

// Insert adds a domain to the set. Matching is suffix-based: inserting
// "example.com" also matches "www.example.com".
func (s *Set) Insert(domain string) {
	labels := splitLabels(domain)
	if len(labels) == 0 {
		return
	}

	n := s.root
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		child, ok := n.children[label]
		if !ok {
			child = newNode()
			n.children[label] = child
		}
		n = child
	}
	n.terminal = true
}

// InsertMulti parses a newline-separated list of domains (as produced by the
// external domain-list file loader described in the spec) and inserts each
// non-empty, non-comment line.
func (s *Set) InsertMulti(data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.Insert(line)
	}
}

// Match reports whether name equals, or is a subdomain of, any domain
// inserted into the set. The comparison is case-insensitive and ignores a
// trailing root dot.
func (s *Set) Match(name string) bool {
	labels := splitLabels(name)
	if len(labels) == 0 {
		return false
	}

	n := s.root
	for i := len(labels) - 1; i >= 0; i-- {
		child, ok := n.children[labels[i]]
		if !ok {
			return false
		}
		if child.terminal {
			return true
		}
		n = child
	}
	return n.terminal
}

func splitLabels(name string) []string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}
