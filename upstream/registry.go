package upstream

import (
	"fmt"
	"time"

	"github.com/dcompass/dcompass/config"
)

// defaultTimeout is used when an upstream method omits timeout.
const defaultTimeout = 2 * time.Second

// Registry resolves upstream tags to Resolvers, built once at startup from
// the config's upstream list after static validation: every tag referenced
// as a hybrid member must be defined, and the hybrid membership graph must
// be acyclic (tags named by a rule's query action are checked separately,
// by router.Build),
// matching the reachability/cycle checks the original Rust implementation
// runs over its upstream graph before serving traffic
// (original_source/droute/src/router/table/mod.rs's graph validation).
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry builds direct resolvers for every non-hybrid upstream, then
// resolves hybrid members in dependency order, rejecting any cycle or
// reference to an undefined tag.
func NewRegistry(upstreams []config.Upstream) (*Registry, error) {
	defs := make(map[string]config.Upstream, len(upstreams))
	for _, u := range upstreams {
		if u.Tag == "" {
			return nil, fmt.Errorf("upstream: entry with empty tag")
		}
		if _, dup := defs[u.Tag]; dup {
			return nil, fmt.Errorf("upstream %q: duplicate tag", u.Tag)
		}
		defs[u.Tag] = u
	}

	if err := checkHybridAcyclic(defs); err != nil {
		return nil, err
	}

	r := &Registry{resolvers: make(map[string]Resolver, len(defs))}

	building := make(map[string]bool, len(defs))
	var build func(tag string) (Resolver, error)
	build = func(tag string) (Resolver, error) {
		if res, ok := r.resolvers[tag]; ok {
			return res, nil
		}

		def, ok := defs[tag]
		if !ok {
			return nil, fmt.Errorf("upstream: undefined tag %q", tag)
		}
		if building[tag] {
			return nil, fmt.Errorf("upstream %q: cyclic hybrid dependency", tag)
		}
		building[tag] = true
		defer delete(building, tag)

		timeout := def.Method.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		var res Resolver
		switch def.Method.Kind {
		case "udp":
			res = NewUDP(tag, def.Method.Addr, timeout)
		case "tls":
			res = NewDoT(tag, def.Method.Addr, def.Method.Name, def.Method.NoSNI, timeout)
		case "https":
			res = NewDoH(tag, def.Method.Addr, def.Method.Name, def.Method.NoSNI, timeout)
		case "hybrid":
			if len(def.Method.Members) == 0 {
				return nil, fmt.Errorf("upstream %q: hybrid has no members", tag)
			}
			members := make([]Resolver, 0, len(def.Method.Members))
			for _, m := range def.Method.Members {
				mres, err := build(m)
				if err != nil {
					return nil, err
				}
				members = append(members, mres)
			}
			res = NewHybrid(tag, members)
		default:
			return nil, fmt.Errorf("upstream %q: unknown method %q", tag, def.Method.Kind)
		}

		r.resolvers[tag] = res
		return res, nil
	}

	for tag := range defs {
		if _, err := build(tag); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Resolver returns the Resolver registered under tag, or false if no such
// upstream is defined.
func (r *Registry) Resolver(tag string) (Resolver, bool) {
	res, ok := r.resolvers[tag]
	return res, ok
}

// checkHybridAcyclic runs a three-state (unvisited/visiting/done)
// depth-first traversal over the hybrid membership graph, rejecting
// self-reference and longer cycles alike.
func checkHybridAcyclic(defs map[string]config.Upstream) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(defs))

	var visit func(tag string) error
	visit = func(tag string) error {
		switch state[tag] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("upstream %q: cyclic hybrid dependency", tag)
		}

		def, ok := defs[tag]
		if !ok {
			return fmt.Errorf("upstream: undefined tag %q", tag)
		}

		state[tag] = visiting
		if def.Method.Kind == "hybrid" {
			for _, m := range def.Method.Members {
				if err := visit(m); err != nil {
					return err
				}
			}
		}
		state[tag] = done
		return nil
	}

	for tag := range defs {
		if err := visit(tag); err != nil {
			return err
		}
	}
	return nil
}
