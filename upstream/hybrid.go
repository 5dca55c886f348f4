package upstream

import (
	"context"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// hybridResolver races its members concurrently and returns the first
// success, cancelling the rest, matching the teacher's
// middleware/resolver/parallel_lookup.go fan-out-first-success pattern
// built on errgroup. Hybrid's own timeout is not used: each member bounds
// itself with its own configured timeout, per spec §4.5.
type hybridResolver struct {
	tag     string
	members []Resolver
}

// NewHybrid returns a Resolver that races members concurrently.
func NewHybrid(tag string, members []Resolver) Resolver {
	return &hybridResolver{tag: tag, members: members}
}

type hybridResult struct {
	msg *dns.Msg
	err error
}

// Resolve implements Resolver.
func (h *hybridResolver) Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	if len(h.members) == 0 {
		return nil, &Error{Upstream: h.tag, Err: ErrNoAnswer}
	}

	race, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(race)
	results := make(chan hybridResult, len(h.members))

	for _, member := range h.members {
		member := member
		g.Go(func() error {
			msg, err := member.Resolve(gctx, q, checkingDisabled)
			results <- hybridResult{msg: msg, err: err}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var lastErr error
	for r := range results {
		if r.err == nil {
			cancel() // stop the remaining racers; their results are discarded
			return r.msg, nil
		}
		lastErr = r.err
	}

	if lastErr == nil {
		lastErr = ErrNoAnswer
	}
	return nil, &Error{Upstream: h.tag, Err: lastErr}
}
