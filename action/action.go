// Package action implements the three routing actions described in spec
// §4.2: Skip, Disable, and Query. Each acts on the shared per-query
// ctx.Context, mutating its Response field.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/dcompass/dcompass/cache"
	"github.com/dcompass/dcompass/ctx"
	"github.com/dcompass/dcompass/metrics"
	"github.com/dcompass/dcompass/upstream"
	"github.com/miekg/dns"
)

// Action is a single routing action, run by the router in sequence for
// whichever branch a rule selects.
type Action interface {
	Act(c *ctx.Context) error
}

// Skip is a no-op action.
type Skip struct{}

// Act implements Action.
func (Skip) Act(*ctx.Context) error { return nil }

// Disable replaces c.Response with a synthesized no-data answer: a single
// SOA authority record, RCODE=NOERROR, AA=0, per spec §4.2's exact
// contract.
type Disable struct{}

// Act implements Action.
func (Disable) Act(c *ctx.Context) error {
	c.Response = synthesizeNoData(c)
	return nil
}

// synthesizeNoData builds the fixed SOA-authority no-data response named
// in spec §4.2.
func synthesizeNoData(c *ctx.Context) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(c.Question.Name, c.Question.Qtype)
	m.Id = c.ID
	m.Response = true
	m.RecursionAvailable = true
	m.Authoritative = false
	m.Rcode = dns.RcodeSuccess

	m.Ns = []dns.RR{&dns.SOA{
		Hdr: dns.RR_Header{
			Name:   c.Question.Name,
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    1800,
		},
		Ns:      "fake.",
		Mbox:    "fake.",
		Serial:  1,
		Refresh: 1800,
		Retry:   900,
		Expire:  604800,
		Minttl:  86400,
	}}

	return m
}

// Query looks up Upstream and resolves the question through the
// always-on cache described in spec §4.4, populating c.Response.
type Query struct {
	Upstream string

	Resolver upstream.Resolver
	Cache    *cache.Cache

	// Metrics is optional; when set, the cache size is recorded after every
	// cache Put and every failed resolution is counted, per SPEC_FULL.md's
	// DOMAIN STACK. Fresh and stale hits record nothing.
	Metrics *metrics.Metrics
}

// Act implements Action.
func (q *Query) Act(c *ctx.Context) error {
	if q.Resolver == nil {
		return fmt.Errorf("action: query %q: upstream not registered", q.Upstream)
	}

	key := cache.Key(c.Question)

	res := q.Cache.Get(key)
	switch res.Status {
	case cache.Fresh:
		c.Response = res.Msg
		return nil

	case cache.Stale:
		c.Response = res.Msg
		if q.Cache.MarkRefreshing(key) {
			go q.refresh(key, c.Question, c.CheckingDisabled)
		}
		return nil

	default: // cache.Miss
		msg, err := q.resolve(context.Background(), c.Question, c.CheckingDisabled)
		if err != nil {
			q.observeUpstreamError()
			return fmt.Errorf("action: query %q: %w", q.Upstream, err)
		}
		q.Cache.Put(key, msg)
		q.observeCacheEntries()
		c.Response = msg
		return nil
	}
}

func (q *Query) observeCacheEntries() {
	if q.Metrics != nil {
		q.Metrics.SetCacheEntries(q.Cache.Len())
	}
}

func (q *Query) observeUpstreamError() {
	if q.Metrics != nil {
		q.Metrics.ObserveUpstreamError(q.Upstream)
	}
}

// resolve forwards to Resolver.Resolve and returns its reply unchanged;
// the reply's question section is whatever the upstream echoed.
func (q *Query) resolve(ctx context.Context, question dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	return q.Resolver.Resolve(ctx, question, checkingDisabled)
}

// refresh is the background task spawned on a stale hit's winning
// mark_refreshing race: it re-resolves the question and either installs
// the fresh answer or clears the refreshing flag so a later query may try
// again, per spec §4.4 step 3. It is bounded by the upstream's own
// per-method timeout and by refreshBudget, not by the foreground query's
// context.
func (q *Query) refresh(key uint64, question dns.Question, checkingDisabled bool) {
	rctx, cancel := context.WithTimeout(context.Background(), refreshBudget)
	defer cancel()

	msg, err := q.Resolver.Resolve(rctx, question, checkingDisabled)
	if err != nil {
		q.Cache.ClearRefreshing(key)
		q.observeUpstreamError()
		return
	}
	q.Cache.Put(key, msg)
	q.observeCacheEntries()
}

// refreshBudget bounds a background refresh so a misbehaving upstream
// cannot leak goroutines indefinitely; individual resolvers still enforce
// their own, typically tighter, per-method timeout.
const refreshBudget = 30 * time.Second
