package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcompass/dcompass/cache"
	dctx "github.com/dcompass/dcompass/ctx"
	"github.com/dcompass/dcompass/metrics"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

// gaugeValue reads a single-sample gauge/counter metric family's value out
// of reg, failing the test if the family is absent or has no samples.
func gaugeValue(t *testing.T, reg *prometheus.Registry, family string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	assert.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric family %q not found", family)
	return 0
}

func newTestContext(name string, qtype uint16) *dctx.Context {
	req := new(dns.Msg)
	req.SetQuestion(name, qtype)
	req.Id = 42
	return dctx.New(req, nil)
}

func newTestContextCD(name string, qtype uint16, checkingDisabled bool) *dctx.Context {
	req := new(dns.Msg)
	req.SetQuestion(name, qtype)
	req.Id = 42
	req.CheckingDisabled = checkingDisabled
	return dctx.New(req, nil)
}

func Test_Skip(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	assert.NoError(t, Skip{}.Act(c))
	assert.Nil(t, c.Response)
}

func Test_Disable(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	assert.NoError(t, Disable{}.Act(c))

	assert.NotNil(t, c.Response)
	assert.Equal(t, dns.RcodeSuccess, c.Response.Rcode)
	assert.False(t, c.Response.Authoritative)
	assert.Len(t, c.Response.Ns, 1)

	soa, ok := c.Response.Ns[0].(*dns.SOA)
	assert.True(t, ok)
	assert.Equal(t, "example.com.", soa.Hdr.Name)
	assert.Equal(t, "fake.", soa.Ns)
	assert.Equal(t, "fake.", soa.Mbox)
	assert.EqualValues(t, 1, soa.Serial)
}

// stubResolver is a test Resolver.
type stubResolver struct {
	calls                int
	msg                  *dns.Msg
	err                  error
	delay                time.Duration
	lastCheckingDisabled bool
}

func (s *stubResolver) Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	s.calls++
	s.lastCheckingDisabled = checkingDisabled
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	m := new(dns.Msg)
	m.SetQuestion(q.Name, q.Qtype)
	rr, _ := dns.NewRR(q.Name + " 300 IN A 127.0.0.1")
	m.Answer = []dns.RR{rr}
	if s.msg != nil {
		return s.msg, nil
	}
	return m, nil
}

func Test_Query_MissPopulatesCacheAndResponse(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	res := &stubResolver{}
	q := &Query{Upstream: "up", Resolver: res, Cache: cache.New(10)}

	assert.NoError(t, q.Act(c))
	assert.NotNil(t, c.Response)
	assert.Equal(t, 1, res.calls)

	key := cache.Key(c.Question)
	assert.Equal(t, cache.Fresh, q.Cache.Get(key).Status)
}

func Test_Query_FreshHitDoesNotCallUpstream(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	res := &stubResolver{}
	ch := cache.New(10)
	q := &Query{Upstream: "up", Resolver: res, Cache: ch}

	assert.NoError(t, q.Act(c))
	assert.Equal(t, 1, res.calls)

	c2 := newTestContext("example.com.", dns.TypeA)
	assert.NoError(t, q.Act(c2))
	assert.Equal(t, 1, res.calls, "fresh hit must not reach the upstream")
	assert.NotNil(t, c2.Response)
}

func Test_Query_StaleHitServesImmediatelyAndRefreshes(t *testing.T) {
	now := time.Now()
	ch := cache.New(10)

	c := newTestContext("example.com.", dns.TypeA)
	res := &stubResolver{}
	q := &Query{Upstream: "up", Resolver: res, Cache: ch}
	assert.NoError(t, q.Act(c))
	assert.Equal(t, 1, res.calls)

	// Force staleness by advancing the cache's clock past min_ttl.
	ch.SetClockForTest(func() time.Time { return now.Add(10 * time.Minute) })

	c2 := newTestContext("example.com.", dns.TypeA)
	start := time.Now()
	assert.NoError(t, q.Act(c2))
	elapsed := time.Since(start)

	assert.NotNil(t, c2.Response, "stale hit must still populate a response immediately")
	assert.Less(t, elapsed, 100*time.Millisecond)

	// Allow the detached refresh goroutine to run.
	assert.Eventually(t, func() bool {
		return res.calls >= 2
	}, time.Second, 10*time.Millisecond)
}

func Test_Query_MissUpstreamError(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	res := &stubResolver{err: errors.New("boom")}
	q := &Query{Upstream: "up", Resolver: res, Cache: cache.New(10)}

	err := q.Act(c)
	assert.Error(t, err)
	assert.Nil(t, c.Response)
}

func Test_Query_NilResolver(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	q := &Query{Upstream: "missing", Cache: cache.New(10)}

	err := q.Act(c)
	assert.Error(t, err)
}

func Test_Query_Miss_RecordsCacheEntriesMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c := newTestContext("example.com.", dns.TypeA)
	q := &Query{Upstream: "up", Resolver: &stubResolver{}, Cache: cache.New(10), Metrics: m}

	assert.NoError(t, q.Act(c))
	assert.Equal(t, float64(1), gaugeValue(t, reg, "dns_cache_entries"))
}

func Test_Query_MissUpstreamError_RecordsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	c := newTestContext("example.com.", dns.TypeA)
	q := &Query{Upstream: "up", Resolver: &stubResolver{err: errors.New("boom")}, Cache: cache.New(10), Metrics: m}

	assert.Error(t, q.Act(c))
	assert.Equal(t, float64(1), gaugeValue(t, reg, "dns_upstream_errors_total"))
}

func Test_Query_ForwardsCheckingDisabledToResolver(t *testing.T) {
	c := newTestContextCD("example.com.", dns.TypeA, true)
	res := &stubResolver{}
	q := &Query{Upstream: "up", Resolver: res, Cache: cache.New(10)}

	assert.NoError(t, q.Act(c))
	assert.True(t, res.lastCheckingDisabled)

	c2 := newTestContextCD("other.com.", dns.TypeA, false)
	assert.NoError(t, q.Act(c2))
	assert.False(t, res.lastCheckingDisabled)
}

func Test_Query_NilMetricsIsSafe(t *testing.T) {
	c := newTestContext("example.com.", dns.TypeA)
	q := &Query{Upstream: "up", Resolver: &stubResolver{}, Cache: cache.New(10)}

	assert.NoError(t, q.Act(c))
}
