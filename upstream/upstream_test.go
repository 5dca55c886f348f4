package upstream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func Test_newOutboundQuery(t *testing.T) {
	q := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}
	m := newOutboundQuery(q, false)

	assert.Equal(t, "example.com.", m.Question[0].Name)
	assert.Equal(t, dns.TypeA, m.Question[0].Qtype)
	assert.True(t, m.RecursionDesired)
	assert.False(t, m.CheckingDisabled)
	assert.NotNil(t, m.IsEdns0())

	cd := newOutboundQuery(q, true)
	assert.True(t, cd.CheckingDisabled)
}

func Test_Error(t *testing.T) {
	err := &Error{Upstream: "cloudflare", Err: context.DeadlineExceeded}
	assert.Contains(t, err.Error(), "cloudflare")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// startUDPEcho starts a UDP server that answers every query with handler,
// returning its address.
func startUDPEcho(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func Test_UDP_Resolve(t *testing.T) {
	addr := startUDPEcho(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = []dns.RR{}
		_ = w.WriteMsg(m)
	})

	res := NewUDP("echo", addr, time.Second)
	q := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}

	msg, err := res.Resolve(context.Background(), q, false)
	assert.NoError(t, err)
	assert.NotNil(t, msg)
}

func Test_UDP_Resolve_ZeroTimeout(t *testing.T) {
	res := NewUDP("echo", "127.0.0.1:1", 0)
	q := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}

	_, err := res.Resolve(context.Background(), q, false)
	assert.Error(t, err)
}

func Test_UDP_Resolve_NoServer(t *testing.T) {
	res := NewUDP("echo", "127.0.0.1:1", 50*time.Millisecond)
	q := dns.Question{Name: "example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET}

	_, err := res.Resolve(context.Background(), q, false)
	assert.Error(t, err)
}

// fakeResolver is a test Resolver stub used to exercise hybrid racing
// without a real network dependency.
type fakeResolver struct {
	delay time.Duration
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	m := new(dns.Msg)
	m.SetQuestion(q.Name, q.Qtype)
	return m, nil
}

func Test_Hybrid_FirstSuccessWins(t *testing.T) {
	slow := &fakeResolver{delay: 50 * time.Millisecond}
	fast := &fakeResolver{delay: time.Millisecond}

	h := NewHybrid("secure", []Resolver{slow, fast})
	msg, err := h.Resolve(context.Background(), dns.Question{Name: "example.com.", Qtype: dns.TypeA}, false)
	assert.NoError(t, err)
	assert.NotNil(t, msg)
}

func Test_Hybrid_AllFail(t *testing.T) {
	a := &fakeResolver{err: &Error{Upstream: "a", Err: context.DeadlineExceeded}}
	b := &fakeResolver{err: &Error{Upstream: "b", Err: context.DeadlineExceeded}}

	h := NewHybrid("secure", []Resolver{a, b})
	_, err := h.Resolve(context.Background(), dns.Question{Name: "example.com.", Qtype: dns.TypeA}, false)
	assert.Error(t, err)
}

func Test_Hybrid_NoMembers(t *testing.T) {
	h := NewHybrid("empty", nil)
	_, err := h.Resolve(context.Background(), dns.Question{Name: "example.com.", Qtype: dns.TypeA}, false)
	assert.Error(t, err)
}
