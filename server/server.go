// Package server implements the UDP-only ingress loop described in spec
// §4.6/Non-goals: bind a UDP socket, decode each datagram into a
// ctx.Context, run it through the compiled routing table, and write back
// the response (synthesizing SERVFAIL if the table left it empty).
// Grounded on the teacher's server/server.go dns.Server wiring, with
// panic recovery folded in directly rather than kept as a separate
// middleware stage (middleware/recovery/recovery.go's recover()+SERVFAIL
// pattern).
package server

import (
	"fmt"
	"net"
	"os"
	"runtime/debug"

	"github.com/miekg/dns"
	"github.com/semihalev/log"

	"github.com/dcompass/dcompass/accesslist"
	"github.com/dcompass/dcompass/ctx"
	"github.com/dcompass/dcompass/metrics"
	"github.com/dcompass/dcompass/router"
)

// Server is the UDP DNS ingress loop.
type Server struct {
	addr string

	table   *router.Table
	access  *accesslist.AccessList
	metrics *metrics.Metrics

	dns *dns.Server
}

// New returns a Server bound to addr, evaluating every accepted
// query against table.
func New(addr string, table *router.Table, access *accesslist.AccessList, m *metrics.Metrics) *Server {
	return &Server{addr: addr, table: table, access: access, metrics: m}
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Recovered in ServeDNS", "recover", rec)
			_, _ = os.Stderr.WriteString(fmt.Sprintf("panic: %v\n\n", rec))
			debug.PrintStack()

			reply := new(dns.Msg)
			reply.SetRcode(r, dns.RcodeServerFailure)
			_ = w.WriteMsg(reply)
		}
	}()

	if len(r.Question) == 0 {
		return
	}

	if s.access != nil {
		if !s.access.Allowed(clientIP(w.RemoteAddr())) {
			return
		}
	}

	c := ctx.New(r, w.RemoteAddr())

	if err := s.table.Evaluate(c); err != nil {
		log.Warn("Routing evaluation failed", "qname", c.Question.Name, "error", err.Error())
	}

	if c.Response == nil {
		c.Response = new(dns.Msg)
		c.Response.SetRcode(r, dns.RcodeServerFailure)
	}

	// c.Response may be the cache's shared message, so the inbound ID is
	// set on a copy.
	reply := c.Response.Copy()
	reply.Id = c.ID
	reply.Response = true

	if s.metrics != nil {
		s.metrics.ObserveQuery(c.Question.Qtype, reply.Rcode)
	}

	_ = w.WriteMsg(reply)
}

func clientIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		return nil
	}
}

// ListenAndServe binds the UDP socket and serves until it fails or is
// shut down.
func (s *Server) ListenAndServe() error {
	log.Info("DNS server listening...", "net", "udp", "addr", s.addr)

	s.dns = &dns.Server{Addr: s.addr, Net: "udp", Handler: s}
	return s.dns.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.dns == nil {
		return nil
	}
	return s.dns.Shutdown()
}
