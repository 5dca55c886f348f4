// Package mock provides a minimal dns.ResponseWriter test double for the
// UDP-only ingress this module serves (spec §4.6/Non-goals exclude TCP/DoT/
// DoH ingress, so unlike the teacher's writer this one never models those
// protocols).
package mock

import (
	"net"

	"github.com/miekg/dns"
)

// Writer records whatever ServeDNS writes back, without touching a real
// socket.
type Writer struct {
	msg *dns.Msg

	localAddr  net.Addr
	remoteAddr net.Addr
}

// NewWriter returns a Writer whose RemoteAddr resolves addr over proto
// ("udp" is the only protocol this server's ingress accepts).
func NewWriter(proto, addr string) *Writer {
	w := &Writer{localAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53}}
	w.remoteAddr, _ = net.ResolveUDPAddr(proto, addr)
	return w
}

// Rcode returns the written message's response code, or SERVFAIL if
// nothing was written yet.
func (w *Writer) Rcode() int {
	if w.msg == nil {
		return dns.RcodeServerFailure
	}
	return w.msg.Rcode
}

// Msg returns the last message written, or nil.
func (w *Writer) Msg() *dns.Msg {
	return w.msg
}

// Written reports whether WriteMsg (or Write) has been called.
func (w *Writer) Written() bool {
	return w.msg != nil
}

// Write implements dns.ResponseWriter by unpacking the wire-format reply.
func (w *Writer) Write(b []byte) (int, error) {
	m := new(dns.Msg)
	if err := m.Unpack(b); err != nil {
		return 0, err
	}
	w.msg = m
	return len(b), nil
}

// WriteMsg implements dns.ResponseWriter.
func (w *Writer) WriteMsg(msg *dns.Msg) error {
	w.msg = msg
	return nil
}

// Close implements dns.ResponseWriter.
func (w *Writer) Close() error { return nil }

// LocalAddr implements dns.ResponseWriter.
func (w *Writer) LocalAddr() net.Addr { return w.localAddr }

// RemoteAddr implements dns.ResponseWriter.
func (w *Writer) RemoteAddr() net.Addr { return w.remoteAddr }

// TsigStatus implements dns.ResponseWriter.
func (w *Writer) TsigStatus() error { return nil }

// TsigTimersOnly implements dns.ResponseWriter.
func (w *Writer) TsigTimersOnly(bool) {}

// Hijack implements dns.ResponseWriter.
func (w *Writer) Hijack() {}
