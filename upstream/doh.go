package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"
)

const dohContentType = "application/dns-message"

// dohResolver is a DNS-over-HTTPS (RFC 8484) resolver. It POSTs the wire
// message to https://{name}/dns-query, dialing the TLS connection directly
// against addr (not whatever addr DNS resolution of name would yield) and
// reuses the HTTP/2 connection across queries via a shared http.Client,
// matching sdns's DoH client conventions (server/doh handles the ingress
// side of the same wire format; this is the egress counterpart).
type dohResolver struct {
	tag     string
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewDoH returns a DNS-over-HTTPS Resolver.
func NewDoH(tag, addr, name string, noSNI bool, timeout time.Duration) Resolver {
	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // verified manually in DialTLSContext below
	}
	if !noSNI {
		tlsConf.ServerName = name
	}

	transport := &http.Transport{
		TLSClientConfig: tlsConf,
		DialTLSContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: timeout}
			raw, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			tlsConn := tls.Client(raw, tlsConf)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				_ = raw.Close()
				return nil, err
			}
			if err := verifyServerName(tlsConn.ConnectionState(), name); err != nil {
				_ = tlsConn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &dohResolver{
		tag:     tag,
		url:     fmt.Sprintf("https://%s/dns-query", name),
		client:  &http.Client{Transport: transport, Timeout: timeout},
		timeout: timeout,
	}
}

// Resolve implements Resolver.
func (d *dohResolver) Resolve(ctx context.Context, q dns.Question, checkingDisabled bool) (*dns.Msg, error) {
	if d.timeout <= 0 {
		return nil, &Error{Upstream: d.tag, Err: context.DeadlineExceeded}
	}

	m := newOutboundQuery(q, checkingDisabled)

	wire, err := m.Pack()
	if err != nil {
		return nil, &Error{Upstream: d.tag, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(wire))
	if err != nil {
		return nil, &Error{Upstream: d.tag, Err: err}
	}
	req.Header.Set("content-type", dohContentType)
	req.Header.Set("accept", dohContentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Upstream: d.tag, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Upstream: d.tag, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, dns.MaxMsgSize))
	if err != nil {
		return nil, &Error{Upstream: d.tag, Err: err}
	}

	reply := new(dns.Msg)
	if err := reply.Unpack(body); err != nil {
		return nil, &Error{Upstream: d.tag, Err: err}
	}
	if reply.Id != m.Id {
		return nil, &Error{Upstream: d.tag, Err: dns.ErrId}
	}

	return reply, nil
}
