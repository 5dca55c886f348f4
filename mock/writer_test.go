package mock

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func Test_Writer_WriteMsg(t *testing.T) {
	mw := NewWriter("udp", "127.0.0.1:0")

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeA)

	assert.False(t, mw.Written())
	assert.Equal(t, dns.RcodeServerFailure, mw.Rcode())

	assert.NoError(t, mw.WriteMsg(m))

	assert.True(t, mw.Written())
	assert.Equal(t, dns.RcodeSuccess, mw.Rcode())
	assert.NotNil(t, mw.Msg())
	assert.Equal(t, "127.0.0.1:53", mw.LocalAddr().String())
	assert.Equal(t, "127.0.0.1:0", mw.RemoteAddr().String())
	assert.NoError(t, mw.Close())
	assert.NoError(t, mw.TsigStatus())
}

func Test_Writer_Write_UnpacksWireFormat(t *testing.T) {
	mw := NewWriter("udp", "127.0.0.1:0")

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeA)
	data, err := m.Pack()
	assert.NoError(t, err)

	n, err := mw.Write(data)
	assert.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, mw.Written())
	assert.Equal(t, dns.RcodeSuccess, mw.Rcode())
}

func Test_Writer_Write_InvalidWireFormat(t *testing.T) {
	mw := NewWriter("udp", "127.0.0.1:0")

	_, err := mw.Write([]byte{})
	assert.Error(t, err)
	assert.False(t, mw.Written())
}
