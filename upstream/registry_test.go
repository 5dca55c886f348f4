package upstream

import (
	"testing"
	"time"

	"github.com/dcompass/dcompass/config"
	"github.com/stretchr/testify/assert"
)

func Test_NewRegistry(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "cloudflare", Method: config.UpstreamMethod{Kind: "https", Addr: "1.1.1.1:443", Name: "cloudflare-dns.com", Timeout: time.Second}},
		{Tag: "quad9", Method: config.UpstreamMethod{Kind: "tls", Addr: "9.9.9.9:853", Name: "dns.quad9.net", Timeout: time.Second}},
		{Tag: "secure", Method: config.UpstreamMethod{Kind: "hybrid", Members: []string{"cloudflare", "quad9"}}},
	}

	reg, err := NewRegistry(ups)
	assert.NoError(t, err)

	r, ok := reg.Resolver("secure")
	assert.True(t, ok)
	assert.NotNil(t, r)

	_, ok = reg.Resolver("nonexistent")
	assert.False(t, ok)
}

func Test_NewRegistry_UndefinedMember(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "secure", Method: config.UpstreamMethod{Kind: "hybrid", Members: []string{"ghost"}}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}

func Test_NewRegistry_SelfCycle(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "a", Method: config.UpstreamMethod{Kind: "hybrid", Members: []string{"a"}}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}

func Test_NewRegistry_IndirectCycle(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "a", Method: config.UpstreamMethod{Kind: "hybrid", Members: []string{"b"}}},
		{Tag: "b", Method: config.UpstreamMethod{Kind: "hybrid", Members: []string{"a"}}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}

func Test_NewRegistry_DuplicateTag(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "a", Method: config.UpstreamMethod{Kind: "udp", Addr: "1.1.1.1:53", Timeout: time.Second}},
		{Tag: "a", Method: config.UpstreamMethod{Kind: "udp", Addr: "8.8.8.8:53", Timeout: time.Second}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}

func Test_NewRegistry_EmptyHybrid(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "a", Method: config.UpstreamMethod{Kind: "hybrid"}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}

func Test_NewRegistry_UnknownMethod(t *testing.T) {
	ups := []config.Upstream{
		{Tag: "a", Method: config.UpstreamMethod{Kind: "quic"}},
	}
	_, err := NewRegistry(ups)
	assert.Error(t, err)
}
