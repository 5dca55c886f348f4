package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"
)

// keyBuffer holds a reusable buffer for key generation, avoiding a heap
// allocation per lookup on the hot path, matching the teacher's
// cache/key.go pooling.
type keyBuffer struct {
	buf [256]byte
}

var keyBufferPool = sync.Pool{
	New: func() any { return new(keyBuffer) },
}

// Key computes the cache key for q: (qname lowercased, qtype, qclass). The
// inbound transaction ID and EDNS0 options never enter the key, per
// spec §3's cache entry definition.
func Key(q dns.Question) uint64 {
	kb := keyBufferPool.Get().(*keyBuffer)
	defer keyBufferPool.Put(kb)

	buf := kb.buf[:0]
	buf = append(buf, byte(q.Qclass>>8), byte(q.Qclass))
	buf = append(buf, byte(q.Qtype>>8), byte(q.Qtype))

	nameLen := len(q.Name)
	if len(buf)+nameLen > len(kb.buf) {
		newBuf := make([]byte, len(buf), len(buf)+nameLen)
		copy(newBuf, buf)
		buf = newBuf
	}

	for i := 0; i < nameLen; i++ {
		c := q.Name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf = append(buf, c)
	}

	return xxhash.Sum64(buf)
}
