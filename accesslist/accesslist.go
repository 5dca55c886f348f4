// Package accesslist implements the supplemental client-CIDR allow list
// named in SPEC_FULL.md: an empty list allows all clients; a non-empty
// list allows only addresses contained in one of its CIDRs. Grounded on
// the teacher's accesslist package, rebuilt against net.IP and the
// config.Config shape.
package accesslist

import (
	"net"

	"github.com/semihalev/log"
	"github.com/yl2chen/cidranger"

	"github.com/dcompass/dcompass/config"
)

// AccessList is a CIDR-based client allow list.
type AccessList struct {
	ranger cidranger.Ranger
	empty  bool
}

// New builds an AccessList from cfg.AccessList. An empty or absent list
// allows every client.
func New(cfg *config.Config) *AccessList {
	a := &AccessList{ranger: cidranger.NewPCTrieRanger(), empty: len(cfg.AccessList) == 0}

	for _, cidr := range cfg.AccessList {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Error("accesslist: invalid CIDR, skipping", "cidr", cidr, "error", err.Error())
			continue
		}
		if err := a.ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet)); err != nil {
			log.Error("accesslist: insert failed", "cidr", cidr, "error", err.Error())
		}
	}

	return a
}

// Allowed reports whether ip may query this server.
func (a *AccessList) Allowed(ip net.IP) bool {
	if a.empty {
		return true
	}
	if ip == nil {
		return false
	}

	ok, err := a.ranger.Contains(ip)
	if err != nil {
		log.Error("accesslist: lookup failed", "error", err.Error())
		return false
	}
	return ok
}
