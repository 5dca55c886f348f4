package router

import (
	"fmt"
	"os"

	"github.com/dcompass/dcompass/action"
	"github.com/dcompass/dcompass/cache"
	"github.com/dcompass/dcompass/config"
	"github.com/dcompass/dcompass/domainset"
	"github.com/dcompass/dcompass/geoip"
	"github.com/dcompass/dcompass/matcher"
	"github.com/dcompass/dcompass/metrics"
	"github.com/dcompass/dcompass/upstream"
	"github.com/miekg/dns"
)

// Build translates the parsed config document into a compiled Table,
// wiring each rule's matcher against matcher.Matcher implementations and
// each action against the shared cache and upstream registry. geo may be
// nil, in which case any geoip matcher always reports false, per spec
// §4.1's "missing DB → false" contract. m may be nil to disable metrics
// recording entirely.
func Build(cfg *config.Config, reg *upstream.Registry, c *cache.Cache, geo geoip.DB, m *metrics.Metrics) (*Table, error) {
	rules := make([]Rule, 0, len(cfg.Table))

	for _, cr := range cfg.Table {
		mm, err := buildMatcher(cr.If, geo)
		if err != nil {
			return nil, fmt.Errorf("router: rule %q: %w", cr.Tag, err)
		}

		then, err := buildBranch(cr.Then, reg, c, m)
		if err != nil {
			return nil, fmt.Errorf("router: rule %q: then: %w", cr.Tag, err)
		}

		elseBranch := Branch{Next: EndTag}
		if cr.Else != nil {
			elseBranch, err = buildBranch(*cr.Else, reg, c, m)
			if err != nil {
				return nil, fmt.Errorf("router: rule %q: else: %w", cr.Tag, err)
			}
		}

		rules = append(rules, Rule{Tag: cr.Tag, If: mm, Then: then, Else: elseBranch})
	}

	return Compile(rules)
}

func buildMatcher(m config.Matcher, geo geoip.DB) (matcher.Matcher, error) {
	switch m.Kind {
	case "", "any":
		return matcher.Any{}, nil

	case "domain":
		set := domainset.New()
		for _, path := range m.Domain {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("domain list %q: %w", path, err)
			}
			set.InsertMulti(string(data))
		}
		return matcher.NewDomain(set), nil

	case "qtype":
		types := make([]uint16, 0, len(m.QType))
		for _, name := range m.QType {
			t, ok := dns.StringToType[name]
			if !ok {
				return nil, fmt.Errorf("unknown qtype %q", name)
			}
			types = append(types, t)
		}
		return matcher.NewQType(types), nil

	case "geoip":
		on := matcher.OnSrc
		if m.GeoIP.On == "resp" {
			on = matcher.OnResp
		}
		return matcher.NewGeoIP(on, m.GeoIP.Codes, geo), nil

	default:
		return nil, fmt.Errorf("unknown matcher kind %q", m.Kind)
	}
}

func buildBranch(b config.Branch, reg *upstream.Registry, c *cache.Cache, m *metrics.Metrics) (Branch, error) {
	actions := make([]action.Action, 0, len(b.Actions))
	for _, ca := range b.Actions {
		act, err := buildAction(ca, reg, c, m)
		if err != nil {
			return Branch{}, err
		}
		actions = append(actions, act)
	}

	next := b.Next
	if next == "" {
		next = EndTag
	}

	return Branch{Actions: actions, Next: next}, nil
}

func buildAction(a config.Action, reg *upstream.Registry, c *cache.Cache, m *metrics.Metrics) (action.Action, error) {
	switch a.Kind {
	case "skip":
		return action.Skip{}, nil

	case "disable":
		return action.Disable{}, nil

	case "query":
		res, ok := reg.Resolver(a.Upstream)
		if !ok {
			return nil, fmt.Errorf("query action references undefined upstream %q", a.Upstream)
		}
		return &action.Query{Upstream: a.Upstream, Resolver: res, Cache: c, Metrics: m}, nil

	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
}
