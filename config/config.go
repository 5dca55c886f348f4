// Package config loads the dcompass configuration document. The document
// format is YAML (spec §6 treats JSON and YAML as semantically identical;
// this module implements one concrete format, matching the reference
// pack's DNS forwarders which standardize on gopkg.in/yaml.v3).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/semihalev/log"
	"gopkg.in/yaml.v3"
)

// EndTag is the terminal pseudo-tag that halts routing evaluation.
const EndTag = "end"

// Config is the top-level configuration document, per spec §6.
type Config struct {
	Verbosity string `yaml:"verbosity"`
	CacheSize int    `yaml:"cache_size"`
	Address   string `yaml:"address"`

	// AccessList is a supplemental field: client CIDRs allowed to query
	// this server. An empty list allows all clients (matches the
	// teacher's accesslist default of 0.0.0.0/0, ::0/0).
	AccessList []string `yaml:"access_list"`

	// MetricsAddress, if set, binds a Prometheus /metrics HTTP endpoint.
	// Supplemental ambient observability; leave blank to disable.
	MetricsAddress string `yaml:"metrics_address"`

	// GeoIPPath is read from the document but nothing in this module opens
	// it: no GeoIP database reader ships here (the reader is external per
	// spec §1), so geoip matchers built by cmd/dcompass report false.
	GeoIPPath string `yaml:"geoip_path"`

	Table     []Rule     `yaml:"table"`
	Upstreams []Upstream `yaml:"upstreams"`
}

// Rule is a routing rule, per spec §3/§6.
type Rule struct {
	Tag  string  `yaml:"tag"`
	If   Matcher `yaml:"if"`
	Then Branch  `yaml:"then"`
	Else *Branch `yaml:"else"`
}

// Branch is a sequence of actions followed by a next-tag reference.
type Branch struct {
	Actions []Action
	Next    string
}

// UnmarshalYAML decodes a branch list: [action, action, ..., next_tag|"end"].
// A single-element list whose only entry is a string denotes a bare
// terminal branch with no actions (e.g. ["end"]).
func (b *Branch) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("config: branch must be a list, got kind %v", value.Kind)
	}
	if len(value.Content) == 0 {
		return fmt.Errorf("config: branch must name a next tag")
	}

	for i, item := range value.Content {
		if i == len(value.Content)-1 {
			var tag string
			if err := item.Decode(&tag); err != nil {
				return fmt.Errorf("config: branch's final entry must be a tag string: %w", err)
			}
			b.Next = tag
			continue
		}

		var action Action
		if err := item.Decode(&action); err != nil {
			return fmt.Errorf("config: branch action: %w", err)
		}
		b.Actions = append(b.Actions, action)
	}

	return nil
}

// Action is a single action entry: the bare strings "skip"/"disable", or a
// single-key mapping {query: upstream_tag}.
type Action struct {
	Kind     string // "skip", "disable", or "query"
	Upstream string // set when Kind == "query"
}

// UnmarshalYAML implements the scalar-or-mapping action grammar.
func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		switch s {
		case "skip", "disable":
			a.Kind = s
			return nil
		default:
			return fmt.Errorf("config: unknown action %q", s)
		}
	}

	if value.Kind == yaml.MappingNode {
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		if tag, ok := m["query"]; ok {
			a.Kind = "query"
			a.Upstream = tag
			return nil
		}
		return fmt.Errorf("config: unknown action mapping %v", m)
	}

	return fmt.Errorf("config: action must be a string or mapping, got kind %v", value.Kind)
}

// Matcher is "any", or a single-key mapping {domain|qtype|geoip: ...}.
type Matcher struct {
	Kind string // "any", "domain", "qtype", "geoip"

	// Domain holds paths to domain-list files (one domain per line, "#"
	// comments allowed), not literal domain names, per spec §6.
	Domain []string
	QType  []string
	GeoIP  GeoIPMatcher
}

// GeoIPMatcher is the geoip matcher's configuration payload.
type GeoIPMatcher struct {
	On    string   `yaml:"on"` // "src" or "resp"
	Codes []string `yaml:"codes"`
	Path  string   `yaml:"path"`
}

// UnmarshalYAML implements the scalar-or-mapping matcher grammar.
func (m *Matcher) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "any" {
			return fmt.Errorf("config: unknown matcher %q", s)
		}
		m.Kind = "any"
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("config: matcher must be \"any\" or a single-key mapping")
	}

	key := value.Content[0].Value
	switch key {
	case "domain":
		m.Kind = "domain"
		return value.Content[1].Decode(&m.Domain)
	case "qtype":
		m.Kind = "qtype"
		return value.Content[1].Decode(&m.QType)
	case "geoip":
		m.Kind = "geoip"
		return value.Content[1].Decode(&m.GeoIP)
	default:
		return fmt.Errorf("config: unknown matcher key %q", key)
	}
}

// Upstream is an upstream resolver definition, per spec §3/§6.
type Upstream struct {
	Tag    string `yaml:"tag"`
	Method UpstreamMethod
}

// UnmarshalYAML decodes:
//
//	tag: secure
//	method:
//	  hybrid: [cloudflare, quad9-tls]
func (u *Upstream) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Tag    string         `yaml:"tag"`
		Method map[string]any `yaml:"method"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	u.Tag = raw.Tag

	if len(raw.Method) != 1 {
		return fmt.Errorf("config: upstream %q: method must be a single-key mapping", u.Tag)
	}

	for kind, payload := range raw.Method {
		u.Method.Kind = kind
		switch kind {
		case "udp", "tls", "https":
			if err := decodeMethodFields(payload, &u.Method); err != nil {
				return fmt.Errorf("config: upstream %q: %w", u.Tag, err)
			}
		case "hybrid":
			list, ok := payload.([]any)
			if !ok {
				return fmt.Errorf("config: upstream %q: hybrid must be a list of tags", u.Tag)
			}
			for _, v := range list {
				s, ok := v.(string)
				if !ok {
					return fmt.Errorf("config: upstream %q: hybrid member must be a string", u.Tag)
				}
				u.Method.Members = append(u.Method.Members, s)
			}
		default:
			return fmt.Errorf("config: upstream %q: unknown method %q", u.Tag, kind)
		}
	}

	return nil
}

func decodeMethodFields(payload any, dst *UpstreamMethod) error {
	b, err := yaml.Marshal(payload)
	if err != nil {
		return err
	}
	var fields struct {
		Addr    string  `yaml:"addr"`
		Name    string  `yaml:"name"`
		NoSNI   bool    `yaml:"no_sni"`
		Timeout float64 `yaml:"timeout"`
	}
	if err := yaml.Unmarshal(b, &fields); err != nil {
		return err
	}
	dst.Addr = fields.Addr
	dst.Name = fields.Name
	dst.NoSNI = fields.NoSNI
	if fields.Timeout > 0 {
		dst.Timeout = time.Duration(fields.Timeout * float64(time.Second))
	}
	return nil
}

// UpstreamMethod is the decoded payload of one upstream method kind.
type UpstreamMethod struct {
	Kind    string // "udp", "tls", "https", "hybrid"
	Addr    string
	Name    string
	NoSNI   bool
	Timeout time.Duration
	Members []string // hybrid only
}

// Load reads and parses the config document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %s: %w", path, err)
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: could not parse %s: %w", path, err)
	}

	if cfg.Verbosity == "" {
		cfg.Verbosity = "info"
	}
	if cfg.Address == "" {
		cfg.Address = ":53"
	}

	log.Info("Loaded config file", "path", path)

	return cfg, nil
}
