// Package endpoint parses the "<protocol>/<address>[?<k1=v1;...>][#<cfg>]"
// locator syntax links are configured with. Protocol and address are the
// only fields the core interprets; metadata and config are reserved for
// platform shims to consume as they see fit.
package endpoint

import (
	"strings"

	"github.com/zenohgo/zenoh08/core"
)

// Endpoint is a parsed locator: a protocol name (e.g. "tcp", "udp", "ws"), an
// address in whatever form that protocol expects, and two reserved,
// shim-interpreted extensions.
type Endpoint struct {
	Protocol string
	Address  string
	// Metadata holds the "?k1=v1;k2=v2" entries, or nil if none were given.
	Metadata map[string]string
	// Config holds the raw "#cfg" suffix, or "" if none was given.
	Config    string
	HasConfig bool
}

// Parse reads s as "<protocol>/<address>[?<k1=v1;...>][#<cfg>]". Protocol and
// address must be non-empty; metadata entries must each contain exactly one
// "=". Malformed input returns InvalidArgument.
func Parse(s string) (*Endpoint, *core.Error) {
	slash := strings.IndexByte(s, '/')
	if slash <= 0 {
		return nil, core.NewError(core.InvalidArgument, "endpoint: missing protocol/address separator")
	}
	protocol := s[:slash]
	rest := s[slash+1:]

	e := &Endpoint{Protocol: protocol}

	if hash := strings.IndexByte(rest, '#'); hash >= 0 {
		e.Config = rest[hash+1:]
		e.HasConfig = true
		rest = rest[:hash]
	}

	if q := strings.IndexByte(rest, '?'); q >= 0 {
		meta, err := parseMetadata(rest[q+1:])
		if err != nil {
			return nil, err
		}
		e.Metadata = meta
		rest = rest[:q]
	}

	if rest == "" {
		return nil, core.NewError(core.InvalidArgument, "endpoint: empty address")
	}
	e.Address = rest

	return e, nil
}

func parseMetadata(s string) (map[string]string, *core.Error) {
	if s == "" {
		return nil, core.NewError(core.InvalidArgument, "endpoint: empty metadata section")
	}
	meta := make(map[string]string)
	for _, entry := range strings.Split(s, ";") {
		eq := strings.IndexByte(entry, '=')
		if eq <= 0 {
			return nil, core.NewError(core.InvalidArgument, "endpoint: malformed metadata entry")
		}
		meta[entry[:eq]] = entry[eq+1:]
	}
	return meta, nil
}

// RequireNoExtensions rejects an Endpoint carrying metadata or config, for
// link shims that implement neither.
func RequireNoExtensions(e *Endpoint) *core.Error {
	if e.Metadata != nil {
		return core.NewError(core.InvalidArgument, "endpoint: metadata not supported")
	}
	if e.HasConfig {
		return core.NewError(core.InvalidArgument, "endpoint: config not supported")
	}
	return nil
}

// String reconstructs the locator form of e.
func (e *Endpoint) String() string {
	var b strings.Builder
	b.WriteString(e.Protocol)
	b.WriteByte('/')
	b.WriteString(e.Address)
	if e.Metadata != nil {
		b.WriteByte('?')
		first := true
		for k, v := range e.Metadata {
			if !first {
				b.WriteByte(';')
			}
			first = false
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	if e.HasConfig {
		b.WriteByte('#')
		b.WriteString(e.Config)
	}
	return b.String()
}
