package probe

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps probe kinds to their backends.
type Registry map[Kind]Prober

// DefaultRegistry wires every built-in backend. dnsQuery is the name the
// DNS probe asks for.
func DefaultRegistry(dnsQuery string) Registry {
	return Registry{
		KindTCP:  NewTCPProber(),
		KindICMP: NewICMPProber(),
		KindDNS:  NewDNSProber(dnsQuery),
		KindHTTP: NewHTTPProber(),
	}
}

// Lookup returns the backend for kind.
func (r Registry) Lookup(kind Kind) (Prober, error) {
	p, ok := r[kind]
	if !ok || p == nil {
		return nil, fmt.Errorf("unknown probe kind %q (known: %s)", kind, strings.Join(r.kinds(), ", "))
	}
	return p, nil
}

func (r Registry) kinds() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
