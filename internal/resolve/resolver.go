// Package resolve turns operator supplied targets into probe endpoints.
//
// Resolution failures are reported as *Error values with a Kind, kept
// apart from connectivity failures so a report can tell a DNS problem from
// a routing one. When a name maps to several addresses the first one
// returned by the underlying service wins.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/iaserrat/netdiag/internal/probe"
)

// Kind classifies a resolution failure.
type Kind string

const (
	KindNameNotFound  Kind = "NAME_NOT_FOUND"
	KindInvalidFormat Kind = "INVALID_FORMAT"
	KindTimeout       Kind = "TIMEOUT"
)

const (
	maxHostnameLen = 255
	DefaultTimeout = 5 * time.Second
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)

// Error is returned for every failed resolution.
type Error struct {
	Kind   Kind
	Target string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %q: %s", e.Target, e.Kind)
	}
	return fmt.Sprintf("resolve %q: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the resolution kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind, true
	}
	return "", false
}

// Resolver maps a target string to an endpoint.
type Resolver interface {
	Resolve(ctx context.Context, target string) (probe.Endpoint, error)
}

// parseTarget handles the checks shared by every backend. It returns a
// complete endpoint for IP literals and the normalised host name otherwise.
func parseTarget(target string) (probe.Endpoint, string, bool, error) {
	host := strings.TrimSpace(target)
	if host == "" {
		return probe.Endpoint{}, "", false, &Error{Kind: KindInvalidFormat, Target: target, Err: errors.New("empty target")}
	}

	literal := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(literal); err == nil {
		return probe.Endpoint{Target: target, Host: literal, Addr: addr.Unmap()}, literal, true, nil
	}

	// ASCII letters, digits, dots and hyphens only. Underscore labels and
	// unencoded IDNs are rejected here rather than sent to the resolver.
	if len(host) > maxHostnameLen || !hostnamePattern.MatchString(host) {
		return probe.Endpoint{}, "", false, &Error{Kind: KindInvalidFormat, Target: target, Err: errors.New("not a host name or IP address")}
	}

	return probe.Endpoint{}, strings.TrimSuffix(host, "."), false, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// IPLookup matches (*net.Resolver).LookupNetIP.
type IPLookup interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// SystemResolver uses the operating system resolver configuration.
type SystemResolver struct {
	Lookup  IPLookup
	Network string
	Timeout time.Duration
}

func NewSystemResolver(network string, timeout time.Duration) *SystemResolver {
	if network == "" {
		network = "ip4"
	}
	return &SystemResolver{Lookup: net.DefaultResolver, Network: network, Timeout: timeout}
}

func (r *SystemResolver) Resolve(ctx context.Context, target string) (probe.Endpoint, error) {
	ep, host, done, err := parseTarget(target)
	if err != nil || done {
		return ep, err
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	addrs, err := r.Lookup.LookupNetIP(ctx, r.Network, host)
	if err != nil {
		return probe.Endpoint{}, &Error{Kind: classifyLookup(ctx, err), Target: target, Err: err}
	}
	if len(addrs) == 0 {
		return probe.Endpoint{}, &Error{Kind: KindNameNotFound, Target: target, Err: errors.New("no addresses returned")}
	}

	return probe.Endpoint{Target: target, Host: host, Addr: addrs[0].Unmap()}, nil
}

// classifyLookup maps system resolver errors:
//
//	DNSError.IsNotFound                         NAME_NOT_FOUND
//	DNSError.IsTimeout, IsTemporary, deadline   TIMEOUT
//	anything else                               NAME_NOT_FOUND
func classifyLookup(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return KindNameNotFound
		case dnsErr.IsTimeout, dnsErr.IsTemporary:
			return KindTimeout
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindNameNotFound
}
