package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/iaserrat/netdiag/internal/probe"
)

// DNSResolver queries one nameserver directly instead of going through
// the system configuration, which separates local resolver trouble from
// upstream trouble.
type DNSResolver struct {
	Server  string
	Network string
	Timeout time.Duration
	Net     string
}

func NewDNSResolver(server, network string, timeout time.Duration) *DNSResolver {
	if network == "" {
		network = "ip4"
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{Server: server, Network: network, Timeout: timeout, Net: "udp"}
}

func (r *DNSResolver) Resolve(ctx context.Context, target string) (probe.Endpoint, error) {
	ep, host, done, err := parseTarget(target)
	if err != nil || done {
		return ep, err
	}

	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	var last error
	for _, qtype := range r.queryTypes() {
		addr, err := r.query(ctx, host, qtype)
		if err == nil {
			return probe.Endpoint{Target: target, Host: host, Addr: addr}, nil
		}
		last = err

		var rerr *Error
		if errors.As(err, &rerr) && rerr.Kind == KindTimeout {
			break
		}
	}

	var rerr *Error
	if errors.As(last, &rerr) {
		rerr.Target = target
		return probe.Endpoint{}, rerr
	}
	return probe.Endpoint{}, &Error{Kind: KindNameNotFound, Target: target, Err: last}
}

func (r *DNSResolver) queryTypes() []uint16 {
	switch r.Network {
	case "ip6":
		return []uint16{dns.TypeAAAA}
	case "ip":
		return []uint16{dns.TypeA, dns.TypeAAAA}
	default:
		return []uint16{dns.TypeA}
	}
}

// query maps nameserver answers:
//
//	NXDOMAIN, NOERROR without a usable record   NAME_NOT_FOUND
//	SERVFAIL, transport errors, deadline        TIMEOUT
//	any other rcode                             NAME_NOT_FOUND
func (r *DNSResolver) query(ctx context.Context, host string, qtype uint16) (netip.Addr, error) {
	client := &dns.Client{Net: r.Net, Timeout: r.Timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, r.Server)
	if err != nil {
		return netip.Addr{}, &Error{Kind: KindTimeout, Err: fmt.Errorf("query %s: %w", r.Server, err)}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeServerFailure:
		return netip.Addr{}, &Error{Kind: KindTimeout, Err: fmt.Errorf("%s answered SERVFAIL", r.Server)}
	default:
		return netip.Addr{}, &Error{Kind: KindNameNotFound, Err: fmt.Errorf("%s answered %s", r.Server, dns.RcodeToString[resp.Rcode])}
	}

	for _, rr := range resp.Answer {
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			ip = rec.A
		case *dns.AAAA:
			ip = rec.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			return addr.Unmap(), nil
		}
	}

	return netip.Addr{}, &Error{Kind: KindNameNotFound, Err: fmt.Errorf("no %s record for %s", dns.TypeToString[qtype], host)}
}
