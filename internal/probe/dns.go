package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// DNSProber sends one A query to the endpoint acting as a nameserver.
// Any reply counts as reachable; the rcode is recorded in the detail.
type DNSProber struct {
	Query string
	Net   string
}

func NewDNSProber(query string) *DNSProber {
	if query == "" {
		query = "example.com"
	}
	return &DNSProber{Query: query, Net: "udp"}
}

func (p *DNSProber) Check(ctx context.Context, ep Endpoint, timeout time.Duration) Outcome {
	if timeout <= 0 {
		return invalidTimeout(ep, KindDNS, timeout)
	}
	if ep.Port == 0 {
		ep = ep.WithPort(53)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &dns.Client{Net: p.Net, Timeout: timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(p.Query), dns.TypeA)

	resp, rtt, err := client.ExchangeContext(ctx, msg, ep.String())
	if err != nil {
		return failure(ep, KindDNS, Classify(err), fmt.Sprintf("dns query %s: %v", p.Query, err))
	}

	return success(ep, KindDNS, rtt, fmt.Sprintf("dns %s %s, %d answers", p.Query, dns.RcodeToString[resp.Rcode], len(resp.Answer)))
}
