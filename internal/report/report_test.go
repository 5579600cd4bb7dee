package report

import (
	"strings"
	"testing"
	"time"

	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/probe"
	"github.com/iaserrat/netdiag/internal/resolve"
	"github.com/iaserrat/netdiag/internal/traceroute"
)

func fixture() health.Report {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return health.NewReport(health.RunQuick, []probe.Outcome{
		{Name: "Google DNS", Target: "8.8.8.8", Kind: probe.KindDNS, Addr: "8.8.8.8:53", OK: true, Latency: 12345 * time.Microsecond, HasLatency: true, Detail: "dns example.com NOERROR, 1 answers", Attempts: 1, Time: ts},
		{Name: "Google", Target: "google.com", Kind: probe.KindTCP, Addr: "142.250.0.1:443", Reason: probe.ReasonTimeout, Detail: "i/o timeout", Attempts: 2, Time: ts},
		{Name: "Cloudflare", Target: "cloudflare.com", Kind: probe.KindTCP, Reason: probe.ReasonUnreachable, ResolveKind: string(resolve.KindNameNotFound), Detail: "no such host", Attempts: 1, Time: ts},
	}, ts, ts.Add(time.Second))
}

func TestFormatRendersEveryRow(t *testing.T) {
	out := Format(fixture())

	for _, want := range []string{
		"Quick network diagnosis",
		"Google DNS (8.8.8.8)",
		"OK",
		"12.3 ms",
		"8.8.8.8:53",
		"Google (google.com)",
		"TIMEOUT",
		"2 attempts",
		"UNREACHABLE (dns: NAME_NOT_FOUND)",
		"Probes:  1/3 succeeded, 2 failed (1 at name resolution)",
		"Latency: min 12.3 ms, avg 12.3 ms, p95 12.3 ms, max 12.3 ms",
		"Verdict: DEGRADED",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	lines := strings.Split(out, "\n")
	for _, l := range lines {
		if strings.Contains(l, "Google (google.com)") && strings.Contains(l, "ms  ") {
			t.Fatalf("failed row must not show latency: %q", l)
		}
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	r := fixture()
	first := Format(r)
	for i := 0; i < 20; i++ {
		if got := Format(r); got != first {
			t.Fatalf("output changed between calls")
		}
	}
}

func TestFormatEmptyCustomTarget(t *testing.T) {
	r := health.NewReport(health.RunCustom, []probe.Outcome{
		{Kind: probe.KindTCP, Reason: probe.ReasonUnknown, ResolveKind: string(resolve.KindInvalidFormat), Detail: "empty target"},
	}, time.Time{}, time.Time{})

	out := Format(r)
	if !strings.Contains(out, "Custom target test") || !strings.Contains(out, "(empty target)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Latency:") {
		t.Fatalf("latency summary without samples:\n%s", out)
	}
	if !strings.Contains(out, "Verdict: UNHEALTHY") {
		t.Fatalf("missing verdict:\n%s", out)
	}
}

func TestAdvise(t *testing.T) {
	healthy := health.NewReport(health.RunQuick, []probe.Outcome{{OK: true}}, time.Time{}, time.Time{})
	if a := Advise(healthy); !strings.Contains(a.Headline, "Excellent") {
		t.Fatalf("healthy advice = %+v", a)
	}

	dns := Advise(fixture())
	if !strings.Contains(dns.Headline, "DNS") || !strings.Contains(dns.String(), "8.8.8.8") {
		t.Fatalf("dns advice = %+v", dns)
	}
	if !strings.Contains(dns.String(), "connectivity is working") {
		t.Fatalf("partial success should mention working connectivity: %s", dns)
	}

	down := health.NewReport(health.RunCustom, []probe.Outcome{{Reason: probe.ReasonPermissionDenied}}, time.Time{}, time.Time{})
	a := Advise(down)
	if !strings.Contains(a.Headline, "Connectivity") || !strings.Contains(a.String(), "CAP_NET_RAW") {
		t.Fatalf("permission advice = %+v", a)
	}

	invalid := health.NewReport(health.RunCustom, []probe.Outcome{{ResolveKind: string(resolve.KindInvalidFormat)}}, time.Time{}, time.Time{})
	if a := Advise(invalid); !strings.Contains(a.Headline, "Invalid") {
		t.Fatalf("invalid advice = %+v", a)
	}

	missing := health.NewReport(health.RunCustom, []probe.Outcome{{ResolveKind: string(resolve.KindNameNotFound)}}, time.Time{}, time.Time{})
	if a := Advise(missing); !strings.Contains(a.String(), "misspelled") {
		t.Fatalf("custom dns advice = %+v", a)
	}
}

func TestFormatTrace(t *testing.T) {
	out := FormatTrace(traceroute.Result{
		Target: "example.com",
		Hops:   []traceroute.Hop{{TTL: 1, IP: "10.0.0.1", RttMs: 0.5}, {TTL: 2}},
	})
	for _, want := range []string{"Route to example.com", "10.0.0.1", "0.5 ms", "  2  *", "Last responding hop: 1 (10.0.0.1)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}

	if out := FormatTrace(traceroute.Result{Target: "x", Err: "not found"}); !strings.Contains(out, "No hops recorded") || !strings.Contains(out, "traceroute: not found") {
		t.Fatalf("unexpected:\n%s", out)
	}
}
