package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func loopback(t *testing.T, addr string) Endpoint {
	t.Helper()
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		t.Fatalf("parse %s: %v", addr, err)
	}
	return Endpoint{Target: "localhost", Host: ap.Addr().String(), Addr: ap.Addr(), Port: int(ap.Port())}
}

func TestTCPProberSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	timeout := 2 * time.Second
	out := NewTCPProber().Check(context.Background(), loopback(t, ln.Addr().String()), timeout)
	if !out.OK {
		t.Fatalf("want success, got %+v", out)
	}
	if !out.HasLatency || out.Latency < 0 || out.Latency > timeout {
		t.Fatalf("latency out of range: %v", out.Latency)
	}
	if out.Reason != ReasonNone {
		t.Fatalf("want empty reason, got %s", out.Reason)
	}
	if out.Kind != KindTCP || out.Target != "localhost" {
		t.Fatalf("unexpected identity: %+v", out)
	}
}

func TestTCPProberRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	out := NewTCPProber().Check(context.Background(), loopback(t, addr), time.Second)
	if out.OK {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Reason != ReasonUnreachable {
		t.Fatalf("want UNREACHABLE, got %s (%s)", out.Reason, out.Detail)
	}
	if out.HasLatency {
		t.Fatalf("failed probe must not carry latency")
	}
}

func TestTCPProberBlackholeTimesOut(t *testing.T) {
	p := &TCPProber{Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	timeout := 150 * time.Millisecond
	start := time.Now()
	out := p.Check(context.Background(), Endpoint{Target: "blackhole", Addr: netip.MustParseAddr("10.255.255.1"), Port: 81}, timeout)
	elapsed := time.Since(start)

	if out.OK {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Reason != ReasonTimeout {
		t.Fatalf("want TIMEOUT, got %s", out.Reason)
	}
	if elapsed < timeout {
		t.Fatalf("timed out early: %v < %v", elapsed, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Fatalf("timed out far too late: %v", elapsed)
	}
}

func TestProbersRejectNonPositiveTimeout(t *testing.T) {
	ep := Endpoint{Target: "x", Addr: netip.MustParseAddr("127.0.0.1"), Port: 1}
	for kind, p := range DefaultRegistry("") {
		out := p.Check(context.Background(), ep, 0)
		if out.OK || out.Reason != ReasonUnknown {
			t.Fatalf("%s: want UNKNOWN failure, got %+v", kind, out)
		}
		if !strings.Contains(out.Detail, "timeout") {
			t.Fatalf("%s: detail should mention timeout: %q", kind, out.Detail)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ReasonNone},
		{"deadline", context.DeadlineExceeded, ReasonTimeout},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), ReasonTimeout},
		{"os deadline", os.ErrDeadlineExceeded, ReasonTimeout},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, ReasonUnreachable},
		{"host unreachable", syscall.EHOSTUNREACH, ReasonUnreachable},
		{"net unreachable", syscall.ENETUNREACH, ReasonUnreachable},
		{"reset", syscall.ECONNRESET, ReasonUnreachable},
		{"icmp unreachable", ErrDestinationUnreachable, ReasonUnreachable},
		{"eacces", &net.OpError{Op: "listen", Err: os.NewSyscallError("socket", syscall.EACCES)}, ReasonPermissionDenied},
		{"eperm", syscall.EPERM, ReasonPermissionDenied},
		{"permission", os.ErrPermission, ReasonPermissionDenied},
		{"net timeout", &net.DNSError{Err: "i/o timeout", IsTimeout: true}, ReasonTimeout},
		{"other", errors.New("boom"), ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestHTTPProberAnyStatusIsReachable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("want HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer s.Close()

	p := &HTTPProber{Scheme: "http"}
	out := p.Check(context.Background(), loopback(t, s.Listener.Addr().String()), 2*time.Second)
	if !out.OK {
		t.Fatalf("want success, got %+v", out)
	}
	if !strings.Contains(out.Detail, "404") {
		t.Fatalf("detail should carry the status: %q", out.Detail)
	}
}

func TestHTTPProberTimeout(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer s.Close()
	defer close(release)

	p := &HTTPProber{Scheme: "http"}
	timeout := 100 * time.Millisecond
	start := time.Now()
	out := p.Check(context.Background(), loopback(t, s.Listener.Addr().String()), timeout)
	if out.OK {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Reason != ReasonTimeout {
		t.Fatalf("want TIMEOUT, got %s (%s)", out.Reason, out.Detail)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("timed out early: %v", elapsed)
	}
}

func startDNSServer(t *testing.T, rcode int) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}

	server := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetRcode(r, rcode)
			if rcode == dns.RcodeSuccess {
				rr, _ := dns.NewRR(r.Question[0].Name + " 60 IN A 192.0.2.10")
				m.Answer = append(m.Answer, rr)
			}
			_ = w.WriteMsg(m)
		}),
	}
	started := make(chan struct{})
	server.NotifyStartedFunc = func() { close(started) }
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSProberReply(t *testing.T) {
	addr := startDNSServer(t, dns.RcodeSuccess)

	out := NewDNSProber("probe.test").Check(context.Background(), loopback(t, addr), 2*time.Second)
	if !out.OK {
		t.Fatalf("want success, got %+v", out)
	}
	if !strings.Contains(out.Detail, "NOERROR") || !strings.Contains(out.Detail, "1 answers") {
		t.Fatalf("unexpected detail: %q", out.Detail)
	}
}

func TestDNSProberServfailStillReachable(t *testing.T) {
	addr := startDNSServer(t, dns.RcodeServerFailure)

	out := NewDNSProber("probe.test").Check(context.Background(), loopback(t, addr), 2*time.Second)
	if !out.OK {
		t.Fatalf("a SERVFAIL reply still proves reachability, got %+v", out)
	}
	if !strings.Contains(out.Detail, "SERVFAIL") {
		t.Fatalf("unexpected detail: %q", out.Detail)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry("example.com")
	for _, k := range []Kind{KindTCP, KindICMP, KindDNS, KindHTTP} {
		if _, err := r.Lookup(k); err != nil {
			t.Fatalf("lookup %s: %v", k, err)
		}
	}
	if _, err := r.Lookup("snmp"); err == nil || !strings.Contains(err.Error(), "dns, http, icmp, tcp") {
		t.Fatalf("want unknown kind error listing known kinds, got %v", err)
	}
}

func TestOutcomeLatencyMs(t *testing.T) {
	o := Outcome{Latency: 1500 * time.Microsecond, HasLatency: true}
	ms, ok := o.LatencyMs()
	if !ok || ms != 1.5 {
		t.Fatalf("want 1.5ms, got %v %v", ms, ok)
	}
	if _, ok := (Outcome{}).LatencyMs(); ok {
		t.Fatalf("failed outcome must not report latency")
	}
}
