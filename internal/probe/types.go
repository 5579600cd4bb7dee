package probe

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Kind names a probe backend.
type Kind string

const (
	KindTCP  Kind = "tcp"
	KindICMP Kind = "icmp"
	KindDNS  Kind = "dns"
	KindHTTP Kind = "http"
)

// Reason is the failure taxonomy for a probe outcome.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonTimeout          Reason = "TIMEOUT"
	ReasonUnreachable      Reason = "UNREACHABLE"
	ReasonPermissionDenied Reason = "PERMISSION_DENIED"
	ReasonUnknown          Reason = "UNKNOWN"
)

// Endpoint is a resolved address for a target.
type Endpoint struct {
	Target string
	Host   string
	Addr   netip.Addr
	Port   int
}

// WithPort returns a copy of e using port.
func (e Endpoint) WithPort(port int) Endpoint {
	e.Port = port
	return e
}

func (e Endpoint) String() string {
	if e.Port == 0 {
		return e.Addr.String()
	}
	return net.JoinHostPort(e.Addr.String(), strconv.Itoa(e.Port))
}

// Outcome is the immutable result of a single probe attempt.
type Outcome struct {
	Name        string
	Target      string
	Kind        Kind
	Addr        string
	OK          bool
	Latency     time.Duration
	HasLatency  bool
	Reason      Reason
	ResolveKind string
	Detail      string
	Attempts    int
	Time        time.Time
}

// LatencyMs reports latency in milliseconds, or false when the probe failed.
func (o Outcome) LatencyMs() (float64, bool) {
	if !o.HasLatency {
		return 0, false
	}
	return float64(o.Latency.Microseconds()) / 1000.0, true
}

// Prober performs one reachability check. Implementations never retry.
type Prober interface {
	Check(ctx context.Context, ep Endpoint, timeout time.Duration) Outcome
}

func success(ep Endpoint, kind Kind, elapsed time.Duration, detail string) Outcome {
	return Outcome{
		Target:     ep.Target,
		Kind:       kind,
		Addr:       ep.String(),
		OK:         true,
		Latency:    elapsed,
		HasLatency: true,
		Detail:     detail,
		Attempts:   1,
		Time:       time.Now().UTC(),
	}
}

func failure(ep Endpoint, kind Kind, reason Reason, detail string) Outcome {
	return Outcome{
		Target:   ep.Target,
		Kind:     kind,
		Addr:     ep.String(),
		Reason:   reason,
		Detail:   detail,
		Attempts: 1,
		Time:     time.Now().UTC(),
	}
}

func invalidTimeout(ep Endpoint, kind Kind, timeout time.Duration) Outcome {
	return failure(ep, kind, ReasonUnknown, "timeout must be > 0, got "+timeout.String())
}
