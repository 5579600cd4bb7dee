package logging

import (
	"time"

	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/probe"
	"github.com/iaserrat/netdiag/internal/traceroute"
)

type BaseEvent struct {
	TSUTC         string `json:"ts_utc"`
	TSUnixMS      int64  `json:"ts_unix_ms"`
	Seq           uint64 `json:"seq"`
	Type          string `json:"type"`
	Target        string `json:"target"`
	RunID         string `json:"run_id"`
	SchemaVersion int    `json:"schema_version"`
	ToolName      string `json:"tool_name"`
	ToolVersion   string `json:"tool_version"`
	HostID        string `json:"host_id"`
	ClockSource   string `json:"clock_source"`
}

func (b *BaseEvent) Base() *BaseEvent {
	return b
}

type ProbeResult struct {
	BaseEvent
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Addr        string    `json:"addr,omitempty"`
	OK          bool      `json:"ok"`
	LatencyMs   *float64  `json:"latency_ms"`
	Reason      string    `json:"reason,omitempty"`
	ResolveKind string    `json:"resolve_kind,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Attempts    int       `json:"attempts"`
	CheckedAt   time.Time `json:"checked_at"`
}

type ReportSummary struct {
	BaseEvent
	Kind               string    `json:"kind"`
	Verdict            string    `json:"verdict"`
	Total              int       `json:"total"`
	Succeeded          int       `json:"succeeded"`
	Failed             int       `json:"failed"`
	ResolutionFailures int       `json:"resolution_failures"`
	RttAvgMs           *float64  `json:"rtt_avg_ms"`
	RttP95Ms           *float64  `json:"rtt_p95_ms"`
	StartTS            time.Time `json:"start_ts"`
	EndTS              time.Time `json:"end_ts"`
	DurationMs         int64     `json:"duration_ms"`
}

type TracerouteResult struct {
	BaseEvent
	Hops     []TracerouteHop `json:"hops"`
	PathHash string          `json:"path_hash"`
	Err      string          `json:"err,omitempty"`
}

type TracerouteHop struct {
	TTL   int      `json:"ttl"`
	IP    string   `json:"ip"`
	RttMs *float64 `json:"rtt_ms"`
}

// ReportRecords flattens a report into one probe_result per outcome
// followed by a report_summary.
func ReportRecords(runID string, r health.Report) []Emittable {
	out := make([]Emittable, 0, len(r.Outcomes)+1)
	for _, o := range r.Outcomes {
		out = append(out, probeRecord(runID, o))
	}

	summary := &ReportSummary{
		BaseEvent: BaseEvent{
			Type:   "report_summary",
			Target: string(r.Kind),
			RunID:  runID,
		},
		Kind:               string(r.Kind),
		Verdict:            string(r.Verdict),
		Total:              r.Counts.Total,
		Succeeded:          r.Counts.Succeeded,
		Failed:             r.Counts.Failed,
		ResolutionFailures: r.Counts.ResolutionFailures,
		StartTS:            r.StartedAt,
		EndTS:              r.FinishedAt,
		DurationMs:         r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
	if r.Latency.Samples > 0 {
		summary.RttAvgMs = msPtr(r.Latency.Avg)
		summary.RttP95Ms = msPtr(r.Latency.P95)
	}

	return append(out, summary)
}

func probeRecord(runID string, o probe.Outcome) *ProbeResult {
	rec := &ProbeResult{
		BaseEvent: BaseEvent{
			Type:   "probe_result",
			Target: o.Target,
			RunID:  runID,
		},
		Name:        o.Name,
		Kind:        string(o.Kind),
		Addr:        o.Addr,
		OK:          o.OK,
		Reason:      string(o.Reason),
		ResolveKind: o.ResolveKind,
		Detail:      o.Detail,
		Attempts:    o.Attempts,
		CheckedAt:   o.Time,
	}
	if ms, ok := o.LatencyMs(); ok {
		rec.LatencyMs = &ms
	}
	return rec
}

// TraceRecord converts a traceroute result.
func TraceRecord(runID string, res traceroute.Result) *TracerouteResult {
	hops := make([]TracerouteHop, 0, len(res.Hops))
	for _, h := range res.Hops {
		var rtt *float64
		if h.Responded() {
			val := h.RttMs
			rtt = &val
		}
		hops = append(hops, TracerouteHop{TTL: h.TTL, IP: h.IP, RttMs: rtt})
	}

	return &TracerouteResult{
		BaseEvent: BaseEvent{
			Type:   "traceroute_result",
			Target: res.Target,
			RunID:  runID,
		},
		Hops:     hops,
		PathHash: res.PathHash,
		Err:      res.Err,
	}
}

func msPtr(d time.Duration) *float64 {
	v := float64(d.Microseconds()) / 1000.0
	return &v
}
