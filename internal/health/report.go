package health

import (
	"sort"
	"time"

	"github.com/iaserrat/netdiag/internal/probe"
)

// Verdict is the overall classification of a run.
type Verdict string

const (
	VerdictHealthy   Verdict = "healthy"
	VerdictDegraded  Verdict = "degraded"
	VerdictUnhealthy Verdict = "unhealthy"
)

// RunKind says which operation produced a report.
type RunKind string

const (
	RunQuick  RunKind = "quick"
	RunCustom RunKind = "custom"
)

type Counts struct {
	Total              int
	Succeeded          int
	Failed             int
	ResolutionFailures int
}

// LatencyStats summarises successful outcomes only.
type LatencyStats struct {
	Samples int
	Min     time.Duration
	Avg     time.Duration
	P95     time.Duration
	Max     time.Duration
}

// Report is the result of one diagnostic run. Build it with NewReport;
// the verdict, counts and latency are derived from Outcomes and nothing else.
type Report struct {
	Kind       RunKind
	Outcomes   []probe.Outcome
	Verdict    Verdict
	Counts     Counts
	Latency    LatencyStats
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewReport(kind RunKind, outcomes []probe.Outcome, startedAt, finishedAt time.Time) Report {
	owned := append([]probe.Outcome(nil), outcomes...)
	return Report{
		Kind:       kind,
		Outcomes:   owned,
		Verdict:    Derive(owned),
		Counts:     Count(owned),
		Latency:    computeLatency(owned),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

// Derive classifies a set of outcomes: healthy when every probe succeeded,
// unhealthy when none did, degraded for anything strictly in between.
// An empty set is unhealthy.
func Derive(outcomes []probe.Outcome) Verdict {
	ok := 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		}
	}

	switch {
	case len(outcomes) == 0 || ok == 0:
		return VerdictUnhealthy
	case ok == len(outcomes):
		return VerdictHealthy
	default:
		return VerdictDegraded
	}
}

func Count(outcomes []probe.Outcome) Counts {
	c := Counts{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.OK {
			c.Succeeded++
			continue
		}
		c.Failed++
		if o.ResolveKind != "" {
			c.ResolutionFailures++
		}
	}
	return c
}

func computeLatency(outcomes []probe.Outcome) LatencyStats {
	var samples []time.Duration
	var sum time.Duration
	for _, o := range outcomes {
		if o.OK && o.HasLatency {
			samples = append(samples, o.Latency)
			sum += o.Latency
		}
	}
	if len(samples) == 0 {
		return LatencyStats{}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := int(float64(len(samples)-1) * 0.95)

	return LatencyStats{
		Samples: len(samples),
		Min:     samples[0],
		Avg:     sum / time.Duration(len(samples)),
		P95:     samples[idx],
		Max:     samples[len(samples)-1],
	}
}
