// Package report renders health reports as plain text. Everything here is
// a pure function of its input.
package report

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/probe"
	"github.com/iaserrat/netdiag/internal/resolve"
)

const rule = "----------------------------------------"

var titles = map[health.RunKind]string{
	health.RunQuick:  "Quick network diagnosis",
	health.RunCustom: "Custom target test",
}

// Format renders one row per outcome followed by counts, latency and the
// verdict.
func Format(r health.Report) string {
	var b strings.Builder

	title := titles[r.Kind]
	if title == "" {
		title = "Diagnosis"
	}
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for i, o := range r.Outcomes {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\t%s\t%s\n", i+1, label(o), status(o), latency(o), cause(o), detail(o))
	}
	_ = tw.Flush()

	b.WriteString(rule + "\n")
	c := r.Counts
	fmt.Fprintf(&b, "Probes:  %d/%d succeeded, %d failed", c.Succeeded, c.Total, c.Failed)
	if c.ResolutionFailures > 0 {
		fmt.Fprintf(&b, " (%d at name resolution)", c.ResolutionFailures)
	}
	b.WriteString("\n")

	if l := r.Latency; l.Samples > 0 {
		fmt.Fprintf(&b, "Latency: min %s, avg %s, p95 %s, max %s\n", ms(l.Min), ms(l.Avg), ms(l.P95), ms(l.Max))
	}
	fmt.Fprintf(&b, "Verdict: %s\n", strings.ToUpper(string(r.Verdict)))

	return b.String()
}

func label(o probe.Outcome) string {
	name := strings.TrimSpace(o.Name)
	target := strings.TrimSpace(o.Target)
	switch {
	case name == "" && target == "":
		return "(empty target)"
	case name == "" || name == target:
		return target
	case target == "":
		return name
	}
	return fmt.Sprintf("%s (%s)", name, target)
}

func status(o probe.Outcome) string {
	if o.OK {
		return "OK"
	}
	return "FAIL"
}

func latency(o probe.Outcome) string {
	if !o.OK || !o.HasLatency {
		return "-"
	}
	return ms(o.Latency)
}

func cause(o probe.Outcome) string {
	if o.OK {
		return "-"
	}
	reason := string(o.Reason)
	if reason == "" {
		reason = string(probe.ReasonUnknown)
	}
	if o.ResolveKind != "" {
		return fmt.Sprintf("%s (dns: %s)", reason, o.ResolveKind)
	}
	return reason
}

func detail(o probe.Outcome) string {
	parts := make([]string, 0, 3)
	if o.Kind != "" {
		parts = append(parts, string(o.Kind))
	}
	if o.Addr != "" && o.ResolveKind == "" {
		parts = append(parts, o.Addr)
	}
	if o.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("%d attempts", o.Attempts))
	}
	out := strings.Join(parts, " ")
	if o.Detail != "" {
		if out != "" {
			out += ": "
		}
		out += o.Detail
	}
	return out
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1f ms", float64(d.Microseconds())/1000.0)
}

// Advice is the operator facing interpretation of a report.
type Advice struct {
	Verdict  health.Verdict
	Headline string
	Hints    []string
}

// Advise turns a report into a headline and follow-up hints. Name
// resolution problems take priority over connectivity ones.
func Advise(r health.Report) Advice {
	a := Advice{Verdict: r.Verdict}

	if r.Verdict == health.VerdictHealthy {
		a.Headline = "NETWORK STATUS: Excellent"
		a.Hints = []string{"All systems operational - no issues detected"}
		return a
	}

	var invalid, permission bool
	for _, o := range r.Outcomes {
		if o.ResolveKind == string(resolve.KindInvalidFormat) {
			invalid = true
		}
		if o.Reason == probe.ReasonPermissionDenied {
			permission = true
		}
	}

	switch {
	case invalid:
		a.Headline = "NETWORK STATUS: Invalid target"
		a.Hints = []string{"Enter a host name such as example.com or an IP address such as 1.1.1.1"}
	case r.Counts.ResolutionFailures > 0 && r.Kind == health.RunCustom:
		a.Headline = "NETWORK STATUS: DNS issues"
		a.Hints = []string{"Resolution failed - probably an inactive or misspelled site"}
	case r.Counts.ResolutionFailures > 0:
		a.Headline = "NETWORK STATUS: DNS issues"
		if r.Counts.Succeeded > 0 {
			a.Hints = append(a.Hints, "Internet connectivity is working but DNS is failing")
		}
		a.Hints = append(a.Hints, "Try using Google DNS (8.8.8.8) or Cloudflare (1.1.1.1)")
	default:
		a.Headline = "NETWORK STATUS: Connectivity issues"
		if r.Verdict == health.VerdictDegraded {
			a.Hints = append(a.Hints, "Some targets are reachable; the failing ones may be blocked or down")
		}
		a.Hints = append(a.Hints, "Check your router, cables, or contact your ISP")
	}

	if permission {
		a.Hints = append(a.Hints, "ICMP probes need root or CAP_NET_RAW; switch the probe to tcp if you cannot grant it")
	}
	return a
}

// String renders the advice as plain text.
func (a Advice) String() string {
	var b strings.Builder
	b.WriteString(a.Headline + "\n")
	for _, h := range a.Hints {
		b.WriteString("   " + h + "\n")
	}
	return b.String()
}
