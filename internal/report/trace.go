package report

import (
	"fmt"
	"strings"

	"github.com/iaserrat/netdiag/internal/traceroute"
)

// FormatTrace renders traceroute hops for display under a failed check.
func FormatTrace(res traceroute.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Route to %s\n", res.Target)

	for _, h := range res.Hops {
		if !h.Responded() {
			fmt.Fprintf(&b, "%3d  *\n", h.TTL)
			continue
		}
		fmt.Fprintf(&b, "%3d  %-40s %.1f ms\n", h.TTL, h.IP, h.RttMs)
	}

	switch last, ok := res.LastResponder(); {
	case len(res.Hops) == 0:
		b.WriteString("No hops recorded\n")
	case ok:
		fmt.Fprintf(&b, "Last responding hop: %d (%s)\n", last.TTL, last.IP)
	default:
		b.WriteString("No hop responded\n")
	}
	if res.Err != "" {
		fmt.Fprintf(&b, "traceroute: %s\n", res.Err)
	}
	return b.String()
}
