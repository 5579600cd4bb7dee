// Package traceroute lists the hops towards a target by running the system
// traceroute binary. It is used to explain a failed custom check.
package traceroute

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MaxHops int
	Timeout time.Duration
	Binary  string
}

type Hop struct {
	TTL   int
	IP    string
	RttMs float64
}

// Responded reports whether any router answered for this TTL.
func (h Hop) Responded() bool { return h.IP != "" }

type Result struct {
	Target   string
	Hops     []Hop
	PathHash string
	Err      string
}

// LastResponder returns the deepest hop that answered.
func (r Result) LastResponder() (Hop, bool) {
	for i := len(r.Hops) - 1; i >= 0; i-- {
		if r.Hops[i].Responded() {
			return r.Hops[i], true
		}
	}
	return Hop{}, false
}

// CommandFunc runs the traceroute binary and returns its combined output.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tracer runs traceroute with a fixed configuration.
type Tracer struct {
	cfg Config
	cmd CommandFunc
}

func New(cfg Config) *Tracer {
	if cfg.Binary == "" {
		cfg.Binary = "traceroute"
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Tracer{cfg: cfg, cmd: combinedOutput}
}

// Budget is the longest a single Run may take.
func (t *Tracer) Budget() time.Duration {
	return time.Duration(t.cfg.MaxHops)*t.cfg.Timeout + 2*time.Second
}

func (t *Tracer) Run(ctx context.Context, target string) Result {
	ctx, cancel := context.WithTimeout(ctx, t.Budget())
	defer cancel()

	wait := int(t.cfg.Timeout.Seconds())
	if wait < 1 {
		wait = 1
	}
	args := []string{"-n", "-m", strconv.Itoa(t.cfg.MaxHops), "-w", strconv.Itoa(wait), target}

	out, err := t.cmd(ctx, t.cfg.Binary, args...)
	res := Result{Target: target}
	if err != nil {
		res.Err = err.Error()
		if len(out) == 0 {
			return res
		}
	}

	res.Hops = parseOutput(string(out))
	res.PathHash = hashPath(res.Hops)
	return res
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var hopLine = regexp.MustCompile(`^\s*(\d+)\s+(.+)$`)

func parseOutput(out string) []Hop {
	scanner := bufio.NewScanner(strings.NewReader(out))
	var hops []Hop

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "traceroute") {
			continue
		}

		matches := hopLine.FindStringSubmatch(line)
		if len(matches) < 3 {
			continue
		}

		ttl, _ := strconv.Atoi(matches[1])
		ip, rtt := parseHop(matches[2])

		hops = append(hops, Hop{TTL: ttl, IP: ip, RttMs: rtt})
	}

	return hops
}

// parseHop reads the first responding address and its first RTT. Partial
// answers such as "10.0.0.1  1.2 ms  *  *" still count as a response.
func parseHop(rest string) (string, float64) {
	fields := strings.Fields(rest)
	ip := ""
	for _, f := range fields {
		if f != "*" {
			ip = f
			break
		}
	}
	if ip == "" {
		return "", 0
	}

	var rtt float64
	for i := 1; i < len(fields); i++ {
		if fields[i] == "ms" {
			rtt, _ = strconv.ParseFloat(fields[i-1], 64)
			break
		}
	}

	return ip, rtt
}

func hashPath(hops []Hop) string {
	var sb strings.Builder
	for _, h := range hops {
		sb.WriteString(fmt.Sprintf("%d:%s|", h.TTL, h.IP))
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
