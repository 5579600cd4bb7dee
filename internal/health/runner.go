// Package health runs probe batteries and classifies the results.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iaserrat/netdiag/internal/probe"
	"github.com/iaserrat/netdiag/internal/resolve"
)

// Target is one entry of a battery.
type Target struct {
	Name string
	Host string
	Kind probe.Kind
	Port int
}

// Config fixes everything a run depends on. Custom supplies the probe
// kind and port used for operator supplied targets; its Name and Host are
// ignored.
type Config struct {
	Battery  []Target
	Custom   Target
	Timeout  time.Duration
	Attempts int
}

type Runner struct {
	cfg      Config
	resolver resolve.Resolver
	probers  probe.Registry
	log      *zap.Logger
}

type Option func(*Runner)

func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner validates the battery up front. A returned error means no run
// can be performed at all.
func NewRunner(cfg Config, resolver resolve.Resolver, probers probe.Registry, opts ...Option) (*Runner, error) {
	if resolver == nil {
		return nil, errors.New("health runner: resolver is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("health runner: timeout must be > 0, got %s", cfg.Timeout)
	}
	if len(cfg.Battery) == 0 {
		return nil, errors.New("health runner: battery must not be empty")
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	for i, t := range cfg.Battery {
		if strings.TrimSpace(t.Host) == "" {
			return nil, fmt.Errorf("health runner: battery[%d] has no host", i)
		}
		if _, err := probers.Lookup(t.Kind); err != nil {
			return nil, fmt.Errorf("health runner: battery[%d]: %w", i, err)
		}
	}
	if _, err := probers.Lookup(cfg.Custom.Kind); err != nil {
		return nil, fmt.Errorf("health runner: custom: %w", err)
	}

	cfg.Battery = append([]Target(nil), cfg.Battery...)
	r := &Runner{cfg: cfg, resolver: resolver, probers: probers, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Battery returns the configured battery in probe order.
func (r *Runner) Battery() []Target {
	return append([]Target(nil), r.cfg.Battery...)
}

// RunQuickCheck probes every battery target once, in order.
func (r *Runner) RunQuickCheck(ctx context.Context) (Report, error) {
	return r.run(ctx, RunQuick, r.cfg.Battery)
}

// RunCustomCheck probes a single operator supplied target. An unusable
// target string is reported as an INVALID_FORMAT outcome, not an error.
func (r *Runner) RunCustomCheck(ctx context.Context, target string) (Report, error) {
	t := r.cfg.Custom
	t.Name = strings.TrimSpace(target)
	t.Host = target
	return r.run(ctx, RunCustom, []Target{t})
}

func (r *Runner) run(ctx context.Context, kind RunKind, targets []Target) (Report, error) {
	if len(targets) == 0 {
		return Report{}, errors.New("health runner: nothing to probe")
	}

	started := time.Now().UTC()
	outcomes := make([]probe.Outcome, 0, len(targets))
	for _, t := range targets {
		out, err := r.check(ctx, t)
		if err != nil {
			return Report{}, err
		}
		outcomes = append(outcomes, out)
	}

	report := NewReport(kind, outcomes, started, time.Now().UTC())
	r.log.Info("run_complete",
		zap.String("kind", string(kind)),
		zap.String("verdict", string(report.Verdict)),
		zap.Int("succeeded", report.Counts.Succeeded),
		zap.Int("total", report.Counts.Total),
	)
	return report, nil
}

// check resolves and probes one target, retrying up to cfg.Attempts times.
// Resolution failures other than TIMEOUT are final.
func (r *Runner) check(ctx context.Context, t Target) (probe.Outcome, error) {
	prober, err := r.probers.Lookup(t.Kind)
	if err != nil {
		return probe.Outcome{}, fmt.Errorf("health runner: %s: %w", t.Name, err)
	}

	var out probe.Outcome
	attempts := 0
	for attempts < r.cfg.Attempts {
		attempts++

		ep, err := r.resolver.Resolve(ctx, t.Host)
		if err != nil {
			out = resolutionOutcome(t, err)
			if kind, _ := resolve.KindOf(err); kind != resolve.KindTimeout {
				break
			}
			continue
		}

		if t.Port != 0 {
			ep = ep.WithPort(t.Port)
		}
		out = prober.Check(ctx, ep, r.cfg.Timeout)
		if out.OK {
			break
		}
	}

	out.Name = t.Name
	out.Target = t.Host
	out.Kind = t.Kind
	out.Attempts = attempts

	r.log.Debug("probe",
		zap.String("name", out.Name),
		zap.String("target", out.Target),
		zap.String("kind", string(out.Kind)),
		zap.String("addr", out.Addr),
		zap.Bool("ok", out.OK),
		zap.Duration("latency", out.Latency),
		zap.String("reason", string(out.Reason)),
		zap.String("resolve_kind", out.ResolveKind),
		zap.Int("attempts", out.Attempts),
	)
	return out, nil
}

// resolutionOutcome records a failed resolution using the probe taxonomy:
// TIMEOUT stays TIMEOUT, NAME_NOT_FOUND becomes UNREACHABLE and
// INVALID_FORMAT becomes UNKNOWN. ResolveKind keeps the original cause.
func resolutionOutcome(t Target, err error) probe.Outcome {
	kind, _ := resolve.KindOf(err)

	reason := probe.ReasonUnknown
	switch kind {
	case resolve.KindTimeout:
		reason = probe.ReasonTimeout
	case resolve.KindNameNotFound:
		reason = probe.ReasonUnreachable
	}

	return probe.Outcome{
		Name:        t.Name,
		Target:      t.Host,
		Kind:        t.Kind,
		Reason:      reason,
		ResolveKind: string(kind),
		Detail:      err.Error(),
		Time:        time.Now().UTC(),
	}
}
