package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/iaserrat/netdiag/internal/health"
	"github.com/iaserrat/netdiag/internal/logging"
	"github.com/iaserrat/netdiag/internal/report"
	"github.com/iaserrat/netdiag/internal/traceroute"
)

type checker interface {
	Battery() []health.Target
	RunQuickCheck(ctx context.Context) (health.Report, error)
	RunCustomCheck(ctx context.Context, target string) (health.Report, error)
}

type app struct {
	in     io.Reader
	out    io.Writer
	checks checker
	events *logging.Logger
	log    *zap.Logger
	tracer *traceroute.Tracer

	scanner *bufio.Scanner
	runSeq  atomic.Int64
}

var tips = []string{
	"Restart your router/modem",
	"Check physical cables and Wi-Fi connection",
	"Try using Google DNS: 8.8.8.8 and 8.8.4.4",
	"Disable VPN or proxy temporarily",
	"Check firewall settings",
	"Update network drivers",
	"Contact your ISP if issues persist",
}

var errQuit = errors.New("quit")

// loop runs the menu until the operator exits or input ends.
func (a *app) loop(ctx context.Context) error {
	a.scanner = bufio.NewScanner(a.in)
	bold := color.New(color.Bold)

	for {
		bold.Fprintln(a.out, "\nNetwork Diagnostics Tool")
		fmt.Fprintln(a.out, strings.Repeat("=", 50))
		fmt.Fprintln(a.out, "1. Quick network diagnosis")
		fmt.Fprintln(a.out, "2. Test specific website")
		fmt.Fprintln(a.out, "3. Troubleshooting tips")
		fmt.Fprintln(a.out, "4. Exit")

		choice, err := a.prompt("\nSelect option (1-4): ")
		if err != nil {
			return quitErr(err)
		}
		if ctx.Err() != nil {
			return nil
		}

		switch choice {
		case "1":
			if err := a.quick(ctx); err != nil {
				return err
			}
			if _, err := a.prompt("\nPress Enter to continue..."); err != nil {
				return quitErr(err)
			}
		case "2":
			if err := a.custom(ctx); err != nil {
				return quitErr(err)
			}
		case "3":
			a.showTips()
			if _, err := a.prompt("\nPress Enter to return to menu..."); err != nil {
				return quitErr(err)
			}
		case "4":
			fmt.Fprintln(a.out, "\nThank you for using the Network Diagnostics Tool!")
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid option. Please try again.")
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func quitErr(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// prompt reads one trimmed line. End of input is errQuit.
func (a *app) prompt(text string) (string, error) {
	fmt.Fprint(a.out, text)
	if !a.scanner.Scan() {
		if err := a.scanner.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errQuit
	}
	return strings.TrimSpace(a.scanner.Text()), nil
}

func (a *app) quick(ctx context.Context) error {
	fmt.Fprintln(a.out, "\nRunning quick network diagnosis...")
	for _, t := range a.checks.Battery() {
		fmt.Fprintf(a.out, "  %s (%s %s)\n", t.Name, t.Kind, t.Host)
	}
	r, err := a.checks.RunQuickCheck(ctx)
	if err != nil {
		return fmt.Errorf("quick diagnosis: %w", err)
	}
	a.render(r)
	return nil
}

func (a *app) custom(ctx context.Context) error {
	fmt.Fprintln(a.out, "\nCustom website testing")
	for {
		target, err := a.prompt("\nEnter website to test (or 'back' to return): ")
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if strings.EqualFold(target, "back") {
			return nil
		}

		fmt.Fprintf(a.out, "\nTesting: %s\n", target)
		r, err := a.checks.RunCustomCheck(ctx, target)
		if err != nil {
			return fmt.Errorf("custom test: %w", err)
		}
		runID := a.render(r)

		if a.tracer != nil && r.Verdict != health.VerdictHealthy && len(r.Outcomes) == 1 && r.Outcomes[0].ResolveKind == "" {
			fmt.Fprintln(a.out, "\nTracing route...")
			res := a.tracer.Run(ctx, strings.TrimSpace(target))
			fmt.Fprint(a.out, report.FormatTrace(res))
			a.emit(logging.TraceRecord(runID, res))
		}
	}
}

func (a *app) render(r health.Report) string {
	fmt.Fprintln(a.out)
	fmt.Fprint(a.out, report.Format(r))

	adv := report.Advise(r)
	fmt.Fprintln(a.out)
	verdictColor(r.Verdict).Fprintln(a.out, adv.Headline)
	for _, h := range adv.Hints {
		fmt.Fprintln(a.out, "   "+h)
	}

	runID := fmt.Sprintf("%s-%d-%06d", r.Kind, r.StartedAt.UnixNano(), a.runSeq.Add(1))
	for _, rec := range logging.ReportRecords(runID, r) {
		a.emit(rec)
	}
	return runID
}

func (a *app) emit(rec logging.Emittable) {
	if a.events == nil {
		return
	}
	if err := a.events.Emit(rec); err != nil && a.log != nil {
		a.log.Warn("event_log_write_failed", zap.Error(err))
	}
}

func (a *app) showTips() {
	fmt.Fprintln(a.out, "\nNetwork troubleshooting tips")
	fmt.Fprintln(a.out, strings.Repeat("=", 50))
	for i, tip := range tips {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, tip)
	}
}

func verdictColor(v health.Verdict) *color.Color {
	switch v {
	case health.VerdictHealthy:
		return color.New(color.FgGreen, color.Bold)
	case health.VerdictDegraded:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
