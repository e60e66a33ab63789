// Command schedcheck validates scenario files offline and prints a report
// of violations and KPIs per scenario. It exits non-zero when any scenario
// carries an error-severity violation or fails to evaluate.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/kpi"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/scenario"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
)

type options struct {
	file       string
	slot       time.Duration
	workday    float64
	strictness string
	workers    int
	plain      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "scenario file (.yaml, .yml or .json)")
	flag.DurationVar(&opts.slot, "slot", 24*time.Hour, "over-allocation slot size")
	flag.Float64Var(&opts.workday, "workday", 8, "nominal workday hours for utilization")
	flag.StringVar(&opts.strictness, "strictness", "moderate", "policy strictness: strict, moderate, relaxed")
	flag.IntVar(&opts.workers, "workers", 4, "parallel scenario evaluations")
	flag.BoolVar(&opts.plain, "plain", false, "disable colors")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, opts, os.Stdout, os.Stderr))
}

// run evaluates the file named by opts and returns the process exit code.
func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	if opts.file == "" {
		fmt.Fprintln(stderr, "schedcheck: -file is required")
		return 2
	}
	strictness, err := validation.ParseStrictness(opts.strictness)
	if err != nil {
		fmt.Fprintf(stderr, "schedcheck: %v\n", err)
		return 2
	}
	if opts.slot <= 0 || opts.workday <= 0 || opts.workday > 24 {
		fmt.Fprintln(stderr, "schedcheck: -slot must be positive and -workday in (0, 24]")
		return 2
	}

	scenarios, err := scenario.LoadFile(opts.file)
	if err != nil {
		fmt.Fprintf(stderr, "schedcheck: %v\n", err)
		return 1
	}

	log := logger.Nop()
	eval := scenario.New(
		scenario.WithWorkers(opts.workers),
		scenario.WithValidator(validation.New(validation.WithSlotDuration(opts.slot), validation.WithLogger(log))),
		scenario.WithCalculator(kpi.New(kpi.WithWorkdayHours(opts.workday))),
		scenario.WithStrictness(strictness),
		scenario.WithLogger(log),
	)
	outcomes := eval.Evaluate(ctx, scenarios)

	fmt.Fprint(stdout, newReport(opts.plain).render(outcomes))
	return exitCode(outcomes)
}

// exitCode is 1 when any outcome is invalid or errored.
func exitCode(outcomes []scenario.Outcome) int {
	for _, o := range outcomes {
		if o.Error != "" || !o.Valid {
			return 1
		}
	}
	return 0
}

type report struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
	summary lipgloss.Style
}

func newReport(plain bool) report {
	if plain {
		s := lipgloss.NewStyle()
		return report{title: s, ok: s, bad: s, warn: s, muted: s, box: s, summary: s}
	}
	return report{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		bad:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F0B429")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		summary: lipgloss.NewStyle().Bold(true),
	}
}

func (r report) render(outcomes []scenario.Outcome) string {
	var b strings.Builder
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" || !o.Valid {
			failed++
		}
		b.WriteString(r.box.Render(r.scenario(o)))
		b.WriteString("\n")
	}
	b.WriteString(r.summary.Render(fmt.Sprintf("%d scenario(s), %d failed", len(outcomes), failed)))
	b.WriteString("\n")
	return b.String()
}

func (r report) scenario(o scenario.Outcome) string {
	lines := []string{r.title.Render(o.Name)}
	switch {
	case o.Error != "":
		lines = append(lines, r.bad.Render("error: "+o.Error))
		return strings.Join(lines, "\n")
	case o.Valid:
		lines = append(lines, r.ok.Render("valid"))
	default:
		lines = append(lines, r.bad.Render("invalid"))
	}

	lines = append(lines, r.muted.Render(fmt.Sprintf("errors %d  warnings %d  info %d",
		o.Counts[validation.SeverityError], o.Counts[validation.SeverityWarning], o.Counts[validation.SeverityInfo])))

	for _, v := range o.Violations {
		line := fmt.Sprintf("[%s] %s: %s", v.Severity, v.Type, v.Message)
		switch v.Severity {
		case validation.SeverityError:
			line = r.bad.Render(line)
		case validation.SeverityWarning:
			line = r.warn.Render(line)
		default:
			line = r.muted.Render(line)
		}
		lines = append(lines, line)
	}

	kpis := o.Metrics.Map()
	names := make([]string, 0, len(kpis))
	for k := range kpis {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		lines = append(lines, r.muted.Render(fmt.Sprintf("%s = %d", k, kpis[k])))
	}
	return strings.Join(lines, "\n")
}
