package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/config"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/internal/domain/timefmt"
)

// Output formats accepted by --output.
const (
	outputConsole = "console"
	outputJSON    = "json"
	outputYAML    = "yaml"
)

var errBadDuration = errors.New("invalid duration")

type scoreFlags struct {
	firstResponse   string
	issueResolution string
	prReview        string
	output          string
	lang            string
	configPath      string
}

func newScoreCmd() *cobra.Command {
	var f scoreFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score metric durations without a server",
		Example: `  gitlytix score --first-response 2h --issue-resolution 3d --pr-review 36h
  gitlytix score --first-response 45m --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.firstResponse, "first-response", "", "average first-response time, e.g. 2h or 1d6h")
	cmd.Flags().StringVar(&f.issueResolution, "issue-resolution", "", "average issue resolution time")
	cmd.Flags().StringVar(&f.prReview, "pr-review", "", "average PR review time")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputConsole, "output format (console|json|yaml)")
	cmd.Flags().StringVar(&f.lang, "lang", "en", "language tag for number formatting")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config with a scoring.metrics table")
	return cmd
}

func runScore(cmd *cobra.Command, f scoreFlags) error {
	in := scoring.Input{}
	for m, raw := range map[scoring.Metric]string{
		scoring.FirstResponse:   f.firstResponse,
		scoring.IssueResolution: f.issueResolution,
		scoring.PRReview:        f.prReview,
	} {
		if raw == "" {
			continue
		}
		secs, err := parseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Key(), err)
		}
		in[m] = secs
	}

	cfg, err := config.LoadFile(cmd.Context(), f.configPath)
	if err != nil {
		return err
	}
	table, err := cfg.ScoringTable()
	if err != nil {
		return err
	}

	rep := service.ScoreReport{
		Result:     scoring.NewCalculator(table).Explain(in),
		Provider:   "cli",
		Input:      in,
		ComputedAt: time.Now().UTC(),
	}
	return writeReport(cmd.OutOrStdout(), rep, f.output, f.lang)
}

func writeReport(w io.Writer, rep service.ScoreReport, format, lang string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case outputConsole:
		tag, err := language.Parse(lang)
		if err != nil {
			return fmt.Errorf("--lang %q: %w", lang, err)
		}
		_, err = io.WriteString(w, renderConsole(rep, message.NewPrinter(tag)))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	metricStyle = lipgloss.NewStyle().Width(32)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stateColors = map[scoring.State]lipgloss.Color{
		scoring.StateHealthy:  lipgloss.Color("10"),
		scoring.StateDegraded: lipgloss.Color("11"),
		scoring.StateCritical: lipgloss.Color("9"),
		scoring.StateUnknown:  lipgloss.Color("8"),
	}
)

func renderConsole(rep service.ScoreReport, p *message.Printer) string {
	var b strings.Builder
	state := lipgloss.NewStyle().Bold(true).Foreground(stateColors[rep.State])

	fmt.Fprintf(&b, "%s %s %s\n",
		titleStyle.Render("Health score"),
		state.Render(p.Sprintf("%.2f", rep.Score)),
		state.Render(string(rep.State)))
	b.WriteString(dimStyle.Render(p.Sprintf("coverage %.0f%%", rep.Coverage*100)))
	b.WriteString("\n\n")

	for _, c := range rep.Contributions {
		fmt.Fprintf(&b, "  %s %-20s %s\n",
			metricStyle.Render(c.Metric.String()),
			timefmt.FormatSeconds(c.Raw),
			p.Sprintf("%6.2f x %.2f = %.2f", c.Normalized, c.Weight, c.Weighted))
	}
	for _, s := range rep.Skipped {
		fmt.Fprintf(&b, "  %s %s\n", metricStyle.Render(s.Metric.String()), dimStyle.Render("skipped ("+string(s.Reason)+")"))
	}
	return b.String()
}

// parseDuration reads a Go duration with an optional leading day count
// ("3d", "1d12h", "1.5d") or a bare number of seconds, and returns seconds.
func parseDuration(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", errBadDuration)
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secs, nil
	}

	var days float64
	if i := strings.IndexByte(s, 'd'); i >= 0 {
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errBadDuration, raw)
		}
		days, s = n, s[i+1:]
	}

	var rest time.Duration
	if s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errBadDuration, raw)
		}
		rest = d
	}
	return days*86400 + rest.Seconds(), nil
}
