package style

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/solo"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

// ReportRenderer prints runner reports as a table with a summary box on
// terminals and as aligned plain text everywhere else
type ReportRenderer struct {
	out     io.Writer
	plain   bool
	verbose bool
}

// NewReportRenderer picks plain output unless w is a terminal that allows color
func NewReportRenderer(w io.Writer, verbose bool) *ReportRenderer {
	return &ReportRenderer{
		out:     w,
		plain:   !IsTerminal(w) || termenv.EnvNoColor(),
		verbose: verbose,
	}
}

// SetPlain forces plain or rich output
func (r *ReportRenderer) SetPlain(plain bool) {
	r.plain = plain
}

// IsTerminal reports whether w writes to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Write renders the report to the renderer's writer
func (r *ReportRenderer) Write(report *solo.Report) error {
	_, err := fmt.Fprintln(r.out, r.Render(report))
	return err
}

// Render returns the report as text
func (r *ReportRenderer) Render(report *solo.Report) string {
	if report == nil || len(report.Results) == 0 {
		return "nothing to report"
	}
	if r.plain {
		return r.renderPlain(report)
	}
	return r.renderRich(report)
}

func (r *ReportRenderer) renderPlain(report *solo.Report) string {
	hostWidth, stepWidth := 0, 0
	for _, res := range report.Results {
		hostWidth = max(hostWidth, len(res.Host))
		stepWidth = max(stepWidth, len(res.Step))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", report.Command)
	for _, res := range report.Results {
		status := "ok"
		if !res.Success() {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "  %-*s  %-*s  %-6s  %s\n", hostWidth, res.Host, stepWidth, res.Step, status, formatDuration(res.Duration))
		for _, line := range r.detail(res) {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}
	b.WriteString(summary(report))
	return b.String()
}

func (r *ReportRenderer) renderRich(report *solo.Report) string {
	data := pterm.TableData{{"", "Host", "Step", "Time"}}
	for _, res := range report.Results {
		indicator := SuccessIndicator
		if !res.Success() {
			indicator = ErrorIndicator
		}
		data = append(data, []string{
			indicator,
			HostStyle.Render(res.Host),
			StepStyle(res.Step).Render(res.Step),
			MutedStyle.Render(formatDuration(res.Duration)),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return r.renderPlain(report)
	}

	var b strings.Builder
	b.WriteString(RenderTemplate("[title]{{command}}[/title]", map[string]string{"command": report.Command}))
	b.WriteString("\n")
	b.WriteString(table)
	b.WriteString("\n")

	for _, res := range report.Results {
		lines := r.detail(res)
		if len(lines) == 0 {
			continue
		}
		header := RenderTemplate("[host]{{host}}[/host] [muted]{{step}}[/muted]", map[string]string{
			"host": res.Host,
			"step": res.Step,
		})
		b.WriteString(InfoIndicator + " " + header + "\n")
		for _, line := range lines {
			if !res.Success() {
				line = ErrorStyle.Render(line)
			}
			b.WriteString(Indent(line, 1) + "\n")
		}
	}

	box := BoxStyle
	if report.Failed() {
		box = box.BorderForeground(ErrorColor)
	} else {
		box = box.BorderForeground(SuccessColor)
	}
	b.WriteString(box.Render(summary(report)))
	return b.String()
}

// detail lists the error of a failed step, or its output in verbose mode
func (r *ReportRenderer) detail(res solo.HostResult) []string {
	if !res.Success() {
		return []string{res.Err.Error()}
	}
	if !r.verbose || strings.TrimSpace(res.Output) == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(res.Output, "\n"), "\n")
}

func summary(report *solo.Report) string {
	hosts := make(map[string]struct{})
	failed := 0
	for _, res := range report.Results {
		hosts[res.Host] = struct{}{}
		if !res.Success() {
			failed++
		}
	}
	return fmt.Sprintf("%d hosts, %d steps, %d failed", len(hosts), len(report.Results), failed)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
