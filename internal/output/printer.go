package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/tdh8316/osintagg/internal/probe"
	"github.com/tdh8316/osintagg/internal/result"
)

const rule = "======================================================================"

// ColorEnabled reports whether colored output should be written to w.
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Printer renders scan progress and summaries for humans. File output and
// the probe engine never go through it.
type Printer struct {
	w       io.Writer
	verbose bool

	green, yellow, red, cyan, magenta, bold, white func(a ...interface{}) string
}

func NewPrinter(stdout io.Writer, useColor, verbose bool) *Printer {
	w := stdout
	if useColor && stdout == os.Stdout {
		w = color.Output
	}

	paint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}

	return &Printer{
		w:       w,
		verbose: verbose,
		green:   paint(color.FgHiGreen),
		yellow:  paint(color.FgHiYellow),
		red:     paint(color.FgHiRed),
		cyan:    paint(color.FgHiCyan),
		magenta: paint(color.FgHiMagenta),
		bold:    paint(color.Bold),
		white:   paint(color.FgHiWhite),
	}
}

func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.w, p.cyan(rule))
	fmt.Fprintln(p.w, p.bold("  osintagg - find a username across public platforms"))
	fmt.Fprintf(p.w, "  %s\n", p.bold("version "+version))
	fmt.Fprintln(p.w, p.cyan(rule))
}

func (p *Printer) ScanHeader(username string, platforms int) {
	fmt.Fprintf(p.w, "\n%s\n", p.magenta("USERNAME ENUMERATION"))
	fmt.Fprintf(p.w, "Target: %s\n", p.green(username))
	fmt.Fprintf(p.w, "Checking username '%s' across %d platform(s)...\n\n", username, platforms)
}

// Outcome prints one progress line for the i-th of n probes.
func (p *Printer) Outcome(i, n int, o probe.Outcome) {
	prefix := fmt.Sprintf("[%d/%d] Checking %s...", i, n, p.white(o.Platform))

	var status string
	switch o.Status {
	case probe.StatusFound:
		status = fmt.Sprintf("%s - %s", p.green("FOUND"), o.URL)
	case probe.StatusNotFound:
		status = p.yellow("Not found")
	default:
		status = fmt.Sprintf("%s - %s", p.red("ERROR"), o.Detail)
	}

	if p.verbose && o.StatusCode != 0 {
		status += fmt.Sprintf(" (HTTP %d)", o.StatusCode)
	}
	fmt.Fprintf(p.w, "%s %s\n", prefix, status)
}

// Summary prints the totals of a finished scan and the found profiles.
func (p *Printer) Summary(r *result.ScanResult) {
	s := r.Summary

	fmt.Fprintf(p.w, "\n%s\n", p.cyan(rule))
	fmt.Fprintln(p.w, p.bold("SUMMARY"))
	fmt.Fprintln(p.w, p.cyan(rule))

	table := tablewriter.NewWriter(p.w)
	table.Header("Metric", "Value")
	rows := [][]string{
		{"Total platforms checked", strconv.Itoa(s.Total)},
		{"Found on", strconv.Itoa(s.Found)},
		{"Not found on", strconv.Itoa(s.NotFound)},
		{"Errors", strconv.Itoa(s.Errors)},
		{"Success rate", strconv.FormatFloat(s.SuccessRate, 'f', 2, 64) + "%"},
	}
	if d := r.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(1e6).String()})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			p.Warn("summary table: %v", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		p.Warn("summary table: %v", err)
	}

	if len(s.PlatformsFound) == 0 {
		return
	}
	fmt.Fprintf(p.w, "\n%s\n", p.green("Found on:"))
	for _, o := range r.Outcomes {
		if o.Found() {
			fmt.Fprintf(p.w, "  - %s: %s\n", o.Platform, o.URL)
		}
	}
}

// Outcomes renders every outcome of r as a table.
func (p *Printer) Outcomes(r *result.ScanResult) error {
	table := tablewriter.NewWriter(p.w)
	table.Header("#", "Platform", "Status", "Details")
	for i, o := range r.Outcomes {
		details := o.URL
		if o.Status == probe.StatusError {
			details = o.Detail
		}
		if err := table.Append([]string{strconv.Itoa(i + 1), o.Platform, strings.ToUpper(string(o.Status)), details}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Platforms lists platform names, one per line.
func (p *Printer) Platforms(names []string) {
	fmt.Fprintf(p.w, "Available platforms (%d):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(p.w, "[%s] %s\n", p.green("+"), p.white(n))
	}
}

func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "[%s] %s\n", p.cyan("i"), fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "[%s] %s\n", p.red("!"), p.yellow(fmt.Sprintf(format, args...)))
}

func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "[%s] %s\n", p.green("+"), fmt.Sprintf(format, args...))
}
