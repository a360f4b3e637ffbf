// Package console prints human-readable check reports.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/webmonitor/internal/monitor"
)

// Rule separates consecutive reports.
var Rule = strings.Repeat("-", 80)

// Reporter writes reports to an io.Writer, normally stdout.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a Reporter writing to out.
func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Report prints one report followed by the rule.
func (r *Reporter) Report(_ context.Context, report monitor.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nChecking website: %s\n", report.URL)
	if report.Failed() {
		fmt.Fprintf(&b, "Failed to fetch page: %s\n", report.ErrorText)
	} else {
		fmt.Fprintf(&b, "Path: %s (%d chars, %d scripts, %s)\n",
			report.Kind, report.TextChars, report.ScriptCount, report.Duration.Round(time.Millisecond))
		if report.CaptureFellBack {
			b.WriteString("Screenshot capture failed, analyzed page text instead\n")
		}
		if report.ArtifactURI != "" {
			fmt.Fprintf(&b, "Screenshot saved: %s\n", report.ArtifactURI)
		}
		fmt.Fprintf(&b, "\nAnalysis result:\n%s\n", report.Analysis)
	}
	b.WriteString(Rule)
	b.WriteString("\n")

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Banner prints the monitoring summary shown once at startup.
func (r *Reporter) Banner(interval time.Duration, urls, keywords []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitoring websites every %s\n", interval)
	fmt.Fprintf(&b, "Websites: %s\n", strings.Join(urls, ", "))
	fmt.Fprintf(&b, "Alert keywords: %s\n", strings.Join(keywords, ", "))
	b.WriteString("Press Ctrl+C to stop\n")
	b.WriteString(Rule)
	b.WriteString("\n")

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (r *Reporter) Name() string { return "console" }
