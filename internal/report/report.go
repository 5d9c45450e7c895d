// Package report renders the end-of-run summary of a command: a table on the
// console and a YAML file next to the logs.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/nabijung/thepilatesapp-sub000/internal/cleanup"
	"github.com/nabijung/thepilatesapp-sub000/internal/images"
	"github.com/nabijung/thepilatesapp-sub000/internal/importer"
)

// Report is one command's summary.
type Report struct {
	Script    string        `yaml:"script"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  time.Duration `yaml:"duration"`
	DryRun    bool          `yaml:"dry_run,omitempty"`
	Failed    bool          `yaml:"failed"`
	Details   any           `yaml:"details"`

	header []string
	rows   [][]string
}

// New starts a report for script.
func New(script string, started time.Time, dryRun bool) *Report {
	return &Report{Script: script, StartedAt: started.UTC(), DryRun: dryRun}
}

// Finish stamps the duration.
func (r *Report) Finish(now time.Time) {
	r.Duration = now.Sub(r.StartedAt).Round(time.Millisecond)
}

// Import fills the report from an import-all result.
func (r *Report) Import(res *importer.Result) {
	r.Details = res.Phases
	r.header = []string{"Phase", "Mode", "Created", "Existing", "Skipped", "Failed"}
	for _, p := range res.Phases {
		r.rows = append(r.rows, countRow(p.Name, p.Capability.String(), p.Counts))
	}
	t := res.Totals()
	r.rows = append(r.rows, countRow("total", "", t))
	r.Failed = t.Failed > 0
}

// Exercises fills the report from an import-exercises run.
func (r *Report) Exercises(c importer.Counts) {
	r.Details = c
	r.header = []string{"Phase", "Mode", "Created", "Existing", "Skipped", "Failed"}
	r.rows = [][]string{countRow("exercises", importer.InsertOnly.String(), c)}
	r.Failed = c.Failed > 0
}

// Images fills the report from an image migration summary.
func (r *Report) Images(s *images.Summary) {
	r.Details = s
	r.header = []string{"Total", "Dropped", "Succeeded", "Skipped", "Failed", "Reconciled"}
	r.rows = [][]string{{
		strconv.Itoa(s.Total), strconv.Itoa(s.Dropped), strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.Skipped), strconv.Itoa(s.Failed), strconv.Itoa(s.Reconciled),
	}}
	r.Failed = s.HasFailures()
}

// Cleanup fills the report from a cleanup run.
func (r *Report) Cleanup(c *cleanup.Report) {
	r.Details = c
	r.header = []string{"Step", "Source", "Planned", "Deleted", "Status"}
	for _, s := range c.Steps {
		r.rows = append(r.rows, []string{s.Name, string(s.Origin), strconv.Itoa(s.Planned), strconv.Itoa(s.Deleted), string(s.Status)})
	}
}

// Sample fills the report from extracted collection sizes.
func (r *Report) Sample(counts map[string]int, keys []string) {
	r.Details = counts
	r.header = []string{"Collection", "Records"}
	for _, k := range keys {
		r.rows = append(r.rows, []string{k, strconv.Itoa(counts[k])})
	}
}

func countRow(name, mode string, c importer.Counts) []string {
	return []string{name, mode, strconv.Itoa(c.Created), strconv.Itoa(c.Existing), strconv.Itoa(c.Skipped), strconv.Itoa(c.Failed)}
}

// Path is where Write stores the report of script.
func Path(dir, script string) string {
	return filepath.Join(dir, script+"-summary.yaml")
}

// Write stores the report as YAML in dir and returns the file name.
func (r *Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := Path(dir, r.Script)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Print renders a heading and the summary table to w.
func (r *Report) Print(w io.Writer, noColor bool) error {
	title := fmt.Sprintf("%s summary (%s)", r.Script, r.Duration)
	if r.DryRun {
		title += " [dry run]"
	}
	fmt.Fprintln(w, headingStyle(noColor, r.Failed).Render(title))

	if len(r.header) == 0 {
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header(toAny(r.header)...)
	for _, row := range r.rows {
		if err := table.Append(toAny(row)...); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}
	return table.Render()
}

func headingStyle(noColor, failed bool) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	if noColor {
		return style
	}
	if failed {
		return style.Foreground(lipgloss.Color("9"))
	}
	return style.Foreground(lipgloss.Color("10"))
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
