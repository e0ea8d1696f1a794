package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/validate"
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	summaryPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

// Console writes human-readable progress to w. In plain style it prints
// a line whenever a job's numbers move and the validator stats when they
// change; quiet style prints completions and the summary only.
type Console struct {
	w     io.Writer
	quiet bool

	mu        sync.Mutex
	lastStats validate.Stats
	lastSeen  map[string]job.Snapshot
}

func NewConsole(w io.Writer, quiet bool) *Console {
	return &Console{
		w:        w,
		quiet:    quiet,
		lastSeen: make(map[string]job.Snapshot),
	}
}

func (c *Console) ValidatorStats(s validate.Stats) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.lastStats {
		return
	}
	c.lastStats = s
	fmt.Fprintf(c.w, "%s checked %d, valid %d\n",
		labelStyle.Render("proxies:"), s.Checked, s.Validated)
}

func (c *Console) Progress(s job.Snapshot) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, seen := c.lastSeen[s.ID]
	if seen && prev.Current == s.Current && prev.Hits == s.Hits {
		return
	}
	c.lastSeen[s.ID] = s
	fmt.Fprintf(c.w, "%s %s %d/%d (+%d of +%d, hits %d)\n",
		labelStyle.Render("job:"), s.ID, s.Current, s.Baseline+s.Target, s.Delta, s.Target, s.Hits)
}

func (c *Console) Completed(s job.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s %d -> %d (+%d) in %s\n",
		okStyle.Render("done:"), s.ID, s.Baseline, s.Current, s.Delta, formatElapsed(s.Elapsed))
}

func (c *Console) Summary(sum Summary) {
	succeeded := 0
	for _, s := range sum.Jobs {
		if s.Completed {
			succeeded++
		}
	}

	title := okStyle.Render("Complete")
	if sum.Interrupted {
		title = warnStyle.Render("Interrupted")
	}

	rate := 0.0
	if sum.Stats.Checked > 0 {
		rate = float64(sum.Stats.Validated) / float64(sum.Stats.Checked) * 100
	}

	body := fmt.Sprintf(
		"%s\n\n"+
			"%s %s\n"+
			"%s %d (done %d, failed to prepare %d)\n"+
			"%s %d checked, %d valid (%.1f%%)",
		title,
		labelStyle.Render("total time:"), formatElapsed(sum.Elapsed),
		labelStyle.Render("jobs:"), len(sum.Jobs), succeeded, len(sum.FailedJobs),
		labelStyle.Render("proxies:"), sum.Stats.Checked, sum.Stats.Validated, rate,
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, summaryPanel.Render(body))
	for _, s := range sum.Jobs {
		mark := warnStyle.Render("~")
		if s.Completed {
			mark = okStyle.Render("+")
		}
		fmt.Fprintf(c.w, " %s %s: %d -> %d (+%d, hits %d) in %s\n",
			mark, s.ID, s.Baseline, s.Current, s.Delta, s.Hits, formatElapsed(s.Elapsed))
	}
	for _, id := range sum.FailedJobs {
		fmt.Fprintf(c.w, " %s %s: failed to prepare\n", warnStyle.Render("-"), id)
	}
	fmt.Fprintln(c.w, faintStyle.Render("run "+sum.RunID))
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
