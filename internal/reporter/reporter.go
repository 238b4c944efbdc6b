package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/ui"
)

// Reporter renders a finished schedule for humans or machines.
type Reporter struct {
	Project *cpm.Project
	Source  string
}

// New creates a new Reporter.
func New(p *cpm.Project, source string) *Reporter {
	return &Reporter{Project: p, Source: source}
}

// PrintSchedule writes a terminal-friendly schedule table.
func (r *Reporter) PrintSchedule(w io.Writer) {
	p := r.Project
	tasks := p.Tasks()

	critical := 0
	for _, t := range tasks {
		if t.Critical {
			critical++
		}
	}

	fmt.Fprintf(w, "🎯 %s %s\n", ui.BoldCyan("Critical Path Schedule"), ui.Dim(r.Source))
	fmt.Fprintln(w, ui.Cyan("══════════════════════════"))
	fmt.Fprintf(w, "Tasks:     %s (%s critical)\n", ui.Bold(len(tasks)), ui.Bold(critical))
	fmt.Fprintf(w, "Finish:    %s\n", ui.Bold(p.Finish()))
	fmt.Fprintf(w, "⚡ Critical path: %s\n\n", ui.BoldYellow(joinIDs(p.CriticalPath(), " → ")))

	PrintTable(w, tasks)
	fmt.Fprintln(w)

	for _, wave := range p.Waves() {
		crit := ""
		if wave.IsCritical {
			crit = "  " + ui.BoldYellow("⚡")
		}
		fmt.Fprintf(w, "🌊 %s %d (starts %d): %s%s\n",
			ui.BoldWhite("Wave"), wave.Index+1, wave.Start, joinIDs(wave.TaskIDs, ", "), crit)
	}
}

// PrintTable writes the per-task rows of a schedule, as computed now or
// loaded from history.
func PrintTable(w io.Writer, tasks []cpm.ScheduledTask) {
	fmt.Fprintf(w, "    %-6s %-32s %5s %5s %5s %5s %5s %6s\n",
		"ID", "Name", "Dur", "ES", "EF", "LS", "LF", "Slack")
	for _, t := range tasks {
		printTask(w, t)
	}
}

func printTask(w io.Writer, t cpm.ScheduledTask) {
	name := t.Name
	if len(name) > 32 {
		name = name[:29] + "..."
	}
	// Pad before colouring so escape codes do not break alignment.
	id := ui.BoldMagenta(fmt.Sprintf("%-6d", t.ID))
	slack := ui.Slack(t.Slack)
	if pad := 6 - len(strconv.Itoa(t.Slack)); pad > 0 {
		slack = strings.Repeat(" ", pad) + slack
	}

	fmt.Fprintf(w, "  %s %s %-32s %5d %5d %5d %5d %5d %s\n",
		ui.CriticalMarker(t.Critical), id, name,
		t.Duration, t.EarlyStart, t.EarlyFinish, t.LateStart, t.LateFinish, slack)
}

// Summary returns a one-line summary of the schedule.
func (r *Reporter) Summary() string {
	p := r.Project
	return fmt.Sprintf("%s %d tasks, finish at %d, critical path %s",
		ui.OKIcon(), p.Len(), p.Finish(), joinIDs(p.CriticalPath(), " → "))
}

// JSON returns the machine-readable schedule.
func (r *Reporter) JSON() ([]byte, error) {
	type output struct {
		Source       string              `json:"source,omitempty"`
		Finish       int                 `json:"finish"`
		CriticalPath []int               `json:"critical_path"`
		Order        []int               `json:"order"`
		Waves        []cpm.Wave          `json:"waves"`
		Tasks        []cpm.ScheduledTask `json:"tasks"`
	}

	p := r.Project
	o := output{
		Source:       r.Source,
		Finish:       p.Finish(),
		CriticalPath: p.CriticalPath(),
		Order:        p.Order(),
		Waves:        p.Waves(),
		Tasks:        p.Tasks(),
	}
	return json.MarshalIndent(o, "", "  ")
}

func joinIDs(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
