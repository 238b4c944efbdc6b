package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhenderson/criticalpy/internal/cpm"
)

const (
	// DefaultHighlightColor fills critical nodes unless overridden. It is
	// the same as DefaultBackgroundColor, so critical tasks are not visibly
	// highlighted until a caller picks a distinct colour.
	DefaultHighlightColor = "#FFFFFF"
	// DefaultBackgroundColor fills non-critical nodes.
	DefaultBackgroundColor = "#FFFFFF"

	borderColor  = "#000000"
	wordsPerLine = 3
)

// DOTOptions controls diagram colours. Empty fields take the defaults.
type DOTOptions struct {
	HighlightColor  string
	BackgroundColor string
}

func (o DOTOptions) withDefaults() DOTOptions {
	if o.HighlightColor == "" {
		o.HighlightColor = DefaultHighlightColor
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = DefaultBackgroundColor
	}
	return o
}

// FillColor returns the fill colour a task's node is drawn with.
func FillColor(t cpm.ScheduledTask, opts DOTOptions) string {
	opts = opts.withDefaults()
	if t.Critical {
		return opts.HighlightColor
	}
	return opts.BackgroundColor
}

// WriteDOT renders the schedule as a Graphviz digraph of record nodes.
// Each node shows {ES|LS}, {duration|name|slack} and {EF|LF} columns; edges
// run from predecessor to dependent.
func WriteDOT(w io.Writer, p *cpm.Project, opts DOTOptions) error {
	opts = opts.withDefaults()
	tasks := p.Tasks()

	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("    node [shape=record];\n")

	for _, t := range tasks {
		label := fmt.Sprintf("{%d|%d}|{%d|%s|%d}|{%d|%d}",
			t.EarlyStart, t.LateStart,
			t.Duration, lineBreaks(escapeRecordLabel(t.Name), wordsPerLine), t.Slack,
			t.EarlyFinish, t.LateFinish)
		fmt.Fprintf(&b, "    node%d [label=\"%s\", color=\"%s\", style=filled, fillcolor=\"%s\"];\n",
			t.ID, label, borderColor, FillColor(t, opts))
	}

	for _, t := range tasks {
		for _, pid := range t.PredecessorIDs {
			fmt.Fprintf(&b, "    node%d -> node%d;\n", pid, t.ID)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// lineBreaks inserts a DOT line break after every n words.
func lineBreaks(text string, n int) string {
	words := strings.Split(text, " ")
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			if i%n == 0 {
				b.WriteString(`\n`)
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w)
	}
	return b.String()
}

var recordEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`{`, `\{`,
	`}`, `\}`,
	`|`, `\|`,
	`<`, `\<`,
	`>`, `\>`,
)

func escapeRecordLabel(s string) string {
	return recordEscaper.Replace(s)
}
