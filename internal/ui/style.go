package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintBanner renders the critpath banner to w.
func PrintBanner(w io.Writer) {
	frame := color.New(color.FgCyan)
	bar := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +----------------------------+")
	bar.Fprintln(w, "   |  o==>o==>o==>o      o==>o  |")
	brand.Fprintln(w, "   |   C  R  I  T  P  A  T  H   |")
	bar.Fprintln(w, "   |  o==>o==>o==>o==>o==>o==>o |")
	frame.Fprintln(w, "   +----------------------------+")
	fmt.Fprintln(w)
}

// CriticalMarker returns the marker shown next to critical tasks,
// or a blank of the same width.
func CriticalMarker(critical bool) string {
	if critical {
		return BoldYellow("⚡")
	}
	return " "
}

// Slack colours a slack value: zero is critical, small margins warn.
func Slack(slack int) string {
	s := fmt.Sprintf("%d", slack)
	switch {
	case slack == 0:
		return BoldYellow(s)
	case slack <= 2:
		return Yellow(s)
	default:
		return Green(s)
	}
}

// ErrorIcon prefixes a failed validation line.
func ErrorIcon() string { return Red("✗") }

// OKIcon prefixes a passed validation line.
func OKIcon() string { return Green("✓") }
