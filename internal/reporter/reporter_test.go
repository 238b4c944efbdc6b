package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/graph"
)

func makeProject(t *testing.T) *cpm.Project {
	t.Helper()
	p, err := cpm.New([]graph.Record{
		{ID: 1, Name: "Task A", Duration: 2},
		{ID: 2, Name: "Task B", Duration: 4, PredecessorIDs: []int{1}},
		{ID: 3, Name: "Task C", Duration: 1, PredecessorIDs: []int{1}},
		{ID: 4, Name: "Task D with a name long enough to be truncated", Duration: 1, PredecessorIDs: []int{2, 3}},
	}, cpm.Config{})
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	return p
}

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPrintSchedule(t *testing.T) {
	rpt := New(makeProject(t), "plan.csv")

	var buf bytes.Buffer
	rpt.PrintSchedule(&buf)
	output := buf.String()

	for _, want := range []string{
		"Critical Path Schedule",
		"plan.csv",
		"Finish:    7",
		"1 → 2 → 4",
		"Task A",
		"Task D with a name long enoug...",
		"Wave 1 (starts 1): 1",
		"Wave 2 (starts 3): 2, 3",
		"⚡",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q\n%s", want, output)
		}
	}
}

func TestPrintSchedule_RowValues(t *testing.T) {
	var buf bytes.Buffer
	New(makeProject(t), "").PrintSchedule(&buf)

	var row string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Task C") {
			row = line
		}
	}
	if row == "" {
		t.Fatal("no row for Task C")
	}
	fields := strings.Fields(row)
	// id, name (2 words), dur, es, ef, ls, lf, slack
	want := []string{"3", "Task", "C", "1", "3", "3", "6", "6", "3"}
	if strings.Join(fields, " ") != strings.Join(want, " ") {
		t.Errorf("unexpected row %q", row)
	}
}

func TestSummary(t *testing.T) {
	s := New(makeProject(t), "").Summary()
	if !strings.Contains(s, "4 tasks") || !strings.Contains(s, "finish at 7") {
		t.Errorf("unexpected summary %q", s)
	}
}

func TestJSON(t *testing.T) {
	data, err := New(makeProject(t), "plan.csv").JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		Source       string              `json:"source"`
		Finish       int                 `json:"finish"`
		CriticalPath []int               `json:"critical_path"`
		Tasks        []cpm.ScheduledTask `json:"tasks"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.Source != "plan.csv" || out.Finish != 7 {
		t.Errorf("unexpected header: %+v", out)
	}
	if len(out.Tasks) != 4 || out.Tasks[2].Slack != 3 || out.Tasks[2].Critical {
		t.Errorf("unexpected tasks: %+v", out.Tasks)
	}
	if len(out.CriticalPath) != 3 {
		t.Errorf("expected 3 critical tasks, got %v", out.CriticalPath)
	}
}

func TestPrintTable_StoredTasks(t *testing.T) {
	tasks := []cpm.ScheduledTask{
		{ID: 7, Name: "Saved", Duration: 2, EarlyStart: 1, EarlyFinish: 2, LateStart: 1, LateFinish: 2, Critical: true},
	}
	var buf bytes.Buffer
	PrintTable(&buf, tasks)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), buf.String())
	}
	if got := strings.Fields(lines[1]); strings.Join(got, " ") != "⚡ 7 Saved 2 1 2 1 2 0" {
		t.Errorf("unexpected row %q", lines[1])
	}
}
