// Package export writes finished schedules and task sets to files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/graph"
)

// ScheduleHeader is the header row of the schedule CSV.
var ScheduleHeader = []string{
	"Task ID", "Name", "Duration",
	"Early start", "Early finish", "Late start", "Late finish",
	"Slack", "Critical",
}

// RecordsHeader is the header row of the task input CSV.
var RecordsHeader = []string{"task_id", "name", "duration", "predecessor_ids"}

// WriteScheduleCSV writes one row per task in ascending id order.
func WriteScheduleCSV(w io.Writer, p *cpm.Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScheduleHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range p.Tasks() {
		row := []string{
			strconv.Itoa(t.ID),
			t.Name,
			strconv.Itoa(t.Duration),
			strconv.Itoa(t.EarlyStart),
			strconv.Itoa(t.EarlyFinish),
			strconv.Itoa(t.LateStart),
			strconv.Itoa(t.LateFinish),
			strconv.Itoa(t.Slack),
			strconv.FormatBool(t.Critical),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write task %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsCSV writes records in the loader's input format.
func WriteRecordsCSV(w io.Writer, records []graph.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		preds := make([]string, len(r.PredecessorIDs))
		for i, id := range r.PredecessorIDs {
			preds[i] = strconv.Itoa(id)
		}
		row := []string{strconv.Itoa(r.ID), r.Name, strconv.Itoa(r.Duration), strings.Join(preds, ",")}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write task %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
