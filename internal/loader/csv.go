package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhenderson/criticalpy/internal/graph"
)

// csvFields is the column count of the task CSV format:
// task_id, name, duration, predecessor_ids.
const csvFields = 4

// ReadCSV parses task records from r. The first row is a header and is
// skipped. Any bad row aborts the whole read.
func ReadCSV(r io.Reader, source string) ([]graph.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = csvFields
	cr.TrimLeadingSpace = true

	var records []graph.Record
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &MalformedRecordError{Source: source, Line: pe.Line, Msg: "unreadable row", Err: pe.Err}
			}
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			continue
		}

		rec, merr := parseRow(row)
		if merr != nil {
			merr.Source, merr.Line = source, line
			return nil, merr
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string) (graph.Record, *MalformedRecordError) {
	id, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return graph.Record{}, &MalformedRecordError{Field: "task_id", Msg: fmt.Sprintf("%q is not an integer", row[0])}
	}
	duration, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return graph.Record{}, &MalformedRecordError{Field: "duration", Msg: fmt.Sprintf("%q is not an integer", row[2])}
	}
	preds, perr := ParsePredecessorIDs(row[3])
	if perr != nil {
		return graph.Record{}, &MalformedRecordError{Field: "predecessor_ids", Msg: perr.Error()}
	}
	return graph.Record{
		ID:             id,
		Name:           row[1],
		Duration:       duration,
		PredecessorIDs: preds,
	}, nil
}

// ParsePredecessorIDs splits a comma separated id list. Empty entries are
// skipped, so "" yields no predecessors.
func ParsePredecessorIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
