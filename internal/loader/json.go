package loader

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dhenderson/criticalpy/internal/graph"
)

// ReadJSON parses task records from a JSON document. The document is either
// an array of tasks or an object with a "tasks" array. Each task has an
// integer "id" and "duration", a string "name" and an optional
// "predecessors" array of integers.
func ReadJSON(data []byte, source string) ([]graph.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, &MalformedRecordError{Source: source, Msg: "invalid JSON"}
	}

	tasks := gjson.ParseBytes(data)
	if tasks.IsObject() {
		tasks = tasks.Get("tasks")
	}
	if !tasks.IsArray() {
		return nil, &MalformedRecordError{Source: source, Msg: "expected an array of tasks"}
	}

	var (
		records []graph.Record
		bad     *MalformedRecordError
	)
	tasks.ForEach(func(key, item gjson.Result) bool {
		rec, err := parseJSONTask(item)
		if err != nil {
			err.Source, err.Line = source, int(key.Int())+1
			bad = err
			return false
		}
		records = append(records, rec)
		return true
	})
	if bad != nil {
		return nil, bad
	}

	return records, nil
}

func parseJSONTask(item gjson.Result) (graph.Record, *MalformedRecordError) {
	if !item.IsObject() {
		return graph.Record{}, &MalformedRecordError{Msg: "task is not an object"}
	}

	id, err := jsonInt(item.Get("id"), "id")
	if err != nil {
		return graph.Record{}, err
	}
	duration, err := jsonInt(item.Get("duration"), "duration")
	if err != nil {
		return graph.Record{}, err
	}

	name := item.Get("name")
	if name.Exists() && name.Type != gjson.String {
		return graph.Record{}, &MalformedRecordError{Field: "name", Msg: "not a string"}
	}

	var preds []int
	if p := item.Get("predecessors"); p.Exists() {
		if !p.IsArray() {
			return graph.Record{}, &MalformedRecordError{Field: "predecessors", Msg: "not an array"}
		}
		for _, v := range p.Array() {
			pid, err := jsonInt(v, "predecessors")
			if err != nil {
				return graph.Record{}, err
			}
			preds = append(preds, pid)
		}
	}

	return graph.Record{
		ID:             id,
		Name:           name.String(),
		Duration:       duration,
		PredecessorIDs: preds,
	}, nil
}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

func jsonInt(v gjson.Result, field string) (int, *MalformedRecordError) {
	if !v.Exists() {
		return 0, &MalformedRecordError{Field: field, Msg: "missing"}
	}
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0, &MalformedRecordError{Field: field, Msg: fmt.Sprintf("%s is not an integer", v.Raw)}
	}
	if n, err := strconv.ParseInt(v.Raw, 10, strconv.IntSize); err == nil {
		return int(n), nil
	}
	// Integral values spelled with a fraction or exponent, such as 3.0 or 1e2.
	if math.Abs(v.Num) <= maxExactFloat {
		return int(v.Num), nil
	}
	return 0, &MalformedRecordError{Field: field, Msg: fmt.Sprintf("%s is out of range", v.Raw)}
}
