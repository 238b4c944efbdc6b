package loader

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/dhenderson/criticalpy/internal/graph"
)

// hclFile is the root of a task definition file:
//
//	task "Design" {
//	  id       = 1
//	  duration = 3
//	}
//
//	task "Build" {
//	  id           = 2
//	  duration     = 5
//	  predecessors = [1]
//	}
type hclFile struct {
	Tasks []hclTask `hcl:"task,block"`
}

type hclTask struct {
	Name         string `hcl:"name,label"`
	ID           int    `hcl:"id"`
	Duration     int    `hcl:"duration"`
	Predecessors []int  `hcl:"predecessors,optional"`
}

// ReadHCL parses task records from HCL source.
func ReadHCL(src []byte, filename string) ([]graph.Record, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	var f hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &f)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}

	records := make([]graph.Record, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		records = append(records, graph.Record{
			ID:             t.ID,
			Name:           t.Name,
			Duration:       t.Duration,
			PredecessorIDs: t.Predecessors,
		})
	}
	return records, nil
}

func diagError(filename string, diags hcl.Diagnostics) *MalformedRecordError {
	e := &MalformedRecordError{Source: filename, Msg: diags.Error()}
	for _, d := range diags {
		if d.Severity == hcl.DiagError && d.Subject != nil {
			e.Line = d.Subject.Start.Line
			break
		}
	}
	return e
}
