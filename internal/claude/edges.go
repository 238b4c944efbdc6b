package claude

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dhenderson/criticalpy/internal/graph"
)

// Rejection reasons reported by ValidateEdges.
const (
	RejectUnknownTask        = "unknown task"
	RejectUnknownPredecessor = "unknown predecessor"
	RejectSelfEdge           = "self dependency"
	RejectDuplicate          = "already a predecessor"
	RejectCycle              = "would create a cycle"
)

// RejectedEdge is an inferred edge that was not applied.
type RejectedEdge struct {
	Edge
	Why string `json:"why"`
}

// EdgeSet is the outcome of validating inferred edges against a task set.
type EdgeSet struct {
	Accepted []Edge         `json:"accepted"`
	Rejected []RejectedEdge `json:"rejected"`
	Records  []graph.Record `json:"-"` // input records with accepted edges merged in
}

// Summaries converts records into the form sent to Claude.
func Summaries(records []graph.Record) []TaskSummary {
	out := make([]TaskSummary, len(records))
	for i, r := range records {
		out[i] = TaskSummary{
			ID:             r.ID,
			Name:           r.Name,
			Duration:       r.Duration,
			PredecessorIDs: slices.Clone(r.PredecessorIDs),
		}
	}
	return out
}

// ValidateEdges applies edges to records one at a time, in order, keeping
// only those that reference known tasks, are new, and leave the graph
// acyclic. The records themselves must already form a valid graph.
func ValidateEdges(records []graph.Record, edges []Edge, cfg graph.Config) (*EdgeSet, error) {
	g, err := graph.Build(records, cfg)
	if err != nil {
		return nil, fmt.Errorf("build task graph: %w", err)
	}
	merged := g.Records()
	pos := make(map[int]int, len(merged))
	for i, r := range merged {
		pos[r.ID] = i
	}

	set := &EdgeSet{}
	reject := func(e Edge, why string) {
		set.Rejected = append(set.Rejected, RejectedEdge{Edge: e, Why: why})
	}

	for _, e := range edges {
		ti, ok := pos[e.TaskID]
		if !ok {
			reject(e, RejectUnknownTask)
			continue
		}
		if _, ok := pos[e.PredecessorID]; !ok {
			reject(e, RejectUnknownPredecessor)
			continue
		}
		if e.TaskID == e.PredecessorID {
			reject(e, RejectSelfEdge)
			continue
		}
		if slices.Contains(merged[ti].PredecessorIDs, e.PredecessorID) {
			reject(e, RejectDuplicate)
			continue
		}

		prev := merged[ti].PredecessorIDs
		merged[ti].PredecessorIDs = append(slices.Clone(prev), e.PredecessorID)
		if _, err := graph.Build(merged, cfg); err != nil {
			merged[ti].PredecessorIDs = prev
			if errors.Is(err, graph.ErrCycleDetected) {
				reject(e, RejectCycle)
				continue
			}
			return nil, fmt.Errorf("apply edge %d -> %d: %w", e.PredecessorID, e.TaskID, err)
		}
		set.Accepted = append(set.Accepted, e)
	}

	for i := range merged {
		slices.Sort(merged[i].PredecessorIDs)
	}
	set.Records = merged
	return set, nil
}
