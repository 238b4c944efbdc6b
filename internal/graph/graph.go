package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// Build constructs a TaskGraph from raw records. Records are applied in
// order, so with LastWriteWins a later record replaces an earlier one that
// shares its id. Predecessor ids are resolved immediately and the graph is
// rejected if it references missing tasks or contains a cycle.
func Build(records []Record, cfg Config) (*TaskGraph, error) {
	g := &TaskGraph{
		index: make(map[int]int, len(records)),
	}

	// Index all tasks
	for _, rec := range records {
		rec.PredecessorIDs = slices.Clone(rec.PredecessorIDs)
		if i, ok := g.index[rec.ID]; ok {
			if cfg.Duplicates == RejectDuplicates {
				return nil, &DuplicateTaskIDError{TaskID: rec.ID}
			}
			g.tasks[i] = Task{Record: rec}
			continue
		}
		g.index[rec.ID] = len(g.tasks)
		g.tasks = append(g.tasks, Task{Record: rec})
	}

	for i := range g.tasks {
		if d := g.tasks[i].Duration; d <= 0 {
			return nil, fmt.Errorf("%w: task %d has duration %d", ErrInvalidDuration, g.tasks[i].ID, d)
		}
	}

	// Resolve predecessor ids into arena edges.
	for i := range g.tasks {
		t := &g.tasks[i]
		seen := make(map[int]bool, len(t.PredecessorIDs))
		for _, pid := range t.PredecessorIDs {
			if seen[pid] {
				return nil, fmt.Errorf("%w: task %d lists %d more than once", ErrDuplicatePredecessor, t.ID, pid)
			}
			seen[pid] = true

			j, ok := g.index[pid]
			if !ok {
				return nil, &UnknownPredecessorError{TaskID: t.ID, PredecessorID: pid}
			}
			t.preds = append(t.preds, j)
			g.tasks[j].succs = append(g.tasks[j].succs, i)
		}
	}

	// Sort adjacency lists by id for deterministic ordering
	byID := func(a, b int) int { return cmp.Compare(g.tasks[a].ID, g.tasks[b].ID) }
	for i := range g.tasks {
		slices.SortFunc(g.tasks[i].preds, byID)
		slices.SortFunc(g.tasks[i].succs, byID)
	}

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// DetectCycle returns a cycle as a list of task ids (first id repeated at the
// end) if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *TaskGraph) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.tasks))
	parent := make([]int, len(g.tasks))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range g.tasks[node].succs {
			if color[next] == gray {
				// Found a cycle, walk parents back to next
				cycle := []int{g.tasks[next].ID, g.tasks[node].ID}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, g.tasks[cur].ID)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, i := range g.sortedIndices() {
		if color[i] == white {
			if cycle := dfs(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort performs Kahn's algorithm. The ready set is always drained
// smallest id first, so when ids already respect dependency order the
// result is plain ascending id order.
func (g *TaskGraph) topoSort() ([]int, error) {
	inDegree := make([]int, len(g.tasks))
	var ready []int
	for i := range g.tasks {
		inDegree[i] = len(g.tasks[i].preds)
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	byID := func(a, b int) int { return cmp.Compare(g.tasks[a].ID, g.tasks[b].ID) }
	slices.SortFunc(ready, byID)

	order := make([]int, 0, len(g.tasks))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		added := false
		for _, succ := range g.tasks[node].succs {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
				added = true
			}
		}
		if added {
			slices.SortFunc(ready, byID)
		}
	}

	if len(order) != len(g.tasks) {
		return nil, fmt.Errorf("%w: %d of %d tasks sorted", ErrCycleDetected, len(order), len(g.tasks))
	}
	return order, nil
}

func (g *TaskGraph) sortedIndices() []int {
	idx := make([]int, len(g.tasks))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return cmp.Compare(g.tasks[a].ID, g.tasks[b].ID) })
	return idx
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int {
	return len(g.tasks)
}

// At returns the task stored at arena index i.
func (g *TaskGraph) At(i int) Task {
	return g.tasks[i]
}

// Index returns the arena index of the task with the given id.
func (g *TaskGraph) Index(id int) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Order returns the arena indices in topological order.
func (g *TaskGraph) Order() []int {
	return slices.Clone(g.order)
}

// PredecessorIndices returns arena indices of t's predecessors, sorted by id.
func (t Task) PredecessorIndices() []int {
	return t.preds
}

// SuccessorIndices returns arena indices of tasks that depend on t, sorted by id.
func (t Task) SuccessorIndices() []int {
	return t.succs
}

// IDs returns every task id in ascending order.
func (g *TaskGraph) IDs() []int {
	ids := make([]int, 0, len(g.tasks))
	for _, i := range g.sortedIndices() {
		ids = append(ids, g.tasks[i].ID)
	}
	return ids
}

// TopoIDs returns task ids in the topological order used for scheduling.
func (g *TaskGraph) TopoIDs() []int {
	ids := make([]int, len(g.order))
	for k, i := range g.order {
		ids[k] = g.tasks[i].ID
	}
	return ids
}

// Lookup returns the record for id.
func (g *TaskGraph) Lookup(id int) (Record, bool) {
	i, ok := g.index[id]
	if !ok {
		return Record{}, false
	}
	rec := g.tasks[i].Record
	rec.PredecessorIDs = slices.Clone(rec.PredecessorIDs)
	return rec, true
}

// Records returns all records in ascending id order.
func (g *TaskGraph) Records() []Record {
	out := make([]Record, 0, len(g.tasks))
	for _, id := range g.IDs() {
		rec, _ := g.Lookup(id)
		out = append(out, rec)
	}
	return out
}

// Roots returns ids of tasks with no predecessors, ascending.
func (g *TaskGraph) Roots() []int {
	return g.collect(func(t Task) bool { return len(t.preds) == 0 })
}

// Sinks returns ids of tasks nothing depends on, ascending.
func (g *TaskGraph) Sinks() []int {
	return g.collect(func(t Task) bool { return len(t.succs) == 0 })
}

// Successors returns the ids of tasks that list id as a predecessor.
func (g *TaskGraph) Successors(id int) []int {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.tasks[i].succs)
}

// Predecessors returns the ids id depends on, ascending.
func (g *TaskGraph) Predecessors(id int) []int {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.tasks[i].preds)
}

func (g *TaskGraph) idsOf(indices []int) []int {
	out := make([]int, len(indices))
	for k, j := range indices {
		out[k] = g.tasks[j].ID
	}
	return out
}

func (g *TaskGraph) collect(pred func(Task) bool) []int {
	var ids []int
	for _, i := range g.sortedIndices() {
		if pred(g.tasks[i]) {
			ids = append(ids, g.tasks[i].ID)
		}
	}
	return ids
}
