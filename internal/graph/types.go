package graph

// Record is a raw task definition as read from an input file.
type Record struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Duration       int    `json:"duration"`
	PredecessorIDs []int  `json:"predecessor_ids"`
}

// Task is a Record whose predecessor ids have been resolved into the graph.
type Task struct {
	Record

	preds []int // arena indices of predecessors
	succs []int // arena indices of successors
}

// TaskGraph is a directed acyclic graph of tasks stored in an arena.
// Edges point from predecessor to dependent.
type TaskGraph struct {
	tasks []Task
	index map[int]int // task id -> arena index
	order []int       // topological order, arena indices
}

// DuplicatePolicy decides what happens when two records share an id.
type DuplicatePolicy int

const (
	// LastWriteWins keeps the later record and drops the earlier one.
	LastWriteWins DuplicatePolicy = iota
	// RejectDuplicates fails the build with ErrDuplicateTaskID.
	RejectDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case LastWriteWins:
		return "last-wins"
	case RejectDuplicates:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy maps a config/flag value to a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, bool) {
	switch s {
	case "", "last-wins":
		return LastWriteWins, true
	case "reject":
		return RejectDuplicates, true
	}
	return LastWriteWins, false
}

// Config controls graph construction.
type Config struct {
	Duplicates DuplicatePolicy
}
