package cpm

import "github.com/dhenderson/criticalpy/internal/graph"

// ScheduledTask holds the finished schedule for a single task.
// Times are 1-based: a root task of duration 3 occupies units 1..3.
type ScheduledTask struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Duration       int    `json:"duration"`
	PredecessorIDs []int  `json:"predecessor_ids"`

	EarlyStart  int  `json:"early_start"`
	EarlyFinish int  `json:"early_finish"`
	LateStart   int  `json:"late_start"`
	LateFinish  int  `json:"late_finish"`
	Slack       int  `json:"slack"`
	Critical    bool `json:"critical"`
	Wave        int  `json:"wave"` // which parallel wave this belongs to
}

// Wave represents a group of tasks sharing the same early start.
type Wave struct {
	Index      int   `json:"index"`
	Start      int   `json:"start"`
	TaskIDs    []int `json:"task_ids"`
	IsCritical bool  `json:"is_critical"` // true if wave contains critical path tasks
}

// SinkPolicy decides how the backward pass is seeded.
type SinkPolicy int

const (
	// AllSinks seeds every task with no successors at the project finish.
	AllSinks SinkPolicy = iota
	// SingleSink requires exactly one task with no successors.
	SingleSink
)

func (p SinkPolicy) String() string {
	switch p {
	case AllSinks:
		return "all-sinks"
	case SingleSink:
		return "single-sink"
	default:
		return "unknown"
	}
}

// ParseSinkPolicy maps a config/flag value to a SinkPolicy.
func ParseSinkPolicy(s string) (SinkPolicy, bool) {
	switch s {
	case "", "all-sinks":
		return AllSinks, true
	case "single-sink":
		return SingleSink, true
	}
	return AllSinks, false
}

// Config controls project construction.
type Config struct {
	Graph graph.Config
	Sinks SinkPolicy
}

// slot is the per-task working record the passes write into.
// The done flags mark which half of the schedule has been computed.
type slot struct {
	es, ef       int
	ls, lf       int
	forwardDone  bool
	backwardDone bool
}
