package cpm

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/dhenderson/criticalpy/internal/graph"
)

var (
	// ErrMultipleSinks is returned under SingleSink when more than one task
	// has no successors.
	ErrMultipleSinks = errors.New("project has more than one end task")
	// ErrOrderViolation means a pass reached a task before the tasks it reads.
	// graph.Build never produces such an order; the check guards the passes
	// against a bad order slice.
	ErrOrderViolation = errors.New("schedule order violated")
	// ErrScheduleOverflow is returned when an early finish does not fit in
	// an int.
	ErrScheduleOverflow = errors.New("schedule exceeds representable time")
)

// Project is a finished CPM schedule. It is immutable once returned and
// safe for concurrent readers.
type Project struct {
	tasks        []ScheduledTask // ascending id
	index        map[int]int
	order        []int
	criticalPath []int
	waves        []Wave
	finish       int
}

// New builds the task graph from records and schedules it.
func New(records []graph.Record, cfg Config) (*Project, error) {
	g, err := graph.Build(records, cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("build task graph: %w", err)
	}
	return Analyze(g, cfg)
}

// Analyze runs the forward and backward passes over a built graph.
func Analyze(g *graph.TaskGraph, cfg Config) (*Project, error) {
	if cfg.Sinks == SingleSink {
		if sinks := g.Sinks(); len(sinks) > 1 {
			return nil, fmt.Errorf("%w: tasks %v have no dependents", ErrMultipleSinks, sinks)
		}
	}

	work := make([]slot, g.Len())
	order := g.Order()

	if err := forwardPass(g, order, work); err != nil {
		return nil, err
	}

	// Project finish is the latest early finish. Every task reaches some
	// sink, so this is also the maximum over sinks.
	finish := 0
	for i := range work {
		if work[i].ef > finish {
			finish = work[i].ef
		}
	}

	if err := backwardPass(g, order, work, finish); err != nil {
		return nil, err
	}

	return finalise(g, work, finish), nil
}

// forwardPass computes early start and finish in topological order.
func forwardPass(g *graph.TaskGraph, order []int, work []slot) error {
	for _, i := range order {
		t := g.At(i)
		es := 1
		for _, p := range t.PredecessorIndices() {
			if !work[p].forwardDone {
				return fmt.Errorf("%w: task %d scheduled before predecessor %d", ErrOrderViolation, t.ID, g.At(p).ID)
			}
			if work[p].ef == math.MaxInt {
				return fmt.Errorf("%w: task %d starts after time %d", ErrScheduleOverflow, t.ID, math.MaxInt)
			}
			if work[p].ef+1 > es {
				es = work[p].ef + 1
			}
		}
		if t.Duration-1 > math.MaxInt-es {
			return fmt.Errorf("%w: task %d starting at %d with duration %d", ErrScheduleOverflow, t.ID, es, t.Duration)
		}
		work[i].es = es
		work[i].ef = es + t.Duration - 1
		work[i].forwardDone = true
	}
	return nil
}

// backwardPass computes late finish and start in reverse topological order.
// Sinks finish at the project finish; every other task must finish one unit
// before the earliest late start among its successors.
func backwardPass(g *graph.TaskGraph, order []int, work []slot, finish int) error {
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		t := g.At(i)

		lf := finish
		if succs := t.SuccessorIndices(); len(succs) > 0 {
			lf = 0
			for n, s := range succs {
				if !work[s].backwardDone {
					return fmt.Errorf("%w: task %d scheduled before successor %d", ErrOrderViolation, t.ID, g.At(s).ID)
				}
				if n == 0 || work[s].ls-1 < lf {
					lf = work[s].ls - 1
				}
			}
		}
		work[i].lf = lf
		work[i].ls = lf - t.Duration + 1
		work[i].backwardDone = true
	}
	return nil
}

// finalise copies the working records into the immutable Project.
func finalise(g *graph.TaskGraph, work []slot, finish int) *Project {
	p := &Project{
		tasks:  make([]ScheduledTask, 0, g.Len()),
		index:  make(map[int]int, g.Len()),
		order:  g.TopoIDs(),
		finish: finish,
	}

	for _, id := range g.IDs() {
		i, _ := g.Index(id)
		t := g.At(i)
		w := work[i]
		st := ScheduledTask{
			ID:             t.ID,
			Name:           t.Name,
			Duration:       t.Duration,
			PredecessorIDs: slices.Sorted(slices.Values(t.PredecessorIDs)),
			EarlyStart:     w.es,
			EarlyFinish:    w.ef,
			LateStart:      w.ls,
			LateFinish:     w.lf,
			Slack:          w.ls - w.es,
		}
		st.Critical = st.Slack == 0
		p.index[id] = len(p.tasks)
		p.tasks = append(p.tasks, st)
	}

	// Build critical path (critical tasks in topological order)
	for _, id := range p.order {
		if p.tasks[p.index[id]].Critical {
			p.criticalPath = append(p.criticalPath, id)
		}
	}

	p.waves = computeWaves(p)
	return p
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(p *Project) []Wave {
	esGroups := make(map[int][]int)
	for _, id := range p.order {
		es := p.tasks[p.index[id]].EarlyStart
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]
		sort.Ints(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			p.tasks[p.index[id]].Wave = i
			if p.tasks[p.index[id]].Critical {
				hasCritical = true
			}
		}

		// Sort critical tasks first within wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			return p.tasks[p.index[taskIDs[a]]].Critical && !p.tasks[p.index[taskIDs[b]]].Critical
		})

		waves[i] = Wave{
			Index:      i,
			Start:      es,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}

// Finish returns the project's finish time, 0 for an empty project.
func (p *Project) Finish() int {
	return p.finish
}

// Len returns the number of scheduled tasks.
func (p *Project) Len() int {
	return len(p.tasks)
}

// Tasks returns every scheduled task in ascending id order.
func (p *Project) Tasks() []ScheduledTask {
	out := make([]ScheduledTask, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.clone()
	}
	return out
}

// Task returns the schedule for one task.
func (p *Project) Task(id int) (ScheduledTask, bool) {
	i, ok := p.index[id]
	if !ok {
		return ScheduledTask{}, false
	}
	return p.tasks[i].clone(), true
}

// CriticalPath returns the ids of zero-slack tasks in topological order.
func (p *Project) CriticalPath() []int {
	return slices.Clone(p.criticalPath)
}

// Order returns task ids in the topological order the passes used.
func (p *Project) Order() []int {
	return slices.Clone(p.order)
}

// Waves returns tasks grouped by early start, earliest first.
func (p *Project) Waves() []Wave {
	out := make([]Wave, len(p.waves))
	for i, w := range p.waves {
		w.TaskIDs = slices.Clone(w.TaskIDs)
		out[i] = w
	}
	return out
}

func (t ScheduledTask) clone() ScheduledTask {
	t.PredecessorIDs = slices.Clone(t.PredecessorIDs)
	return t
}
