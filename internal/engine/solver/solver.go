// Package solver places flexible tasks into the day around fixed blocks,
// honoring windows, dependencies, and no-overlap while maximizing a weighted
// objective over priority, energy alignment, and early placement.
//
// The engine is a deterministic branch-and-bound over discrete start
// candidates. Search effort is bounded by a node budget derived from the
// configured time limit so equal inputs always explore the same tree and
// return byte-identical results.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

// Status is the explicit solve outcome. No solution and timeout are results,
// not errors; the orchestrator maps them to the empty-schedule fallback.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusNoSolution Status = "no_solution"
	StatusTimeout    Status = "timeout"
)

// Solved reports whether the status carries a usable placement set.
func (s Status) Solved() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Weights are the integer objective weights.
type Weights struct {
	Priority     int
	Energy       int
	StartPenalty int
}

// DefaultWeights returns the standard objective weights.
func DefaultWeights() Weights {
	return Weights{Priority: 10, Energy: 5, StartPenalty: 1}
}

// Task is the solver's view of one schedulable task.
type Task struct {
	ID              uuid.UUID
	DurationMinutes int
	Priority        int
	Energy          int
	EarliestStart   *int
	LatestEnd       *int
	Dependencies    []uuid.UUID
}

// Input bundles everything one solve needs. The solver reads it without
// mutation, so a single Solver value is safe for concurrent calls.
type Input struct {
	DayStart      int
	DayEnd        int
	Tasks         []Task
	FixedEvents   []domain.FixedEvent
	EnergyPattern domain.EnergyPattern
	TimeLimit     time.Duration
	Weights       Weights
}

// Placement is one solved task interval.
type Placement struct {
	TaskID       uuid.UUID `json:"task_id"`
	StartMinutes int       `json:"start_minutes"`
	EndMinutes   int       `json:"end_minutes"`
}

// Result is the outcome of one solve.
type Result struct {
	Status     Status
	Placements []Placement
	Objective  int
	Warnings   []string
}

// DefaultTimeLimit bounds the search when the input does not.
const DefaultTimeLimit = 30 * time.Second

// nodesPerSecond converts the wall-clock time limit into a deterministic
// search budget.
const nodesPerSecond = 100_000

// Solver runs constraint solves. It holds only configuration.
type Solver struct {
	logger *slog.Logger
}

// New builds a solver.
func New(logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{logger: logger}
}

// task augments an input task with its computed start domain.
type task struct {
	Task
	lo        int // earliest permissible start
	hi        int // latest permissible start
	deps      []int
	maxEnergy int // best energy match over all hours, for bounding
}

type searchState struct {
	tasks      []task
	fixed      []domain.FixedEvent
	energy     [24][4]int // energy match table, indexed [hour][energyLevel]
	weights    Weights
	dayEnd     int
	nodeBudget int64
	nodes      int64
	ctx        context.Context
	cancelled  bool

	starts    []int // current start per task, -1 when unplaced
	best      []int
	bestScore int
	haveBest  bool
	exhausted bool
}

// Solve places all feasible tasks. Tasks whose window cannot fit their
// duration are dropped with a warning; dependencies referencing tasks
// outside the batch are ignored with a warning.
func (s *Solver) Solve(ctx context.Context, in Input) Result {
	if in.DayStart < 0 || in.DayEnd > timeutil.MinutesPerDay || in.DayStart >= in.DayEnd {
		return Result{
			Status:   StatusNoSolution,
			Warnings: []string{fmt.Sprintf("invalid day window [%d,%d]", in.DayStart, in.DayEnd)},
		}
	}
	if in.Weights == (Weights{}) {
		in.Weights = DefaultWeights()
	}
	if in.TimeLimit <= 0 {
		in.TimeLimit = DefaultTimeLimit
	}

	var warnings []string

	inBatch := make(map[uuid.UUID]int, len(in.Tasks))
	for i, t := range in.Tasks {
		inBatch[t.ID] = i
	}

	// Compute start domains; drop tasks that cannot fit their own window.
	energyTable := buildEnergyTable(in.EnergyPattern)
	var tasks []task
	kept := make(map[uuid.UUID]bool, len(in.Tasks))
	for _, t := range in.Tasks {
		lo := in.DayStart
		if t.EarliestStart != nil && *t.EarliestStart > lo {
			lo = *t.EarliestStart
		}
		end := in.DayEnd
		if t.LatestEnd != nil && *t.LatestEnd < end {
			end = *t.LatestEnd
		}
		hi := end - t.DurationMinutes
		if t.DurationMinutes <= 0 || hi < lo {
			warnings = append(warnings, fmt.Sprintf("task %s is infeasible within its window and was dropped", t.ID))
			continue
		}
		if t.Energy < domain.EnergyLow {
			t.Energy = domain.EnergyLow
		}
		if t.Energy > domain.EnergyHigh {
			t.Energy = domain.EnergyHigh
		}
		maxEnergy := 0
		for h := 0; h < 24; h++ {
			if m := energyTable[h][t.Energy]; m > maxEnergy {
				maxEnergy = m
			}
		}
		tasks = append(tasks, task{Task: t, lo: lo, hi: hi, maxEnergy: maxEnergy})
		kept[t.ID] = true
	}

	// Resolve dependency edges against the kept set.
	index := make(map[uuid.UUID]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	for i := range tasks {
		for _, dep := range tasks[i].Dependencies {
			if j, ok := index[dep]; ok {
				tasks[i].deps = append(tasks[i].deps, j)
				continue
			}
			if _, inputHas := inBatch[dep]; inputHas && !kept[dep] {
				warnings = append(warnings, fmt.Sprintf("task %s depends on dropped task %s; constraint ignored", tasks[i].ID, dep))
			} else {
				warnings = append(warnings, fmt.Sprintf("task %s depends on %s which is not in this batch; constraint ignored", tasks[i].ID, dep))
			}
		}
	}

	if len(tasks) == 0 {
		return Result{Status: StatusOptimal, Warnings: warnings}
	}

	ordered, err := topoOrder(tasks)
	if err != nil {
		warnings = append(warnings, err.Error())
		return Result{Status: StatusNoSolution, Warnings: warnings}
	}

	fixed := normalizeFixed(in.FixedEvents, in.DayStart, in.DayEnd)

	st := &searchState{
		tasks:      ordered,
		fixed:      fixed,
		energy:     energyTable,
		weights:    in.Weights,
		dayEnd:     in.DayEnd,
		nodeBudget: int64(in.TimeLimit.Seconds() * nodesPerSecond),
		ctx:        ctx,
		starts:     make([]int, len(ordered)),
		best:       make([]int, len(ordered)),
	}
	for i := range st.starts {
		st.starts[i] = -1
	}
	st.exhausted = st.search(0, 0)

	if !st.haveBest {
		if st.cancelled || !st.exhausted {
			return Result{Status: StatusTimeout, Warnings: append(warnings, "search budget exhausted before a solution was found")}
		}
		return Result{Status: StatusNoSolution, Warnings: append(warnings, "no feasible placement exists for the given constraints")}
	}

	placements := make([]Placement, len(ordered))
	for i, t := range ordered {
		placements[i] = Placement{
			TaskID:       t.ID,
			StartMinutes: st.best[i],
			EndMinutes:   st.best[i] + t.DurationMinutes,
		}
	}
	sort.Slice(placements, func(i, j int) bool {
		if placements[i].StartMinutes != placements[j].StartMinutes {
			return placements[i].StartMinutes < placements[j].StartMinutes
		}
		return placements[i].TaskID.String() < placements[j].TaskID.String()
	})

	status := StatusFeasible
	if st.exhausted {
		status = StatusOptimal
	}
	s.logger.Debug("solve finished",
		"status", status,
		"tasks", len(ordered),
		"objective", st.bestScore,
		"nodes", st.nodes,
	)
	return Result{Status: status, Placements: placements, Objective: st.bestScore, Warnings: warnings}
}

// search explores placements for tasks[i:] given the current partial
// assignment worth score. It returns true when the subtree was fully
// explored within budget.
func (st *searchState) search(i int, score int) bool {
	st.nodes++
	if st.nodes > st.nodeBudget {
		return false
	}
	if st.nodes%1024 == 0 && st.ctx.Err() != nil {
		st.cancelled = true
		return false
	}

	if i == len(st.tasks) {
		if !st.haveBest || score > st.bestScore {
			copy(st.best, st.starts)
			st.bestScore = score
			st.haveBest = true
		}
		return true
	}

	// Optimistic bound on the remaining tasks.
	if st.haveBest {
		bound := score
		for j := i; j < len(st.tasks); j++ {
			t := &st.tasks[j]
			bound += st.weights.Priority*t.Priority + st.weights.Energy*t.maxEnergy - st.weights.StartPenalty*t.lo
		}
		if bound <= st.bestScore {
			return true
		}
	}

	t := &st.tasks[i]
	lo := t.lo
	for _, dep := range t.deps {
		if end := st.starts[dep] + st.tasks[dep].DurationMinutes; end > lo {
			lo = end
		}
	}

	exhausted := true
	for _, start := range st.candidates(i, lo, t.hi, t.DurationMinutes) {
		st.starts[i] = start
		hour := start / 60
		if hour > 23 {
			hour = 23
		}
		gain := st.weights.Priority*t.Priority +
			st.weights.Energy*st.energy[hour][t.Energy] -
			st.weights.StartPenalty*start
		if !st.search(i+1, score+gain) {
			exhausted = false
		}
		st.starts[i] = -1
		if st.cancelled || st.nodes > st.nodeBudget {
			return false
		}
	}
	return exhausted
}

// candidates enumerates start minutes for task i in ascending order: the
// earliest point of each free run, every hour boundary inside it, and every
// anchor that butts the task against another task's window edge. The start
// penalty makes other intermediate positions dominated, and hour boundaries
// are where the energy term changes.
func (st *searchState) candidates(i, lo, hi, duration int) []int {
	blocked := st.blockedIntervals(i)
	anchors := st.anchorStarts(i, duration)
	var out []int

	cursor := lo
	for _, b := range blocked {
		if b.end <= cursor {
			continue
		}
		if b.start > cursor {
			st.appendRun(&out, cursor, minInt(b.start-duration, hi), duration, anchors)
		}
		cursor = maxInt(cursor, b.end)
		if cursor > hi {
			break
		}
	}
	if cursor <= hi {
		st.appendRun(&out, cursor, hi, duration, anchors)
	}

	sort.Ints(out)
	dedup := out[:0]
	for _, s := range out {
		if len(dedup) == 0 || dedup[len(dedup)-1] != s {
			dedup = append(dedup, s)
		}
	}
	return dedup
}

// anchorStarts lists starts that place task i flush against the window edge
// of a task that is not placed yet: ending exactly at its earliest start, or
// beginning exactly at its latest end. A tightly windowed later task can
// make every leftmost-or-boundary start infeasible, so without these the
// search would miss arrangements the windows force.
func (st *searchState) anchorStarts(i, duration int) []int {
	var anchors []int
	for j := range st.tasks {
		if j == i || st.starts[j] >= 0 {
			continue
		}
		tj := &st.tasks[j]
		anchors = append(anchors, tj.lo-duration, tj.hi+tj.DurationMinutes)
	}
	return anchors
}

// appendRun adds the leading edge of a free run, the hour boundaries inside
// it, and the anchors that fall within it.
func (st *searchState) appendRun(out *[]int, from, to, duration int, anchors []int) {
	if to < from || from+duration > st.dayEnd {
		return
	}
	*out = append(*out, from)
	for h := from/60 + 1; h*60 <= to; h++ {
		boundary := h * 60
		if boundary > from && boundary+duration <= st.dayEnd {
			*out = append(*out, boundary)
		}
	}
	for _, a := range anchors {
		if a > from && a <= to {
			*out = append(*out, a)
		}
	}
}

type interval struct {
	start int
	end   int
}

// blockedIntervals merges fixed events and already-placed tasks into a
// sorted, disjoint list.
func (st *searchState) blockedIntervals(upto int) []interval {
	blocked := make([]interval, 0, len(st.fixed)+upto)
	for _, f := range st.fixed {
		blocked = append(blocked, interval{start: f.StartMinutes, end: f.EndMinutes})
	}
	for j := 0; j < len(st.tasks); j++ {
		if j != upto && st.starts[j] >= 0 {
			blocked = append(blocked, interval{start: st.starts[j], end: st.starts[j] + st.tasks[j].DurationMinutes})
		}
	}
	sort.Slice(blocked, func(a, b int) bool { return blocked[a].start < blocked[b].start })

	merged := blocked[:0]
	for _, b := range blocked {
		if len(merged) > 0 && b.start <= merged[len(merged)-1].end {
			if b.end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = b.end
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// buildEnergyTable precomputes round(100*(1-|pattern[hour]-level/3|)) for
// every hour and energy level. Index 0 is unused so levels address directly.
func buildEnergyTable(pattern domain.EnergyPattern) [24][4]int {
	var table [24][4]int
	for h := 0; h < 24; h++ {
		for level := 1; level <= 3; level++ {
			match := 1 - math.Abs(pattern[h]-float64(level)/3.0)
			table[h][level] = int(math.Round(100 * match))
		}
	}
	return table
}

// topoOrder sorts tasks so prerequisites precede dependents, breaking ties
// by descending priority then ascending id. The order fixes the search tree
// shape, which keeps results deterministic.
func topoOrder(tasks []task) ([]task, error) {
	n := len(tasks)
	pref := make([]int, n)
	for i := range pref {
		pref[i] = i
	}
	sort.Slice(pref, func(a, b int) bool {
		ta, tb := tasks[pref[a]], tasks[pref[b]]
		if ta.Priority != tb.Priority {
			return ta.Priority > tb.Priority
		}
		return ta.ID.String() < tb.ID.String()
	})

	state := make([]int, n) // 0 unvisited, 1 visiting, 2 done
	order := make([]int, 0, n)
	var visit func(int) error
	visit = func(i int) error {
		switch state[i] {
		case 1:
			return fmt.Errorf("dependency cycle involving task %s", tasks[i].ID)
		case 2:
			return nil
		}
		state[i] = 1
		for _, dep := range tasks[i].deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[i] = 2
		order = append(order, i)
		return nil
	}
	for _, i := range pref {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	remap := make([]int, n)
	out := make([]task, n)
	for newIdx, oldIdx := range order {
		remap[oldIdx] = newIdx
		out[newIdx] = tasks[oldIdx]
	}
	for i := range out {
		deps := make([]int, len(out[i].deps))
		for k, d := range out[i].deps {
			deps[k] = remap[d]
		}
		out[i].deps = deps
	}
	return out, nil
}

// normalizeFixed clips fixed events to the day window and drops empty
// results, returning a sorted list.
func normalizeFixed(events []domain.FixedEvent, dayStart, dayEnd int) []domain.FixedEvent {
	out := make([]domain.FixedEvent, 0, len(events))
	for _, e := range events {
		start := maxInt(e.StartMinutes, 0)
		end := minInt(e.EndMinutes, timeutil.MinutesPerDay)
		if start >= end {
			continue
		}
		e.StartMinutes = start
		e.EndMinutes = end
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinutes != out[j].StartMinutes {
			return out[i].StartMinutes < out[j].StartMinutes
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
