package engine

import (
	"sort"

	"dayplanner/internal/core"
)

// Resolution is the dependency analysis of one day's occurrences.
type Resolution struct {
	// Order is a topological order of occurrence ids. When a cycle exists the
	// ids that never became ready are appended after the ordered ones.
	Order []string
	// Depth is the longest prerequisite chain leading to each id.
	Depth map[string]int
	// Prereqs holds, per id, the declared dependencies present today.
	Prereqs map[string][]string
	// Missing holds, per id, the declared dependencies with no occurrence today.
	Missing map[string][]string

	CycleDetected bool
	CycleIDs      []string

	buffer int
	policy MissingDependencyPolicy
}

// StartConstraint is the earliest permissible start of an occurrence given the
// placements made so far.
type StartConstraint struct {
	Earliest    core.TimeOfDay
	Constrained bool
	// Blocked is set when a prerequisite is not placed and the missing
	// dependency policy says to wait for it.
	Blocked bool
	// WaitingOn lists the prerequisites a blocked occurrence waits for.
	WaitingOn []string
}

// Resolve builds the dependency graph over occurrences and orders it with
// Kahn's algorithm. Edges exist only for dependencies present in occs.
func (e *Engine) Resolve(occs []core.Occurrence) *Resolution {
	r := &Resolution{
		Depth:   make(map[string]int, len(occs)),
		Prereqs: make(map[string][]string),
		Missing: make(map[string][]string),
		buffer:  e.opts.BufferMinutes,
		policy:  e.opts.MissingDependencies,
	}

	present := make(map[string]bool, len(occs))
	for i := range occs {
		present[occs[i].ID] = true
		r.Depth[occs[i].ID] = 0
	}

	indeg := make(map[string]int, len(occs))
	dependents := make(map[string][]string)
	for i := range occs {
		id := occs[i].ID
		seen := make(map[string]bool, len(occs[i].DependsOn))
		for _, dep := range occs[i].DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if !present[dep] {
				r.Missing[id] = append(r.Missing[id], dep)
				continue
			}
			r.Prereqs[id] = append(r.Prereqs[id], dep)
			dependents[dep] = append(dependents[dep], id)
			indeg[id]++
		}
	}

	queue := make([]string, 0, len(occs))
	for i := range occs {
		if indeg[occs[i].ID] == 0 {
			queue = append(queue, occs[i].ID)
		}
	}
	done := make(map[string]bool, len(occs))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		r.Order = append(r.Order, id)
		done[id] = true
		for _, next := range dependents[id] {
			if d := r.Depth[id] + 1; d > r.Depth[next] {
				r.Depth[next] = d
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(r.Order) < len(occs) {
		r.CycleDetected = true
		for i := range occs {
			if !done[occs[i].ID] {
				r.CycleIDs = append(r.CycleIDs, occs[i].ID)
			}
		}
		sort.Strings(r.CycleIDs)
		r.Order = append(r.Order, r.CycleIDs...)
	}
	return r
}

// EarliestStart derives the start constraint for id from the prerequisites
// already placed: the latest prerequisite end plus the buffer.
func (r *Resolution) EarliestStart(id string, placed map[string]*core.ScheduledTask) StartConstraint {
	var c StartConstraint
	for _, dep := range r.Prereqs[id] {
		p, ok := placed[dep]
		if !ok {
			if r.policy == MissingDependencyBlocking {
				c.Blocked = true
				c.WaitingOn = append(c.WaitingOn, dep)
			}
			continue
		}
		end := p.End() + core.TimeOfDay(r.buffer)
		if !c.Constrained || end > c.Earliest {
			c.Earliest = end
			c.Constrained = true
		}
	}
	if len(r.Missing[id]) > 0 && r.policy == MissingDependencyBlocking {
		c.Blocked = true
		c.WaitingOn = append(c.WaitingOn, r.Missing[id]...)
	}
	return c
}

// BlockedIDs returns the flexible occurrences the blocking policy keeps off
// the day before any placement: those with a dependency that has no
// occurrence, and those depending on one of them. Anchors are never blocked.
func (r *Resolution) BlockedIDs(occs []core.Occurrence) map[string]bool {
	blocked := make(map[string]bool)
	if r.policy != MissingDependencyBlocking {
		return blocked
	}
	fixed := make(map[string]bool, len(occs))
	for i := range occs {
		if occs[i].IsFixed() {
			fixed[occs[i].ID] = true
		}
	}
	for _, id := range r.Order {
		if fixed[id] {
			continue
		}
		if len(r.Missing[id]) > 0 {
			blocked[id] = true
			continue
		}
		for _, dep := range r.Prereqs[id] {
			if blocked[dep] {
				blocked[id] = true
				break
			}
		}
	}
	return blocked
}

// EarliestStarts evaluates EarliestStart for every occurrence. Ids without a
// placed prerequisite map to nil.
func (r *Resolution) EarliestStarts(placed map[string]*core.ScheduledTask) map[string]*core.TimeOfDay {
	out := make(map[string]*core.TimeOfDay, len(r.Order))
	for _, id := range r.Order {
		c := r.EarliestStart(id, placed)
		if !c.Constrained {
			out[id] = nil
			continue
		}
		t := c.Earliest
		out[id] = &t
	}
	return out
}
