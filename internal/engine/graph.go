package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/tasksync/internal/ir"
)

// Graph is the task dependency DAG, loaded once per run.
//
// Tasks are copied on construction; the runner mutates LastSync on its own
// copies, never on the caller's slice.
type Graph struct {
	tasks      map[string]*ir.Task
	names      []string            // sorted
	dependents map[string][]string // dependency → tasks that depend on it, sorted
}

// NewGraph validates tasks and builds the dependency graph.
//
// Fails with a configuration error for an invalid task, a duplicate name or a
// dependency on an unknown task, and with a DEPENDENCY_CYCLE error when the
// dependencies do not form a DAG.
func NewGraph(tasks []ir.Task) (*Graph, error) {
	g := &Graph{
		tasks:      make(map[string]*ir.Task, len(tasks)),
		names:      make([]string, 0, len(tasks)),
		dependents: make(map[string][]string),
	}

	var errs []error
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			errs = append(errs, NewConfigurationError(t.Name, "invalid task definition", err))
			continue
		}
		if _, dup := g.tasks[t.Name]; dup {
			errs = append(errs, NewConfigurationError(t.Name, "duplicate task name", nil))
			continue
		}
		c := t.Clone()
		g.tasks[t.Name] = &c
		g.names = append(g.names, t.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	slices.Sort(g.names)

	for _, name := range g.names {
		for _, dep := range g.tasks[name].Dependencies {
			if _, ok := g.tasks[dep]; !ok {
				errs = append(errs, NewConfigurationError(name, fmt.Sprintf("unknown dependency %q", dep), nil))
				continue
			}
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for dep := range g.dependents {
		slices.Sort(g.dependents[dep])
	}

	if path := g.findCycle(); path != nil {
		return nil, NewCycleError(path)
	}
	return g, nil
}

// Task returns the graph's copy of the named task.
func (g *Graph) Task(name string) (*ir.Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Names returns every task name in ascending order.
func (g *Graph) Names() []string {
	return slices.Clone(g.names)
}

// Dependents returns the tasks that depend on name, in ascending order.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.dependents[name])
}

// Dependencies returns the tasks name depends on.
func (g *Graph) Dependencies(name string) []string {
	t, ok := g.tasks[name]
	if !ok {
		return nil
	}
	return slices.Clone(t.Dependencies)
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.names)
}

// findCycle runs Tarjan's algorithm over the dependency edges and returns the
// path of the first cycle found, or nil for a DAG. Self-dependencies are
// rejected earlier by task validation.
func (g *Graph) findCycle() []string {
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 {
			return g.cyclePath(scc)
		}
	}
	return nil
}

// tarjanSCC returns the strongly connected components of the dependency graph.
// Nodes are visited in name order so the result is deterministic.
func (g *Graph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.tasks[v].Dependencies {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, name := range g.names {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}
	return sccs
}

// cyclePath finds the shortest cycle through the lowest-named member of scc
// by breadth-first search restricted to the component. The path starts and
// ends with that member, following "depends on" edges.
func (g *Graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := slices.Min(scc)

	prev := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		deps := slices.Sorted(slices.Values(g.tasks[cur].Dependencies))
		for _, next := range deps {
			if !members[next] {
				continue
			}
			if next == start {
				path := []string{start}
				for n := cur; n != start; n = prev[n] {
					path = append(path, n)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	// Unreachable for a genuine component; report its members.
	return append(slices.Sorted(slices.Values(scc)), start)
}
