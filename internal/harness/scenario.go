package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tasksync/internal/store"
)

// Scenario defines a sync scenario: seeded collections, tasks, the
// operations to execute and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is stamped on every logged step. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Collections are created in the catalog store and seeded with records.
	Collections map[string]CollectionDef `yaml:"collections"`

	// Tasks are applied to the catalog before the first operation.
	Tasks map[string]TaskDef `yaml:"tasks"`

	// Ops are executed in order.
	Ops []Op `yaml:"ops"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "scenario-run"

// CollectionDef declares a collection and its initial records.
type CollectionDef struct {
	Columns []store.Column   `yaml:"columns"`
	Records []map[string]any `yaml:"records,omitempty"`
}

// TaskDef declares a task. Source and target are collections of the
// catalog store.
type TaskDef struct {
	Source    string         `yaml:"source"`
	Target    string         `yaml:"target"`
	Handler   string         `yaml:"handler"`
	BatchSize int            `yaml:"batch_size"`
	OrderBy   []string       `yaml:"order_by,omitempty"`
	FilterBy  map[string]any `yaml:"filter_by,omitempty"`
	LastSync  map[string]any `yaml:"last_sync,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
}

// Op is one operation. Exactly one of Step, Run and Schedule is set.
type Op struct {
	// Step names a task to step once.
	Step string `yaml:"step,omitempty"`

	// Run names a task to step until it finishes.
	Run string `yaml:"run,omitempty"`

	// Schedule runs the scheduler over every task.
	Schedule *ScheduleOp `yaml:"schedule,omitempty"`

	// Expect is checked against the outcome. If nil, the operation must
	// succeed and nothing else is checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ScheduleOp configures a scheduler run.
type ScheduleOp struct {
	Passes   int `yaml:"passes"`
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// Expect specifies the expected outcome of an operation. Unset fields are
// not checked.
type Expect struct {
	Count    *int           `yaml:"count,omitempty"`
	Applied  *int           `yaml:"applied,omitempty"`
	Finished *bool          `yaml:"finished,omitempty"`
	Cursor   map[string]any `yaml:"cursor,omitempty"`
	Error    string         `yaml:"error,omitempty"`

	// Schedule outcomes.
	Steps           *int     `yaml:"steps,omitempty"`
	Passes          *int     `yaml:"passes,omitempty"`
	FinishedTasks   []string `yaml:"finished_tasks,omitempty"`
	UnfinishedTasks []string `yaml:"unfinished_tasks,omitempty"`
	SkippedTasks    []string `yaml:"skipped_tasks,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "collection_count": Count records in a collection
	// - "record": Check fields of the record matching Where
	// - "cursor": Check the persisted cursor of a task
	// - "step_log": Count logged steps
	Type string `yaml:"type"`

	Collection string         `yaml:"collection,omitempty"`
	Task       string         `yaml:"task,omitempty"`
	Where      map[string]any `yaml:"where,omitempty"`
	Expect     map[string]any `yaml:"expect,omitempty"`
	Count      int            `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCollectionCount = "collection_count"
	AssertRecord          = "record"
	AssertCursor          = "cursor"
	AssertStepLog         = "step_log"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.RunID == "" {
		scenario.RunID = DefaultRunID
	}
	return &scenario, nil
}

// LoadScenarioDir loads every .yaml scenario in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario %q already defined in %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Tasks) == 0 {
		return fmt.Errorf("tasks map is required and must be non-empty")
	}
	if len(s.Ops) == 0 {
		return fmt.Errorf("ops list is required and must be non-empty")
	}

	for name, c := range s.Collections {
		if len(c.Columns) == 0 {
			return fmt.Errorf("collections.%s: columns are required", name)
		}
	}

	for name, t := range s.Tasks {
		if t.Source == "" || t.Target == "" {
			return fmt.Errorf("tasks.%s: source and target are required", name)
		}
		if t.Handler == "" {
			return fmt.Errorf("tasks.%s: handler is required", name)
		}
	}

	for i, op := range s.Ops {
		set := 0
		for _, ok := range []bool{op.Step != "", op.Run != "", op.Schedule != nil} {
			if ok {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("ops[%d]: exactly one of step, run and schedule is required", i)
		}
		if task := op.Step + op.Run; task != "" {
			if _, ok := s.Tasks[task]; !ok {
				return fmt.Errorf("ops[%d]: unknown task %q", i, task)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCollectionCount:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for collection_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for collection_count", index)
		}
	case AssertRecord:
		if a.Collection == "" || len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: collection and where are required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertCursor:
		if a.Task == "" {
			return fmt.Errorf("assertions[%d]: task is required for cursor", index)
		}
	case AssertStepLog:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for step_log", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
