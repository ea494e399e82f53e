package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an error detected during a sync run.
//
// Runtime errors include:
//   - Configuration: a task cannot be executed as declared
//   - Inconsistent handler: the handler's result contradicts its contract
//   - Progress stall: a full batch did not move the cursor
//   - Dependency cycle: the task graph is not a DAG
//   - Task locked: another process is stepping the same task
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Task names the affected task, if any.
	Task string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeConfiguration indicates a task definition that cannot run.
	ErrCodeConfiguration RuntimeErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeInconsistentHandler indicates a handler reported records but no last record.
	ErrCodeInconsistentHandler RuntimeErrorCode = "INCONSISTENT_HANDLER"

	// ErrCodeProgressStall indicates a full batch that left the cursor unchanged.
	ErrCodeProgressStall RuntimeErrorCode = "PROGRESS_STALL"

	// ErrCodeDependencyCycle indicates the dependency graph has a cycle.
	ErrCodeDependencyCycle RuntimeErrorCode = "DEPENDENCY_CYCLE"

	// ErrCodeTaskLocked indicates another process holds the task's lock.
	ErrCodeTaskLocked RuntimeErrorCode = "TASK_LOCKED"

	// ErrCodeStepsExceeded indicates a run exceeded its step quota.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Task != "" {
		msg += fmt.Sprintf(" (task=%s)", e.Task)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConfigurationError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsInconsistentHandlerError returns true if the error reports a handler
// result that contradicts the handler contract.
func IsInconsistentHandlerError(err error) bool {
	return hasCode(err, ErrCodeInconsistentHandler)
}

// IsStallError returns true if the error is a progress stall.
func IsStallError(err error) bool {
	return hasCode(err, ErrCodeProgressStall)
}

// IsCycleError returns true if the error reports a dependency cycle.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeDependencyCycle)
}

// IsLockedError returns true if the task was locked by another process.
func IsLockedError(err error) bool {
	return hasCode(err, ErrCodeTaskLocked)
}

// IsQuotaError returns true if the run exceeded its step quota.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeStepsExceeded)
}

// NewConfigurationError creates a RuntimeError for a task that cannot run as declared.
func NewConfigurationError(task, message string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeConfiguration,
		Message: message,
		Task:    task,
		Err:     cause,
	}
}

// NewInconsistentHandlerError creates a RuntimeError for a handler that
// reported count records without a last record, or a last record with none.
func NewInconsistentHandlerError(task string, count int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInconsistentHandler,
		Message: fmt.Sprintf("handler reported count=%d without a matching last record", count),
		Task:    task,
		Details: map[string]string{
			"count": fmt.Sprintf("%d", count),
		},
	}
}

// NewStallError creates a RuntimeError for a step that did not advance the cursor.
// The usual cause is a run of tied records larger than the batch size.
func NewStallError(task string, batchSize int, cursor string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeProgressStall,
		Message: fmt.Sprintf("batch of %d did not advance the cursor; increase batch_size or refine order_by", batchSize),
		Task:    task,
		Details: map[string]string{
			"batch_size": fmt.Sprintf("%d", batchSize),
			"cursor":     cursor,
		},
	}
}

// NewCycleError creates a RuntimeError naming the tasks of a dependency cycle.
func NewCycleError(path []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDependencyCycle,
		Message: "dependency cycle: " + strings.Join(path, " → "),
		Details: map[string]string{
			"path": strings.Join(path, ","),
		},
	}
}

// NewLockedError creates a RuntimeError for a task locked elsewhere.
func NewLockedError(task string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTaskLocked,
		Message: "task is being synced by another process",
		Task:    task,
	}
}

// NewQuotaError creates a RuntimeError for a run that exceeded max steps.
func NewQuotaError(steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStepsExceeded,
		Message: fmt.Sprintf("run exceeded max steps (%d > %d)", steps, maxSteps),
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}
