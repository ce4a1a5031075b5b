package core

import "fmt"

// ValidationError reports a malformed task definition field.
type ValidationError struct {
	ID      string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("task %s: %s: %s", e.ID, e.Field, e.Message)
}

// CycleError indicates a dependency from -> to would close a cycle.
type CycleError struct {
	From string
	To   string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.From, e.To)
}

// UnknownDependencyError indicates a definition depends on an id that does not exist.
type UnknownDependencyError struct {
	ID        string
	DependsOn string
}

func (e UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.ID, e.DependsOn)
}
