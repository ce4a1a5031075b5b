// Package planfile reads task definitions and sleep windows from a YAML file
// for offline planning.
package planfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dayplanner/internal/catalog"
	"dayplanner/internal/core"
)

// File is the decoded content of a plan file.
//
//	sleep: {wakeTime: "06:30", sleepTime: "23:00"}
//	sleepOverrides:
//	  2026-03-14: {wakeTime: "08:00", sleepTime: "01:00"}
//	tasks:
//	  - id: standup
//	    name: Standup
//	    durationMinutes: 15
//	    schedulingType: fixed
//	    defaultTime: "09:00"
//	    recurrence: {frequency: custom, customPattern: weekdays, startDate: 2026-01-05}
type File struct {
	Sleep          *core.SleepWindow
	SleepOverrides map[core.Date]core.SleepWindow
	Tasks          []*core.TaskDefinition
}

type rawFile struct {
	Sleep          *core.SleepWindow           `yaml:"sleep"`
	SleepOverrides map[string]core.SleepWindow `yaml:"sleepOverrides"`
	Tasks          []yaml.Node                 `yaml:"tasks"`
}

// Load reads path. Tasks default to active and get the same defaults as
// tasks created through the API, with today as the recurrence start.
func Load(path string, today core.Date) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data, today)
}

// Parse decodes a plan file body.
func Parse(data []byte, today core.Date) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode plan file: %w", err)
	}

	f := &File{Sleep: raw.Sleep, SleepOverrides: make(map[core.Date]core.SleepWindow, len(raw.SleepOverrides))}
	for key, w := range raw.SleepOverrides {
		date, err := core.ParseDate(key)
		if err != nil {
			return nil, fmt.Errorf("sleepOverrides: %w", err)
		}
		f.SleepOverrides[date] = w
	}
	for i := range raw.Tasks {
		def := &core.TaskDefinition{IsActive: true}
		if err := raw.Tasks[i].Decode(def); err != nil {
			return nil, fmt.Errorf("task %d (line %d): %w", i+1, raw.Tasks[i].Line, err)
		}
		catalog.ApplyDefaults(def, today)
		f.Tasks = append(f.Tasks, def)
	}
	return f, nil
}

// SleepFor returns the override of date, else the file default, else fallback.
func (f *File) SleepFor(date core.Date, fallback core.SleepWindow) core.SleepWindow {
	if w, ok := f.SleepOverrides[date]; ok {
		return w
	}
	if f.Sleep != nil {
		return *f.Sleep
	}
	return fallback
}

// Validate checks every definition and the dependency graph. It returns all
// per-task problems and the graph error, if any.
func (f *File) Validate() []error {
	var errs []error
	seen := make(map[string]bool, len(f.Tasks))
	for _, def := range f.Tasks {
		if err := core.ValidateDefinition(def); err != nil {
			errs = append(errs, err)
		}
		if seen[def.ID] {
			errs = append(errs, catalog.DuplicateError{ID: def.ID})
		}
		seen[def.ID] = true
	}
	if err := core.ValidateDependencies(f.Tasks); err != nil {
		errs = append(errs, err)
	}
	for date, w := range f.SleepOverrides {
		if err := catalog.ValidateSleepWindow(w); err != nil {
			errs = append(errs, fmt.Errorf("sleep override %s: %w", date, err))
		}
	}
	if f.Sleep != nil {
		if err := catalog.ValidateSleepWindow(*f.Sleep); err != nil {
			errs = append(errs, fmt.Errorf("sleep: %w", err))
		}
	}
	return errs
}
