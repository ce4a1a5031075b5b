package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"dayplanner/internal/core"
	"dayplanner/internal/engine"
	"dayplanner/internal/planfile"
	"dayplanner/internal/recurrence"
	"dayplanner/internal/report"
)

// errInvalidPlan makes validate exit non-zero after printing its findings.
var errInvalidPlan = errors.New("plan file is invalid")

type rootOptions struct {
	file       string
	jsonOutput bool
	now        func() time.Time
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{now: time.Now}
	cmd := &cobra.Command{
		Use:          "dayplan",
		Short:        "Plan a day from recurring task definitions",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.file, "file", "f", "dayplan.yaml", "Plan file with task definitions")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(
		scheduleCmd(opts),
		occurrencesCmd(opts),
		validateCmd(opts),
	)
	return cmd
}

func (o *rootOptions) today() core.Date {
	return core.DateOf(o.now())
}

func (o *rootOptions) load() (*planfile.File, error) {
	return planfile.Load(o.file, o.today())
}

func (o *rootOptions) date(raw string) (core.Date, error) {
	if raw == "" {
		return o.today(), nil
	}
	return core.ParseDate(raw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// scheduleCmd implements 'dayplan schedule'.
func scheduleCmd(opts *rootOptions) *cobra.Command {
	var (
		dateFlag    string
		wake        string
		sleep       string
		buffer      int
		missingDeps string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Compute the plan of one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := opts.date(dateFlag)
			if err != nil {
				return err
			}
			file, err := opts.load()
			if err != nil {
				return err
			}

			win := file.SleepFor(date, core.SleepWindow{WakeTime: core.Clock(6, 0), SleepTime: core.Clock(23, 0)})
			if wake != "" {
				if win.WakeTime, err = core.ParseTimeOfDay(wake); err != nil {
					return fmt.Errorf("--wake: %w", err)
				}
			}
			if sleep != "" {
				if win.SleepTime, err = core.ParseTimeOfDay(sleep); err != nil {
					return fmt.Errorf("--sleep: %w", err)
				}
			}

			engineOpts := engine.DefaultOptions()
			engineOpts.BufferMinutes = buffer
			if engineOpts.MissingDependencies, err = engine.ParseMissingDependencyPolicy(missingDeps); err != nil {
				return err
			}

			res := engine.New(engineOpts).ScheduleForDate(date, file.Tasks, win)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			report.Schedule(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Date as YYYY-MM-DD, default today")
	cmd.Flags().StringVar(&wake, "wake", "", "Override the wake time (HH:MM)")
	cmd.Flags().StringVar(&sleep, "sleep", "", "Override the sleep time (HH:MM)")
	cmd.Flags().IntVar(&buffer, "buffer", engine.DefaultBufferMinutes, "Minutes between a task and its dependents")
	cmd.Flags().StringVar(&missingDeps, "missing-deps", "", "Treat absent prerequisites as satisfied or blocking")
	return cmd
}

type occurrenceLine struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Dates []core.Date `json:"dates,omitempty"`
}

// occurrencesCmd implements 'dayplan occurrences'.
func occurrencesCmd(opts *rootOptions) *cobra.Command {
	var (
		dateFlag string
		taskID   string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "List the tasks of a day, or the next dates of one task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := opts.date(dateFlag)
			if err != nil {
				return err
			}
			file, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if taskID != "" {
				for _, def := range file.Tasks {
					if def.ID != taskID {
						continue
					}
					line := occurrenceLine{ID: def.ID, Name: def.Name, Dates: recurrence.NextDates(def, date, count)}
					if opts.jsonOutput {
						return writeJSON(out, line)
					}
					fmt.Fprintf(out, "%s (%s): %s\n", def.Name, def.ID, report.Recurrence(def.Recurrence))
					for _, d := range line.Dates {
						fmt.Fprintf(out, "  %s %s\n", d, d.Weekday())
					}
					return nil
				}
				return fmt.Errorf("task %q not found in %s", taskID, opts.file)
			}

			occs := recurrence.Expand(file.Tasks, date)
			if opts.jsonOutput {
				return writeJSON(out, occs)
			}
			if len(occs) == 0 {
				fmt.Fprintf(out, "No tasks on %s\n", date)
				return nil
			}
			for i := range occs {
				fmt.Fprintln(out, report.DefinitionLine(&occs[i].TaskDefinition))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Date as YYYY-MM-DD, default today")
	cmd.Flags().StringVar(&taskID, "task", "", "List the next dates of this task instead")
	cmd.Flags().IntVar(&count, "count", 7, "Number of dates with --task")
	return cmd
}

type validationReport struct {
	Valid  bool     `json:"valid"`
	Tasks  int      `json:"tasks"`
	Errors []string `json:"errors,omitempty"`
}

// validateCmd implements 'dayplan validate'.
func validateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the plan file for invalid definitions and dependency cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := opts.load()
			if err != nil {
				return err
			}
			rep := validationReport{Valid: true, Tasks: len(file.Tasks)}
			for _, e := range file.Validate() {
				rep.Valid = false
				rep.Errors = append(rep.Errors, e.Error())
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := writeJSON(out, rep); err != nil {
					return err
				}
			} else if rep.Valid {
				fmt.Fprintf(out, "%s: %d tasks, ok\n", opts.file, rep.Tasks)
			} else {
				for _, e := range rep.Errors {
					fmt.Fprintf(out, "%s: %s\n", opts.file, e)
				}
			}
			if !rep.Valid {
				return errInvalidPlan
			}
			return nil
		},
	}
}
