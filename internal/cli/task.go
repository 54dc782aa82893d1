package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/model"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// TaskOptions holds flags for task lifecycle subcommands.
type TaskOptions struct {
	*RootOptions
	Days int
	Mode string
}

// NewTaskCommand creates the task command with its lifecycle subcommands.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TaskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "task",
		Short: "Apply a lifecycle transition to a task",
	}

	transition := func(use, short string, fn func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error)) *cobra.Command {
		return &cobra.Command{
			Use:           use + " <task-id>",
			Short:         short,
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTaskTransition(opts, args[0], fn, cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		}
	}

	cmd.AddCommand(transition("complete", "Mark a task completed",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.CompleteTask(ctx, id)
		}))
	cmd.AddCommand(transition("skip", "Skip a task without completing it",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.SkipTask(ctx, id)
		}))
	cmd.AddCommand(transition("pause", "Pause a task",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.PauseTask(ctx, id)
		}))
	cmd.AddCommand(transition("archive", "Archive a task",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.ArchiveTask(ctx, id)
		}))
	cmd.AddCommand(transition("sync", "Re-copy content from the current template version",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.SyncTaskFromTemplate(ctx, id)
		}))

	snooze := transition("snooze", "Push a task's due date out by --days",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			return app.engine.SnoozeTask(ctx, id, opts.Days)
		})
	snooze.Flags().IntVar(&opts.Days, "days", 1, "days to defer the due date")
	cmd.AddCommand(snooze)

	resume := transition("resume", "Resume a paused task",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			mode, err := parseResumeMode(opts.Mode)
			if err != nil {
				return nil, err
			}
			return app.engine.ResumeTask(ctx, id, mode)
		})
	resume.Flags().StringVar(&opts.Mode, "mode", "forward", `due date handling: "forward" or "now"`)
	cmd.AddCommand(resume)

	unarchive := transition("unarchive", "Restore an archived task",
		func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error) {
			mode, err := parseResumeMode(opts.Mode)
			if err != nil {
				return nil, err
			}
			return app.engine.UnarchiveTask(ctx, id, mode)
		})
	unarchive.Flags().StringVar(&opts.Mode, "mode", "forward", `due date handling: "forward" or "now"`)
	cmd.AddCommand(unarchive)

	return cmd
}

func parseResumeMode(raw string) (model.ResumeMode, error) {
	switch raw {
	case "", string(model.ResumeForward):
		return model.ResumeForward, nil
	case string(model.ResumeNow):
		return model.ResumeNow, nil
	default:
		return "", NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be \"forward\" or \"now\"", raw))
	}
}

func runTaskTransition(opts *TaskOptions, id string,
	fn func(ctx context.Context, app *appContext, id string) (*engine.TransitionResult, error),
	out, errOut io.Writer,
) error {
	app, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := fn(context.Background(), app, id)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitFailure, "task not found", err)
		}
		return WrapExitError(ExitCommandError, "transition failed", err)
	}

	f := formatterFor(opts.RootOptions, out, errOut)
	if !res.Applied {
		if err := f.Error("REJECTED", res.Notice, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, res.Notice)
	}

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s  %s\n", res.Task.ID, res.Task.Status, res.Task.Title)
		if res.Next != nil {
			fmt.Fprintf(w, "next: %s  due %s\n", res.Next.ID, formatDue(*res.Next))
		}
	})
}

// NewTasksCommand creates the tasks list command.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		homeID      string
		roomID      string
		trackableID string
		status      string
		dueBefore   string
		includeAll  bool
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List task occurrences",
		Long: `List task occurrences, filtered by scope, status, and due date.

Archived, paused, and superseded tasks are hidden unless --all is set.

Example:
  dwellwell tasks --trackable tr-42 --status PENDING
  dwellwell tasks --due-before 2024-06-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			filter := store.OccurrenceFilter{
				HomeID:            homeID,
				RoomID:            roomID,
				TrackableID:       trackableID,
				Status:            model.TaskStatus(status),
				IncludeArchived:   includeAll,
				IncludePaused:     includeAll,
				IncludeSuperseded: includeAll,
			}
			if dueBefore != "" {
				t, err := time.Parse("2006-01-02", dueBefore)
				if err != nil {
					return NewExitError(ExitCommandError, "--due-before must be YYYY-MM-DD")
				}
				filter.DueBefore = &t
			}

			tasks, err := app.store.ListOccurrences(context.Background(), filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "listing tasks failed", err)
			}

			f := formatterFor(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return f.Success(tasks, func(w io.Writer) {
				for _, occ := range tasks {
					fmt.Fprintf(w, "%s  %-9s  due %-10s  %s\n", occ.ID, occ.Status, formatDue(occ), occ.Title)
				}
				fmt.Fprintf(w, "%d task(s)\n", len(tasks))
			})
		},
	}

	cmd.Flags().StringVar(&homeID, "home", "", "filter by home id")
	cmd.Flags().StringVar(&roomID, "room", "", "filter by room id")
	cmd.Flags().StringVar(&trackableID, "trackable", "", "filter by trackable id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (PENDING|COMPLETED|SKIPPED)")
	cmd.Flags().StringVar(&dueBefore, "due-before", "", "only tasks due on or before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&includeAll, "all", false, "include archived, paused, and superseded tasks")

	return cmd
}
