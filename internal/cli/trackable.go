package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

// TrackableOptions holds flags for trackable lifecycle subcommands.
type TrackableOptions struct {
	*RootOptions
	Mode   string
	Reason string
}

// NewTrackableCommand creates the trackable command with its lifecycle
// subcommands.
func NewTrackableCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackableOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trackable",
		Short: "Apply a lifecycle transition to a trackable",
	}

	transition := func(use, short string, fn func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error)) *cobra.Command {
		return &cobra.Command{
			Use:           use + " <trackable-id>",
			Short:         short,
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrackableTransition(opts, args[0], fn, cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		}
	}

	cmd.AddCommand(transition("pause", "Pause a trackable and its open tasks",
		func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error) {
			return app.engine.PauseTrackable(ctx, id)
		}))

	resume := transition("resume", "Resume a paused trackable",
		func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error) {
			mode, err := parseResumeMode(opts.Mode)
			if err != nil {
				return nil, err
			}
			return app.engine.ResumeTrackable(ctx, id, mode)
		})
	resume.Flags().StringVar(&opts.Mode, "mode", "forward", `due date handling: "forward" or "now"`)
	cmd.AddCommand(resume)

	retire := transition("retire", "Retire a trackable and archive its open tasks",
		func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error) {
			return app.engine.RetireTrackable(ctx, id, opts.Reason)
		})
	retire.Flags().StringVar(&opts.Reason, "reason", "", "why the trackable is being retired")
	cmd.AddCommand(retire)

	revive := transition("revive", "Revive a retired trackable and restore its tasks",
		func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error) {
			mode, err := parseResumeMode(opts.Mode)
			if err != nil {
				return nil, err
			}
			return app.engine.ReviveTrackable(ctx, id, mode)
		})
	revive.Flags().StringVar(&opts.Mode, "mode", "forward", `due date handling: "forward" or "now"`)
	cmd.AddCommand(revive)

	return cmd
}

func runTrackableTransition(opts *TrackableOptions, id string,
	fn func(ctx context.Context, app *appContext, id string) (*engine.TrackableResult, error),
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
			return WrapExitError(ExitFailure, "trackable not found", err)
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
		fmt.Fprintf(w, "%s  %s  (%d task(s) affected)\n", res.Trackable.ID, res.Trackable.Status, res.CascadedTasks)
	})
}
