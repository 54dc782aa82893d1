package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Mep-xx/dwellwell-sub001/internal/engine"
	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Changed []string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <scope-type> <scope-id>",
		Short: "Reconcile a scope against the rule catalog",
		Long: `Run one reconciliation pass over a home, room, or trackable: evaluate the
enabled rules against its attributes and instantiate any matched templates
that aren't already on the list.

The pass is additive and idempotent; re-running it creates nothing new.

Example:
  dwellwell generate trackable tr-42 --db ./dwellwell.db
  dwellwell generate room kitchen-1 --changed has_dishwasher`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args[0], args[1], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringSliceVar(&opts.Changed, "changed", nil,
		"changed attribute names; restricts the pass to rules reactive to them")
	return cmd
}

func runGenerate(opts *GenerateOptions, scopeType, scopeID string, out, errOut io.Writer) error {
	app, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.engine.GenerateForScope(context.Background(), model.ScopeType(scopeType), scopeID, opts.Changed)
	if err != nil {
		if engine.IsMissingScope(err) {
			return WrapExitError(ExitFailure, "scope not found", err)
		}
		return WrapExitError(ExitCommandError, "generation failed", err)
	}

	f := formatterFor(opts.RootOptions, out, errOut)
	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Created %d task(s), %d already existed\n", len(res.Created), len(res.Existing))
		for _, occ := range res.Created {
			fmt.Fprintf(w, "  + %s  %s  due %s\n", occ.ID, occ.Title, formatDue(occ))
		}
		for _, w2 := range res.Warnings {
			fmt.Fprintf(w, "  ! %s\n", w2)
		}
	})
}

func formatDue(occ model.TaskOccurrence) string {
	if occ.DueDate == nil {
		return "-"
	}
	return occ.DueDate.Format("2006-01-02")
}
