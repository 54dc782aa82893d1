package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Mep-xx/dwellwell-sub001/internal/catalog"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog-dir]",
		Short: "Compile a CUE catalog and upsert it into the database",
		Long: `Compile every .cue file in the catalog directory and upsert the resulting
templates and rules.

Seeding is idempotent: unchanged entries are left alone, edited templates get
a version bump, and tasks already on someone's list are never touched.

Example:
  dwellwell seed ./catalog --db ./dwellwell.db
  dwellwell seed --config ./config.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSeed(rootOpts, dir, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runSeed(opts *RootOptions, dir string, out, errOut io.Writer) error {
	app, err := setup(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if dir == "" {
		dir = app.cfg.Catalog.Dir
	}

	f := formatterFor(opts, out, errOut)
	f.VerboseLog("loading catalog from %s", dir)

	cat, errs := catalog.LoadDir(dir)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(errOut, e.Error())
		}
		return NewExitError(ExitFailure, fmt.Sprintf("catalog has %d error(s)", len(errs)))
	}

	res, err := catalog.Apply(context.Background(), app.store, cat)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply catalog", err)
	}

	type seedResult struct {
		Files     int `json:"files"`
		Templates int `json:"templates"`
		Rules     int `json:"rules"`
	}
	data := seedResult{Files: cat.FileCount, Templates: res.TemplatesUpserted, Rules: res.RulesUpserted}
	return f.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "Seeded %d template(s) and %d rule(s) from %d file(s)\n",
			data.Templates, data.Rules, data.Files)
	})
}
