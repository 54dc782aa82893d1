package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mep-xx/dwellwell-sub001/internal/store"
)

func writeCatalogFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const gutterCatalog = `
template: "clean-gutters": {
	title:       "Clean gutters"
	recurrence:  "1 year"
	criticality: "medium"
	state:       "VERIFIED"
}
rule: "gutters-yearly": {
	scope:        "home"
	template_key: "clean-gutters"
}
`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "home.cue", gutterCatalog)
	writeCatalogFile(t, dir, "hvac.cue", `
template: "replace-hvac-filter": {
	title:      "Replace HVAC filter"
	recurrence: "3 months"
	state:      "VERIFIED"
}
rule: "hvac-filter": {
	scope:        "trackable"
	template_key: "replace-hvac-filter"
	conditions: [{target: "trackable", field: "type", op: "eq", value: "hvac"}]
}
`)

	cat, errs := LoadDir(dir)
	require.Empty(t, errs)

	assert.Equal(t, 2, cat.FileCount)
	assert.Len(t, cat.Templates, 2)
	assert.Len(t, cat.Rules, 2)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not found")
}

func TestLoadDirNoCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "readme.txt", "not a catalog")

	_, errs := LoadDir(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files")
}

func TestLoadDirReportsDanglingRule(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "bad.cue", `
rule: "orphan": {
	scope:        "home"
	template_key: "ghost"
}
`)

	cat, errs := LoadDir(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `unknown template "ghost"`)
	assert.Len(t, cat.Rules, 1)
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFile(t, dir, "home.cue", gutterCatalog)

	cat, errs := LoadDir(dir)
	require.Empty(t, errs)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	res, err := Apply(ctx, st, cat)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TemplatesUpserted)
	assert.Equal(t, 1, res.RulesUpserted)

	tpl, err := st.GetTemplateByKey(ctx, "clean-gutters")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)

	// Re-applying the identical catalog changes nothing.
	_, err = Apply(ctx, st, cat)
	require.NoError(t, err)
	tpl, err = st.GetTemplateByKey(ctx, "clean-gutters")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)
}

func TestApplyBumpsVersionOnEdit(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	dir := t.TempDir()
	writeCatalogFile(t, dir, "home.cue", gutterCatalog)
	cat, errs := LoadDir(dir)
	require.Empty(t, errs)
	_, err = Apply(ctx, st, cat)
	require.NoError(t, err)

	dir2 := t.TempDir()
	writeCatalogFile(t, dir2, "home.cue", `
template: "clean-gutters": {
	title:       "Clean gutters and downspouts"
	recurrence:  "1 year"
	criticality: "medium"
	state:       "VERIFIED"
}
rule: "gutters-yearly": {
	scope:        "home"
	template_key: "clean-gutters"
}
`)
	cat2, errs := LoadDir(dir2)
	require.Empty(t, errs)
	_, err = Apply(ctx, st, cat2)
	require.NoError(t, err)

	tpl, err := st.GetTemplateByKey(ctx, "clean-gutters")
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.Version)
	assert.Equal(t, "Clean gutters and downspouts", tpl.Title)
}
