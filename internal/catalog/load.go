package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/Mep-xx/dwellwell-sub001/internal/model"
)

// Catalog holds the compiled contents of a catalog directory.
type Catalog struct {
	Templates []model.Template
	Rules     []model.Rule
	// FileCount is the number of .cue files the load saw.
	FileCount int
}

// LoadDir loads and compiles every .cue file in dir into a Catalog.
// Compilation errors are collected per-entry rather than failing fast, so an
// author sees everything wrong with a catalog in one run.
func LoadDir(dir string) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("access catalog directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scan catalog directory: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir, Package: "_"})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	return Compile(value, len(files))
}

// Compile extracts templates and rules from a built CUE value.
func Compile(value cue.Value, fileCount int) (*Catalog, []error) {
	cat := &Catalog{FileCount: fileCount}
	var errs []error

	if tv := value.LookupPath(cue.ParsePath("template")); tv.Exists() {
		iter, err := tv.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				tpl, err := CompileTemplate(iter.Value())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := tpl.Validate(); err != nil {
					errs = append(errs, err)
					continue
				}
				cat.Templates = append(cat.Templates, *tpl)
			}
		}
	}

	if rv := value.LookupPath(cue.ParsePath("rule")); rv.Exists() {
		iter, err := rv.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				rule, err := CompileRule(iter.Value())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := rule.Validate(); err != nil {
					errs = append(errs, err)
					continue
				}
				cat.Rules = append(cat.Rules, *rule)
			}
		}
	}

	if len(cat.Templates) == 0 && len(cat.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no templates or rules found in catalog"))
	}

	errs = append(errs, crossValidate(cat)...)
	return cat, errs
}

// crossValidate checks referential integrity across the compiled catalog:
// every rule must point at a template defined in the same catalog, and keys
// must be unique.
func crossValidate(cat *Catalog) []error {
	var errs []error

	templateKeys := make(map[string]bool, len(cat.Templates))
	for _, tpl := range cat.Templates {
		if templateKeys[tpl.Key] {
			errs = append(errs, fmt.Errorf("duplicate template key %q", tpl.Key))
		}
		templateKeys[tpl.Key] = true
	}

	ruleKeys := make(map[string]bool, len(cat.Rules))
	for _, rule := range cat.Rules {
		if ruleKeys[rule.Key] {
			errs = append(errs, fmt.Errorf("duplicate rule key %q", rule.Key))
		}
		ruleKeys[rule.Key] = true

		if !templateKeys[rule.TemplateKey] {
			errs = append(errs, fmt.Errorf("rule %q references unknown template %q", rule.Key, rule.TemplateKey))
		}
	}

	return errs
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
