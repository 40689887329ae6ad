// Package discover finds spec files below a directory and builds the groups
// of runners they declare.
//
// A spec file is a YAML document whose blocks hold ordered lists of runner
// entries:
//
//	Tests:
//	  - type: RunCommand
//	    name: hello
//	    command: echo hello
//	    platform:
//	      os: [linux]
//	    differs:
//	      - type: Text
//	        name: greeting
//	        contains: [hello]
//
// Every spec file becomes one group, so its runners execute in order and
// the first failure skips the rest.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/model"
	"github.com/raphi011/gauntlet/plugin"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSpecFile = "tests.yaml"
	DefaultBlock    = "Tests"
)

type Options struct {
	// Root is the directory that is searched recursively.
	Root string
	// SpecFiles are the base names of spec files.
	SpecFiles []string
	// Blocks are the top level keys of a spec file that hold runners.
	Blocks []string
	// Controllers contribute a section to the schema of every object.
	Controllers []gauntlet.Controller
	Registry    *plugin.Registry
	Log         *slog.Logger
}

// Discover returns one group per spec file below opts.Root, ordered by path.
func Discover(ctx context.Context, opts Options) ([]gauntlet.Group, error) {
	if len(opts.SpecFiles) == 0 {
		opts.SpecFiles = []string{DefaultSpecFile}
	}
	if len(opts.Blocks) == 0 {
		opts.Blocks = []string{DefaultBlock}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	files, err := findSpecFiles(ctx, opts.Root, opts.SpecFiles)
	if err != nil {
		return nil, err
	}

	groups := []gauntlet.Group{}

	for _, f := range files {
		group, err := loadSpecFile(opts, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}

		opts.Log.Debug("spec file loaded", "file", f, "runners", len(group))

		if len(group) > 0 {
			groups = append(groups, group)
		}
	}

	return groups, nil
}

func findSpecFiles(ctx context.Context, root string, names []string) ([]string, error) {
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}

	files := []string{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && wanted[d.Name()] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", root, err)
	}

	sort.Strings(files)

	return files, nil
}

func loadSpecFile(opts Options, file string) (gauntlet.Group, error) {
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	prefix, err := filepath.Rel(opts.Root, filepath.Dir(file))
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)

	group := gauntlet.Group{}
	seen := map[string]bool{}

	for _, block := range opts.Blocks {
		raw, ok := doc[block]
		if !ok {
			continue
		}

		entries, err := entryList(raw)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", block, err)
		}

		for i, entry := range entries {
			runner, err := buildRunner(opts, prefix, entry)
			if err != nil {
				return nil, fmt.Errorf("block %q, entry %d: %w", block, i, err)
			}

			if seen[runner.Name()] {
				return nil, fmt.Errorf("block %q, entry %d: %w", block, i, model.DuplicateError{Name: runner.Name()})
			}
			seen[runner.Name()] = true

			group = append(group, runner)
		}
	}

	return group, nil
}

func buildRunner(opts Options, prefix string, entry map[string]any) (gauntlet.Runner, error) {
	typeName, values, err := splitType(entry)
	if err != nil {
		return nil, err
	}

	var differEntries []map[string]any

	if raw, ok := values["differs"]; ok {
		differEntries, err = entryList(raw)
		if err != nil {
			return nil, fmt.Errorf("differs: %w", err)
		}
		delete(values, "differs")
	}

	if name, ok := values["name"].(string); ok && prefix != "." {
		values["name"] = path.Join(prefix, name)
	}

	runner, err := opts.Registry.BuildRunner(typeName, values, opts.Controllers)
	if err != nil {
		return nil, err
	}

	if len(differEntries) == 0 {
		return runner, nil
	}

	attacher, ok := runner.(gauntlet.DifferAttacher)
	if !ok {
		return nil, fmt.Errorf("runner %q does not accept differs", runner.Name())
	}

	names := map[string]bool{runner.Name(): true}

	for i, de := range differEntries {
		differType, differValues, err := splitType(de)
		if err != nil {
			return nil, fmt.Errorf("differ %d: %w", i, err)
		}

		differ, err := opts.Registry.BuildDiffer(differType, differValues, opts.Controllers)
		if err != nil {
			return nil, fmt.Errorf("differ %d: %w", i, err)
		}

		if names[differ.Name()] {
			return nil, fmt.Errorf("differ %d: %w", i, model.DuplicateError{Name: differ.Name()})
		}
		names[differ.Name()] = true

		attacher.AttachDiffers(differ)
	}

	return runner, nil
}

// splitType returns the declared type of an entry and a copy of the entry
// that can be applied to the schema of that type.
func splitType(entry map[string]any) (string, map[string]any, error) {
	typeName, ok := entry["type"].(string)
	if !ok || typeName == "" {
		return "", nil, fmt.Errorf("entry %v has no type", entry["name"])
	}

	values := make(map[string]any, len(entry))
	for k, v := range entry {
		values[k] = v
	}

	return typeName, values, nil
}

func entryList(raw any) ([]map[string]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of entries, got %T", raw)
	}

	entries := make([]map[string]any, 0, len(list))

	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected a mapping, got %T", i, item)
		}
		entries = append(entries, m)
	}

	return entries, nil
}
