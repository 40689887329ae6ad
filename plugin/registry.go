// Package plugin keeps track of the object types that spec files can refer
// to by name and constructs configured objects from them.
package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/internal/model"
	"github.com/raphi011/gauntlet/params"
	"gopkg.in/yaml.v3"
)

// Kind is the role an object type plays in a test case.
type Kind int

const (
	KindRunner Kind = iota
	KindDiffer
	KindController
)

func (k Kind) String() string {
	switch k {
	case KindRunner:
		return "runner"
	case KindDiffer:
		return "differ"
	case KindController:
		return "controller"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Factory constructs an object from validated parameters.
type Factory func(p *params.Params) (gauntlet.Object, error)

type entry struct {
	kind    Kind
	schema  func() *params.Params
	factory Factory
	// base is the type this one was derived from in a plugin directory.
	base string
}

// Registry maps type names to object factories. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a type. schema must return a fresh set of parameters on
// every call.
func (r *Registry) Register(name string, kind Kind, schema func() *params.Params, factory Factory) error {
	return r.add(name, entry{kind: kind, schema: schema, factory: factory})
}

func (r *Registry) add(name string, e entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return model.DuplicateError{Name: name}
	}

	r.entries[name] = e

	return nil
}

func (r *Registry) lookup(name string) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return entry{}, fmt.Errorf("type %q: %w", name, model.NotFoundError{})
	}

	return e, nil
}

// Names returns the registered types of a kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := []string{}
	for name, e := range r.entries {
		if e.kind == kind {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// Kind returns the kind of a registered type.
func (r *Registry) Kind(name string) (Kind, error) {
	e, err := r.lookup(name)
	if err != nil {
		return 0, err
	}

	return e.kind, nil
}

// Base returns the type a derived type was declared from, or "" for types
// registered in code.
func (r *Registry) Base(name string) string {
	e, _ := r.lookup(name)
	return e.base
}

// Params returns a fresh schema of a registered type.
func (r *Registry) Params(name string) (*params.Params, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	p := e.schema()
	if err := p.SetDefault("type", name); err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}

	return p, nil
}

// Build constructs an object of type name. The sections of controllers are
// added to the schema of runners and differs before values are applied.
func (r *Registry) Build(name string, values map[string]any, controllers []gauntlet.Controller) (gauntlet.Object, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	p, err := r.Params(name)
	if err != nil {
		return nil, err
	}

	if e.kind != KindController {
		for _, c := range controllers {
			if p.Has(c.Prefix()) {
				return nil, fmt.Errorf("type %q: controller %q: parameter %q already declared", name, c.Name(), c.Prefix())
			}
			p.AddSection(c.Prefix(), c.ObjectParams())
		}
	}

	if err := p.Apply(values); err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}

	obj, err := e.factory(p)
	if err != nil {
		return nil, fmt.Errorf("creating %s %q: %w", e.kind, p.String("name"), err)
	}

	return obj, nil
}

func (r *Registry) BuildRunner(name string, values map[string]any, controllers []gauntlet.Controller) (gauntlet.Runner, error) {
	obj, err := r.Build(name, values, controllers)
	if err != nil {
		return nil, err
	}

	runner, ok := obj.(gauntlet.Runner)
	if !ok {
		return nil, fmt.Errorf("type %q is not a runner", name)
	}

	return runner, nil
}

func (r *Registry) BuildDiffer(name string, values map[string]any, controllers []gauntlet.Controller) (gauntlet.Differ, error) {
	obj, err := r.Build(name, values, controllers)
	if err != nil {
		return nil, err
	}

	differ, ok := obj.(gauntlet.Differ)
	if !ok {
		return nil, fmt.Errorf("type %q is not a differ", name)
	}

	return differ, nil
}

func (r *Registry) BuildController(name string, values map[string]any) (gauntlet.Controller, error) {
	obj, err := r.Build(name, values, nil)
	if err != nil {
		return nil, err
	}

	controller, ok := obj.(gauntlet.Controller)
	if !ok {
		return nil, fmt.Errorf("type %q is not a controller", name)
	}

	return controller, nil
}

// typeFile is the format of the files in a plugin directory.
type typeFile struct {
	Types []struct {
		Name   string         `yaml:"name"`
		Base   string         `yaml:"base"`
		Params map[string]any `yaml:"params"`
	} `yaml:"types"`
}

// LoadDir registers the types declared by the *.yaml files in dir. Every
// type is derived from an already registered base type and overrides the
// defaults of its parameters. Files are read in lexical order, so a file may
// derive from types declared in a file before it.
func (r *Registry) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, f := range files {
		if err := r.loadFile(f); err != nil {
			return fmt.Errorf("loading plugin file %s: %w", f, err)
		}
	}

	return nil
}

func (r *Registry) loadFile(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var tf typeFile
	if err := yaml.Unmarshal(body, &tf); err != nil {
		return err
	}

	for _, t := range tf.Types {
		if t.Name == "" || t.Base == "" {
			return errors.New("type declarations need a name and a base")
		}

		base, err := r.lookup(t.Base)
		if err != nil {
			return fmt.Errorf("type %q: %w", t.Name, err)
		}

		defaults := t.Params
		schema := func() *params.Params {
			p := base.schema()
			for k, v := range defaults {
				// checked when the type is registered
				_ = p.SetDefault(k, v)
			}
			return p
		}

		// surface invalid defaults now rather than on first use
		p := base.schema()
		for k, v := range defaults {
			if err := p.SetDefault(k, v); err != nil {
				return fmt.Errorf("type %q: %w", t.Name, err)
			}
		}

		if err := r.add(t.Name, entry{kind: base.kind, schema: schema, factory: base.factory, base: t.Base}); err != nil {
			return err
		}
	}

	return nil
}

// SplitPath splits a list of directories separated by the OS path list
// separator, e.g. the value of GAUNTLET_PLUGIN_PATH. Empty elements are
// dropped.
func SplitPath(path string) []string {
	dirs := []string{}

	for _, d := range strings.Split(path, string(os.PathListSeparator)) {
		if d != "" {
			dirs = append(dirs, d)
		}
	}

	return dirs
}
