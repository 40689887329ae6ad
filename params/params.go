// Package params describes and validates the configuration accepted by
// runners, differs and controllers.
//
// Every object type exposes a schema built with New and Add. Values decoded
// from spec files are applied with Set or Apply, which convert them to the
// declared kind and reject anything that does not fit. Validate checks that
// required parameters were supplied.
package params

import (
	"fmt"
	"strconv"
	"time"

	"github.com/raphi011/gauntlet/internal/model"
	"golang.org/x/exp/slices"
)

// Kind is the type of a parameter value.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Duration
	StringList
	IntList
	Section
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Duration:
		return "duration"
	case StringList:
		return "list of strings"
	case IntList:
		return "list of ints"
	case Section:
		return "section"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

type param struct {
	name     string
	kind     Kind
	doc      string
	required bool
	allowed  []any
	def      any
	value    any
	set      bool
	section  *Params
}

// Option configures a parameter when it is added to a schema.
type Option func(p *param)

// Default sets the value used when the parameter is not supplied.
func Default(v any) Option {
	return func(p *param) {
		p.def = v
	}
}

// Required marks the parameter as mandatory.
func Required() Option {
	return func(p *param) {
		p.required = true
	}
}

// Allow restricts the parameter (or each element of a list parameter) to
// the given values.
func Allow(values ...any) Option {
	return func(p *param) {
		p.allowed = values
	}
}

// Doc attaches a description to the parameter.
func Doc(doc string) Option {
	return func(p *param) {
		p.doc = doc
	}
}

// Params is an ordered set of parameters and their values.
type Params struct {
	order  []string
	params map[string]*param
}

func New() *Params {
	return &Params{params: map[string]*param{}}
}

// Add declares a parameter. Schemas are built by code, so declaring a
// parameter twice or with a default that does not match its kind panics.
func (p *Params) Add(name string, kind Kind, opts ...Option) {
	if kind == Section {
		panic(fmt.Sprintf("params: use AddSection to declare section %q", name))
	}
	if _, ok := p.params[name]; ok {
		panic(fmt.Sprintf("params: parameter %q declared twice", name))
	}

	prm := &param{name: name, kind: kind}

	for _, o := range opts {
		o(prm)
	}

	if prm.def != nil {
		def, err := convert(kind, prm.def)
		if err != nil {
			panic(fmt.Sprintf("params: default of %q: %v", name, err))
		}
		prm.def = def
	}

	p.params[name] = prm
	p.order = append(p.order, name)
}

// AddSection nests sub under name. Controllers use this to merge the
// parameters they read from every object into that object's schema.
func (p *Params) AddSection(name string, sub *Params) {
	if _, ok := p.params[name]; ok {
		panic(fmt.Sprintf("params: parameter %q declared twice", name))
	}

	p.params[name] = &param{name: name, kind: Section, section: sub}
	p.order = append(p.order, name)
}

// Has reports whether name is declared.
func (p *Params) Has(name string) bool {
	_, ok := p.params[name]
	return ok
}

// Names returns the declared parameter names in declaration order.
func (p *Params) Names() []string {
	return slices.Clone(p.order)
}

// Kind returns the kind of a declared parameter.
func (p *Params) Kind(name string) (Kind, bool) {
	prm, ok := p.params[name]
	if !ok {
		return 0, false
	}

	return prm.kind, true
}

// Doc returns the description of a declared parameter.
func (p *Params) Doc(name string) string {
	if prm, ok := p.params[name]; ok {
		return prm.doc
	}

	return ""
}

// IsSet reports whether a value was supplied for name.
func (p *Params) IsSet(name string) bool {
	prm, ok := p.params[name]
	return ok && prm.set
}

// SetDefault replaces the default of a declared parameter.
func (p *Params) SetDefault(name string, value any) error {
	prm, ok := p.params[name]
	if !ok {
		return model.ValidationError{Param: name, Msg: "unknown parameter"}
	}
	if prm.kind == Section {
		return model.ValidationError{Param: name, Msg: "sections have no default"}
	}

	v, err := convert(prm.kind, value)
	if err != nil {
		return model.ValidationError{Param: name, Msg: err.Error()}
	}

	prm.def = v

	return nil
}

// Set converts value to the declared kind of name and stores it.
func (p *Params) Set(name string, value any) error {
	prm, ok := p.params[name]
	if !ok {
		return model.ValidationError{Param: name, Msg: "unknown parameter"}
	}

	if prm.kind == Section {
		values, ok := value.(map[string]any)
		if !ok {
			return model.ValidationError{Param: name, Msg: fmt.Sprintf("expected a section, got %T", value)}
		}
		if err := prm.section.Apply(values); err != nil {
			return fmt.Errorf("section %q: %w", name, err)
		}
		prm.set = true
		return nil
	}

	v, err := convert(prm.kind, value)
	if err != nil {
		return model.ValidationError{Param: name, Msg: err.Error()}
	}

	if err := prm.checkAllowed(v); err != nil {
		return err
	}

	prm.value = v
	prm.set = true

	return nil
}

// Apply sets every entry of values.
func (p *Params) Apply(values map[string]any) error {
	// iterate in declaration order first so errors are deterministic
	seen := map[string]bool{}

	for _, name := range p.order {
		v, ok := values[name]
		if !ok {
			continue
		}
		seen[name] = true
		if err := p.Set(name, v); err != nil {
			return err
		}
	}

	unknown := []string{}
	for name := range values {
		if !seen[name] {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)
		return model.ValidationError{Param: unknown[0], Msg: "unknown parameter"}
	}

	return nil
}

// Validate checks that every required parameter, including those of nested
// sections, has a value.
func (p *Params) Validate() error {
	for _, name := range p.order {
		prm := p.params[name]

		if prm.kind == Section {
			if err := prm.section.Validate(); err != nil {
				return fmt.Errorf("section %q: %w", name, err)
			}
			continue
		}

		if prm.required && !prm.set && prm.def == nil {
			return model.ValidationError{Param: name, Msg: "required parameter is missing"}
		}
	}

	return nil
}

// Clone returns a deep copy of the schema and its values.
func (p *Params) Clone() *Params {
	c := New()

	for _, name := range p.order {
		prm := *p.params[name]
		if prm.section != nil {
			prm.section = prm.section.Clone()
		}
		c.params[name] = &prm
		c.order = append(c.order, name)
	}

	return c
}

// Get returns the value of name, its default when unset, or nil.
func (p *Params) Get(name string) any {
	if p == nil {
		return nil
	}

	prm, ok := p.params[name]
	if !ok {
		return nil
	}
	if prm.kind == Section {
		return prm.section
	}
	if prm.set {
		return prm.value
	}

	return prm.def
}

func (p *Params) String(name string) string {
	v, _ := p.Get(name).(string)
	return v
}

func (p *Params) Int(name string) int {
	v, _ := p.Get(name).(int)
	return v
}

func (p *Params) Float(name string) float64 {
	v, _ := p.Get(name).(float64)
	return v
}

func (p *Params) Bool(name string) bool {
	v, _ := p.Get(name).(bool)
	return v
}

func (p *Params) Duration(name string) time.Duration {
	v, _ := p.Get(name).(time.Duration)
	return v
}

func (p *Params) Strings(name string) []string {
	v, _ := p.Get(name).([]string)
	return slices.Clone(v)
}

func (p *Params) Ints(name string) []int {
	v, _ := p.Get(name).([]int)
	return slices.Clone(v)
}

// Section returns the nested parameters declared as name. Undeclared
// sections yield an empty set so callers never have to check for nil.
func (p *Params) Section(name string) *Params {
	if p == nil {
		return New()
	}

	prm, ok := p.params[name]
	if !ok || prm.kind != Section {
		return New()
	}

	return prm.section
}

func (prm *param) checkAllowed(v any) error {
	if len(prm.allowed) == 0 {
		return nil
	}

	var values []any

	switch vv := v.(type) {
	case []string:
		for _, s := range vv {
			values = append(values, s)
		}
	case []int:
		for _, i := range vv {
			values = append(values, i)
		}
	default:
		values = []any{v}
	}

	for _, value := range values {
		found := false
		for _, a := range prm.allowed {
			converted, err := convert(scalarKind(prm.kind), a)
			if err == nil && converted == value {
				found = true
				break
			}
		}
		if !found {
			return model.ValidationError{Param: prm.name, Msg: fmt.Sprintf("value %v is not one of %v", value, prm.allowed)}
		}
	}

	return nil
}

func scalarKind(k Kind) Kind {
	switch k {
	case StringList:
		return String
	case IntList:
		return Int
	}

	return k
}

func convert(kind Kind, v any) (any, error) {
	switch kind {
	case String:
		switch vv := v.(type) {
		case string:
			return vv, nil
		case int, int64, float64, bool:
			return fmt.Sprint(vv), nil
		}
	case Int:
		switch vv := v.(type) {
		case int:
			return vv, nil
		case int64:
			return int(vv), nil
		case float64:
			if vv == float64(int(vv)) {
				return int(vv), nil
			}
		case string:
			i, err := strconv.Atoi(vv)
			if err != nil {
				return nil, fmt.Errorf("expected %s, got %q", kind, vv)
			}
			return i, nil
		}
	case Float:
		switch vv := v.(type) {
		case float64:
			return vv, nil
		case int:
			return float64(vv), nil
		case int64:
			return float64(vv), nil
		case string:
			f, err := strconv.ParseFloat(vv, 64)
			if err != nil {
				return nil, fmt.Errorf("expected %s, got %q", kind, vv)
			}
			return f, nil
		}
	case Bool:
		switch vv := v.(type) {
		case bool:
			return vv, nil
		case string:
			b, err := strconv.ParseBool(vv)
			if err != nil {
				return nil, fmt.Errorf("expected %s, got %q", kind, vv)
			}
			return b, nil
		}
	case Duration:
		switch vv := v.(type) {
		case time.Duration:
			return vv, nil
		case string:
			d, err := time.ParseDuration(vv)
			if err != nil {
				return nil, fmt.Errorf("expected %s, got %q", kind, vv)
			}
			return d, nil
		// bare numbers are seconds
		case int:
			return time.Duration(vv) * time.Second, nil
		case float64:
			return time.Duration(vv * float64(time.Second)), nil
		}
	case StringList, IntList:
		elem := scalarKind(kind)

		var items []any
		switch vv := v.(type) {
		case []any:
			items = vv
		case []string:
			for _, s := range vv {
				items = append(items, s)
			}
		case []int:
			for _, i := range vv {
				items = append(items, i)
			}
		default:
			// a scalar is a list with a single element
			items = []any{vv}
		}

		if kind == StringList {
			out := make([]string, 0, len(items))
			for _, item := range items {
				c, err := convert(elem, item)
				if err != nil {
					return nil, err
				}
				out = append(out, c.(string))
			}
			return out, nil
		}

		out := make([]int, 0, len(items))
		for _, item := range items {
			c, err := convert(elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, c.(int))
		}
		return out, nil
	}

	return nil, fmt.Errorf("expected %s, got %T", kind, v)
}
