package gauntlet

import (
	"github.com/raphi011/gauntlet/params"
)

// Object is implemented by every runner, differ and controller.
type Object interface {
	Name() string
	// Params are the validated parameters the object was built from. They
	// also carry the sections controllers read from their targets.
	Params() *params.Params
}

// Resetter is implemented by objects that keep state between executions.
// Reset is called right before the object executes; an error aborts the
// test case.
type Resetter interface {
	Reset() error
}

// Runner is a schedulable unit of work producing a return code and output.
type Runner interface {
	Object
	// Differs are executed after the runner passed, in order.
	Differs() []Differ
	// Execute runs the work. Errors logged through t fail the runner, a
	// returned error or a panic is reported as an exception.
	Execute(t *T) (int, error)
}

// Differ checks the return code and output of a runner. Mismatches are
// reported with t.Error.
type Differ interface {
	Object
	Execute(t *T, returncode int, stdout, stderr string) error
}

// Controller is consulted before every runner and differ executes. It may
// veto the execution with t.Skip; logging an error or returning one aborts
// the whole test case as FATAL.
type Controller interface {
	Object
	// Prefix is the name of the section each object carries for this
	// controller.
	Prefix() string
	// ObjectParams is the schema of that section.
	ObjectParams() *params.Params
	// Execute inspects target using its section cfg.
	Execute(t *T, target Object, cfg *params.Params) error
}

// ObjectParams returns the parameters every object accepts.
func ObjectParams() *params.Params {
	p := params.New()
	p.Add("name", params.String, params.Required(), params.Doc("Name of the object, unique within its group"))
	p.Add("type", params.String, params.Doc("Registered type the object is built from"))

	return p
}

// Base implements Object and is meant to be embedded.
type Base struct {
	params *params.Params
}

func NewBase(p *params.Params) Base {
	return Base{params: p}
}

func (b Base) Name() string {
	return b.params.String("name")
}

func (b Base) Params() *params.Params {
	return b.params
}

// RunnerBase implements the differ bookkeeping of a Runner.
type RunnerBase struct {
	Base
	differs []Differ
}

func NewRunnerBase(p *params.Params) RunnerBase {
	return RunnerBase{Base: NewBase(p)}
}

func (r *RunnerBase) Differs() []Differ {
	return r.differs
}

// AttachDiffers appends differs to the runner.
func (r *RunnerBase) AttachDiffers(d ...Differ) {
	r.differs = append(r.differs, d...)
}

// DifferAttacher is implemented by runners that accept differs after
// construction.
type DifferAttacher interface {
	AttachDiffers(d ...Differ)
}
