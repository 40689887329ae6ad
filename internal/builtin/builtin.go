// Package builtin provides the object types that are always available to
// spec files.
package builtin

import (
	"fmt"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/params"
	"github.com/raphi011/gauntlet/plugin"
)

// Register adds the builtin types to r.
func Register(r *plugin.Registry) error {
	types := []struct {
		name    string
		kind    plugin.Kind
		schema  func() *params.Params
		factory plugin.Factory
	}{
		{"RunCommand", plugin.KindRunner, RunCommandParams, func(p *params.Params) (gauntlet.Object, error) { return NewRunCommand(p) }},
		{"Sleep", plugin.KindRunner, SleepParams, func(p *params.Params) (gauntlet.Object, error) { return NewSleep(p), nil }},
		{"ReturnCode", plugin.KindDiffer, ReturnCodeParams, func(p *params.Params) (gauntlet.Object, error) { return NewReturnCode(p), nil }},
		{"Text", plugin.KindDiffer, TextParams, func(p *params.Params) (gauntlet.Object, error) { return NewText(p) }},
		{"Platform", plugin.KindController, PlatformParams, func(p *params.Params) (gauntlet.Object, error) { return NewPlatform(p), nil }},
		{"Environment", plugin.KindController, EnvironmentParams, func(p *params.Params) (gauntlet.Object, error) { return NewEnvironment(p), nil }},
	}

	for _, t := range types {
		if err := r.Register(t.name, t.kind, t.schema, t.factory); err != nil {
			return fmt.Errorf("registering %s: %w", t.name, err)
		}
	}

	return nil
}

// Controllers builds the controllers that are active by default.
func Controllers(r *plugin.Registry) ([]gauntlet.Controller, error) {
	controllers := []gauntlet.Controller{}

	for _, name := range []string{"Platform", "Environment"} {
		c, err := r.BuildController(name, map[string]any{"name": name})
		if err != nil {
			return nil, err
		}

		controllers = append(controllers, c)
	}

	return controllers, nil
}
