package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/params"
)

func ReturnCodeParams() *params.Params {
	p := gauntlet.ObjectParams()
	p.Add("expected", params.Int, params.Default(0), params.Doc("Expected return code of the runner"))

	return p
}

// ReturnCode compares the return code of a runner.
type ReturnCode struct {
	gauntlet.Base
}

func NewReturnCode(p *params.Params) *ReturnCode {
	return &ReturnCode{Base: gauntlet.NewBase(p)}
}

func (d *ReturnCode) Execute(t *gauntlet.T, returncode int, stdout, stderr string) error {
	if expected := d.Params().Int("expected"); returncode != expected {
		t.Errorf("return code %d, expected %d", returncode, expected)
	}

	return nil
}

func TextParams() *params.Params {
	p := gauntlet.ObjectParams()
	p.Add("stream", params.String, params.Default("stdout"), params.Allow("stdout", "stderr"), params.Doc("Output stream to inspect"))
	p.Add("contains", params.StringList, params.Doc("Strings the output must contain"))
	p.Add("not_contains", params.StringList, params.Doc("Strings the output must not contain"))
	p.Add("matches", params.StringList, params.Doc("Regular expressions the output must match"))

	return p
}

// Text inspects the output of a runner.
type Text struct {
	gauntlet.Base
	matches []*regexp.Regexp
}

func NewText(p *params.Params) (*Text, error) {
	d := &Text{Base: gauntlet.NewBase(p)}

	for _, expr := range p.Strings("matches") {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", expr, err)
		}
		d.matches = append(d.matches, re)
	}

	return d, nil
}

func (d *Text) Execute(t *gauntlet.T, returncode int, stdout, stderr string) error {
	p := d.Params()

	text := stdout
	if p.String("stream") == "stderr" {
		text = stderr
	}

	for _, s := range p.Strings("contains") {
		if !strings.Contains(text, s) {
			t.Errorf("%s does not contain %q", p.String("stream"), s)
		}
	}

	for _, s := range p.Strings("not_contains") {
		if strings.Contains(text, s) {
			t.Errorf("%s contains %q", p.String("stream"), s)
		}
	}

	for _, re := range d.matches {
		if !re.MatchString(text) {
			t.Errorf("%s does not match %q", p.String("stream"), re)
		}
	}

	return nil
}
