package builtin

import (
	"os"
	"runtime"

	"github.com/raphi011/gauntlet"
	"github.com/raphi011/gauntlet/params"
	"golang.org/x/exp/slices"
)

func PlatformParams() *params.Params {
	return gauntlet.ObjectParams()
}

// Platform skips objects that are restricted to other operating systems.
type Platform struct {
	gauntlet.Base
	goos string
}

func NewPlatform(p *params.Params) *Platform {
	return &Platform{Base: gauntlet.NewBase(p), goos: runtime.GOOS}
}

func (c *Platform) Prefix() string {
	return "platform"
}

func (c *Platform) ObjectParams() *params.Params {
	p := params.New()
	p.Add("os", params.StringList, params.Allow("linux", "darwin", "windows", "freebsd", "openbsd", "netbsd"), params.Doc("Operating systems the object may run on, all when empty"))

	return p
}

func (c *Platform) Execute(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
	allowed := cfg.Strings("os")

	if len(allowed) > 0 && !slices.Contains(allowed, c.goos) {
		t.Skip("platform not allowed")
	}

	return nil
}

func EnvironmentParams() *params.Params {
	return gauntlet.ObjectParams()
}

// Environment skips objects whose required environment variables are not
// set.
type Environment struct {
	gauntlet.Base
	lookup func(key string) (string, bool)
}

func NewEnvironment(p *params.Params) *Environment {
	return &Environment{Base: gauntlet.NewBase(p), lookup: os.LookupEnv}
}

func (c *Environment) Prefix() string {
	return "env"
}

func (c *Environment) ObjectParams() *params.Params {
	p := params.New()
	p.Add("require", params.StringList, params.Doc("Environment variables that must be set"))

	return p
}

func (c *Environment) Execute(t *gauntlet.T, target gauntlet.Object, cfg *params.Params) error {
	for _, key := range cfg.Strings("require") {
		if _, ok := c.lookup(key); !ok {
			t.Skipf("environment variable %s not set", key)
		}
	}

	return nil
}
