package params

import (
	"errors"
	"testing"
	"time"

	"github.com/raphi011/gauntlet/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schema() *Params {
	p := New()
	p.Add("name", String, Required())
	p.Add("retries", Int, Default(3))
	p.Add("ratio", Float)
	p.Add("verbose", Bool, Default(false))
	p.Add("timeout", Duration, Default("2s"))
	p.Add("os", StringList, Allow("linux", "darwin"))
	p.Add("codes", IntList)

	return p
}

func TestDefaultsAreUsedUntilSet(t *testing.T) {
	t.Parallel()

	p := schema()

	assert.Equal(t, 3, p.Int("retries"))
	assert.Equal(t, 2*time.Second, p.Duration("timeout"))
	assert.False(t, p.IsSet("retries"))

	require.NoError(t, p.Set("retries", 5))

	assert.Equal(t, 5, p.Int("retries"))
	assert.True(t, p.IsSet("retries"))
}

func TestSetConvertsToTheDeclaredKind(t *testing.T) {
	t.Parallel()

	p := schema()

	require.NoError(t, p.Set("name", 42))
	require.NoError(t, p.Set("retries", "7"))
	require.NoError(t, p.Set("ratio", 1))
	require.NoError(t, p.Set("verbose", "true"))
	require.NoError(t, p.Set("timeout", 1.5))
	require.NoError(t, p.Set("os", "linux"))
	require.NoError(t, p.Set("codes", []any{0, 2.0}))

	assert.Equal(t, "42", p.String("name"))
	assert.Equal(t, 7, p.Int("retries"))
	assert.Equal(t, 1.0, p.Float("ratio"))
	assert.True(t, p.Bool("verbose"))
	assert.Equal(t, 1500*time.Millisecond, p.Duration("timeout"))
	assert.Equal(t, []string{"linux"}, p.Strings("os"))
	assert.Equal(t, []int{0, 2}, p.Ints("codes"))
}

func TestSetRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		param string
		value any
	}{
		{name: "not a number", param: "retries", value: "many"},
		{name: "fraction for int", param: "retries", value: 1.5},
		{name: "bad duration", param: "timeout", value: "soon"},
		{name: "bad bool", param: "verbose", value: 3},
		{name: "value not allowed", param: "os", value: []any{"linux", "plan9"}},
		{name: "unknown parameter", param: "colour", value: "red"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := schema().Set(tt.param, tt.value)

			var verr model.ValidationError
			require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
			assert.Equal(t, tt.param, verr.Param)
		})
	}
}

func TestApplyRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	err := schema().Apply(map[string]any{"name": "x", "zzz": 1, "aaa": 2})

	var verr model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "aaa", verr.Param, "the first unknown key in sorted order is reported")
}

func TestValidateRequiresMandatoryParameters(t *testing.T) {
	t.Parallel()

	p := schema()
	assert.Error(t, p.Validate())

	require.NoError(t, p.Set("name", "x"))
	assert.NoError(t, p.Validate())
}

func TestSectionsAreAppliedAndValidated(t *testing.T) {
	t.Parallel()

	sub := New()
	sub.Add("require", StringList, Required())

	p := schema()
	p.AddSection("env", sub)

	kind, ok := p.Kind("env")
	require.True(t, ok)
	assert.Equal(t, Section, kind)

	require.NoError(t, p.Set("name", "x"))
	assert.Error(t, p.Validate(), "required parameter of the section is missing")

	require.NoError(t, p.Apply(map[string]any{"env": map[string]any{"require": []any{"HOME"}}}))
	require.NoError(t, p.Validate())

	assert.Equal(t, []string{"HOME"}, p.Section("env").Strings("require"))
	assert.Empty(t, p.Section("missing").Names())

	assert.Error(t, p.Set("env", "HOME"), "sections need a map")
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	sub := New()
	sub.Add("flag", Bool)

	p := schema()
	p.AddSection("s", sub)

	c := p.Clone()
	require.NoError(t, c.Set("retries", 9))
	require.NoError(t, c.Section("s").Set("flag", true))

	assert.Equal(t, 3, p.Int("retries"))
	assert.False(t, p.Section("s").Bool("flag"))
	assert.Equal(t, p.Names(), c.Names())
}

func TestSetDefaultValidatesTheValue(t *testing.T) {
	t.Parallel()

	p := schema()

	require.NoError(t, p.SetDefault("retries", "10"))
	assert.Equal(t, 10, p.Int("retries"))

	assert.Error(t, p.SetDefault("retries", "ten"))
	assert.Error(t, p.SetDefault("missing", 1))
}

func TestAddPanicsOnDuplicates(t *testing.T) {
	t.Parallel()

	p := schema()

	assert.Panics(t, func() { p.Add("name", String) })
	assert.Panics(t, func() { p.Add("broken", Int, Default("x")) })
}

func TestGetOnNilParams(t *testing.T) {
	t.Parallel()

	var p *Params

	assert.Nil(t, p.Get("x"))
	assert.Empty(t, p.String("x"))
	assert.NotNil(t, p.Section("x"))
}
