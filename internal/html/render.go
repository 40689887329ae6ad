// Package html renders the state of a run as a self-contained page.
package html

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/raphi011/gauntlet/internal/model"
)

//go:embed run.tmpl
var runTemplate string

var templatesByName map[string]*template.Template

var funcs = template.FuncMap{
	"duration": formatDuration,
	"lower":    strings.ToLower,
	"time":     func(t time.Time) string { return t.Format(time.RFC3339) },
}

func init() {
	templatesByName = make(map[string]*template.Template)

	templates := []struct {
		name     string
		template string
	}{
		{name: "run", template: runTemplate},
	}

	for _, t := range templates {
		template, err := template.New(t.name).Funcs(funcs).Parse(t.template)
		if err != nil {
			panic(fmt.Sprintf("unable to parse html template %s: %v", t.name, err))
		}

		templatesByName[t.name] = template
	}
}

// RunPage is the data of the run page.
type RunPage struct {
	Run   model.RunHTTP
	Cases []model.CaseHTTP
}

func RenderRun(page RunPage, w io.Writer) error {
	return templatesByName["run"].Execute(w, page)
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond

	if d < time.Second {
		return fmt.Sprintf("%d ms", ms)
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1f s", d.Seconds())
	}

	return d.Round(time.Second).String()
}
