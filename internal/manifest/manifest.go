// Package manifest loads command definitions from YAML files so commands
// can be added without recompiling.
//
//	commands:
//	  - name: greet
//	    format: "<who> [greeting]"
//	    aliases: [hi]
//	    flags: ["--shout", "-s"]
//	    attributes: {owner: ops}
//	    reply: "{{default \"Hello\" .Args.greeting}}, {{.Args.who}}!"
//	  - name: deploy-status
//	    run: [echo, "deploys are owned by {{.Attributes.owner}}"]
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/nidhogg/nuka-commands/internal/command"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// File is the top-level document of a manifest.
type File struct {
	Commands []Entry `yaml:"commands"`
}

// Entry describes one command. Exactly one of Reply and Run must be set.
type Entry struct {
	Name        string         `yaml:"name"`
	Format      string         `yaml:"format"`
	Description string         `yaml:"description"`
	Aliases     []string       `yaml:"aliases"`
	Flags       []string       `yaml:"flags"`
	Attributes  map[string]any `yaml:"attributes"`
	Reply       string         `yaml:"reply"`
	Run         []string       `yaml:"run"`
}

// TemplateData is what reply and run templates are rendered with.
type TemplateData struct {
	Args       command.Args
	Flags      command.Flags
	Sender     string
	Attributes map[string]any
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"default": func(def, v string) string {
		if v == "" {
			return def
		}
		return v
	},
}

// Parse decodes a manifest document. Entries that fail to compile are
// skipped and reported together in the returned error; the rest are still
// returned.
func Parse(data []byte, source string) ([]command.Spec, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse manifest %s: %w", source, err)
	}

	var (
		specs []command.Spec
		errs  error
	)
	for i, e := range f.Commands {
		spec, err := e.Spec()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: command #%d (%s): %w", source, i+1, e.Name, err))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// Spec compiles the entry into a registrable command spec.
func (e Entry) Spec() (command.Spec, error) {
	if strings.TrimSpace(e.Name) == "" {
		return command.Spec{}, errors.New("name is required")
	}
	if (e.Reply == "") == (len(e.Run) == 0) {
		return command.Spec{}, errors.New("exactly one of reply or run is required")
	}

	attrs := make(map[string]command.Value, len(e.Attributes))
	for k, v := range e.Attributes {
		val, err := command.ValueOf(v)
		if err != nil {
			return command.Spec{}, fmt.Errorf("attribute %s: %w", k, err)
		}
		attrs[k] = val
	}

	var handler command.Handler
	if e.Reply != "" {
		tmpl, err := parseTemplate(e.Name+".reply", e.Reply)
		if err != nil {
			return command.Spec{}, err
		}
		handler = replyHandler(tmpl)
	} else {
		tmpls := make([]*template.Template, len(e.Run))
		for i, item := range e.Run {
			tmpl, err := parseTemplate(fmt.Sprintf("%s.run.%d", e.Name, i), item)
			if err != nil {
				return command.Spec{}, err
			}
			tmpls[i] = tmpl
		}
		handler = runHandler(tmpls)
	}

	return command.Spec{
		Name:        e.Name,
		Format:      e.Format,
		Description: e.Description,
		Aliases:     e.Aliases,
		Flags:       e.Flags,
		Attributes:  attrs,
		Handler:     handler,
	}, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

func templateData(s command.Sender, args command.Args, flags command.Flags, attrs *command.Attributes) TemplateData {
	data := TemplateData{Args: args, Flags: flags, Attributes: make(map[string]any)}
	if s != nil {
		data.Sender = s.Name()
	}
	for k, v := range attrs.Snapshot() {
		data.Attributes[k] = v.Any()
	}
	return data
}

func render(tmpl *template.Template, data TemplateData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}

func replyHandler(tmpl *template.Template) command.Handler {
	return command.AttributesHandler(func(_ context.Context, s command.Sender, args command.Args, flags command.Flags, attrs *command.Attributes) error {
		text, err := render(tmpl, templateData(s, args, flags, attrs))
		if err != nil {
			return err
		}
		return s.SendMessage(text)
	})
}

func runHandler(tmpls []*template.Template) command.Handler {
	return command.AttributesHandler(func(ctx context.Context, s command.Sender, args command.Args, flags command.Flags, attrs *command.Attributes) error {
		data := templateData(s, args, flags, attrs)
		var argv []string
		for _, tmpl := range tmpls {
			item, err := render(tmpl, data)
			if err != nil {
				return err
			}
			argv = append(argv, strings.Fields(item)...)
		}
		if len(argv) == 0 {
			return command.Failf("nothing to run")
		}

		res, err := s.RunCommand(argv[0], argv[1:]).Wait(ctx)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", argv[0], err)
		}
		if res.Outcome != command.OutcomeSuccess {
			return command.Failf("%s finished with %s", argv[0], res.Outcome)
		}
		return nil
	})
}
