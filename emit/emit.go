// Package emit writes extraction results as text, JSON or YAML.
package emit

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/andrewchambers/csyms/extract"
	"github.com/andrewchambers/csyms/parse"
)

type Format int

const (
	Text Format = iota
	JSON
	YAML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	}
	return "text"
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return Text, nil
	case "json":
		return JSON, nil
	case "yaml":
		return YAML, nil
	}
	return Text, fmt.Errorf("unknown output format %q", s)
}

func Emit(w io.Writer, results []*extract.Result, f Format) error {
	switch f {
	case JSON:
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	}
	e := &emitter{o: w}
	for _, r := range results {
		e.emitResult(r)
	}
	return e.err
}

type emitter struct {
	o   io.Writer
	err error
}

func (e *emitter) emit(s string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.o, s, args...)
}

func (e *emitter) emiti(s string, args ...interface{}) {
	e.emit("  "+s, args...)
}

func (e *emitter) emitResult(r *extract.Result) {
	e.emit("%s:\n", r.Unit)
	for _, rec := range r.Records {
		e.emiti("%d:%d\t%s\t%s\n", rec.Pos.Line, rec.Pos.Col, rec.Kind, Describe(rec))
	}
	for _, inc := range r.Includes {
		state := "unresolved"
		if inc.Resolved {
			state = "resolved"
		}
		e.emiti("%d:%d\tinclude\t%s %s\n", inc.Pos.Line, inc.Pos.Col, inc.Spelling(), state)
	}
	for _, d := range r.Diagnostics {
		e.emiti("%d:%d\t%s\t%s: %s\n", d.Pos.Line, d.Pos.Col, d.Severity, d.Kind, d.Msg)
	}
}

// Describe renders a record as a one line C-like declaration.
func Describe(r *parse.Record) string {
	switch r.Kind {
	case parse.CompositeTypeDef:
		c := r.Composite
		s := c.Aggregate.String()
		if r.Name != "" {
			s += " " + r.Name
		}
		switch {
		case c.ForwardOnly:
			return s + ";"
		case c.Aggregate == parse.Enum:
			return fmt.Sprintf("%s { %d constants }", s, len(c.Members))
		}
		return fmt.Sprintf("%s { %d members }", s, len(c.Members))
	case parse.TypedefAlias:
		return "typedef " + r.Typedef.Type + " " + r.Name
	case parse.FunctionDecl, parse.FunctionDef:
		fn := r.Function
		var params []string
		for _, p := range fn.Params {
			s := p.Type
			if p.Name != "" {
				s = strings.TrimSpace(s + " " + p.Name)
			}
			params = append(params, s)
		}
		if fn.Variadic {
			params = append(params, "...")
		}
		if len(params) == 0 && fn.Prototype {
			params = append(params, "void")
		}
		s := fn.Return + " " + r.Name + "(" + strings.Join(params, ", ") + ")"
		if fn.Storage != "" {
			s = fn.Storage + " " + s
		}
		return s
	case parse.GlobalVariable:
		v := r.Variable
		s := v.Type + " " + r.Name
		if v.Storage != "" {
			s = v.Storage + " " + s
		}
		if v.HasInit {
			s += " = " + v.Init
		}
		return s
	case parse.MacroDef:
		if !r.Macro.Active {
			return r.Signature + " (inactive)"
		}
	}
	return r.Signature
}
