package cpp

import (
	"context"
	"strings"
)

// IncludeRequest describes one #include directive to resolve.
type IncludeRequest struct {
	// From is the file containing the directive.
	From   string
	Header string
	Angled bool
	// Next is set for #include_next.
	Next bool
	// Chain lists the files being processed, outermost first, From last.
	Chain []string
}

// IncludeResolver finds the header named by an include and returns the
// macro changes processing it would make.
//
// A resolver is shared by all units processed together and must be safe
// for concurrent use. The returned delta must not be modified.
type IncludeResolver interface {
	ResolveInclude(ctx context.Context, req IncludeRequest) (*MacroDelta, error)
}

// Include records an #include directive of an active region.
type Include struct {
	Pos    FilePos `json:"pos" yaml:"pos"`
	Header string  `json:"header" yaml:"header"`
	Angled bool    `json:"angled" yaml:"angled"`
	Next   bool    `json:"next,omitempty" yaml:"next,omitempty"`
	// Resolved is set when the resolver found the header.
	Resolved bool `json:"resolved" yaml:"resolved"`
}

// Spelling is the header name as written, with its delimiters.
func (inc Include) Spelling() string {
	if inc.Angled {
		return "<" + inc.Header + ">"
	}
	return "\"" + inc.Header + "\""
}

func (pp *Preprocessor) handleInclude(dir *Token, line []*Token) {
	header, rest, ok := pp.headerName(line)
	if !ok {
		pp.diags.Errorf(DirectiveError, dir.Pos, "#%s expects \"FILENAME\" or <FILENAME>", dir.Val)
		return
	}
	pp.extraTokens(dir, rest)
	inc := Include{
		Pos:    dir.Pos,
		Header: header[1 : len(header)-1],
		Angled: header[0] == '<',
		Next:   dir.Val == "include_next",
	}
	if pp.cfg.Resolver != nil {
		chain := make([]string, 0, len(pp.cfg.Chain)+1)
		chain = append(chain, pp.cfg.Chain...)
		chain = append(chain, pp.file)
		delta, err := pp.cfg.Resolver.ResolveInclude(pp.ctx, IncludeRequest{
			From:   pp.file,
			Header: inc.Header,
			Angled: inc.Angled,
			Next:   inc.Next,
			Chain:  chain,
		})
		switch {
		case err != nil:
			pp.diags.Warnf(DirectiveError, dir.Pos, "%v", err)
		case delta != nil:
			pp.macros.Apply(delta)
			inc.Resolved = true
			pp.log.Debug("applied include", "header", inc.Spelling(), "defined", len(delta.Defined), "undefined", len(delta.Undefined))
		}
	}
	pp.includes = append(pp.includes, inc)
}

// headerName returns the delimited header name of an include line,
// expanding macros when it is not written literally.
func (pp *Preprocessor) headerName(line []*Token) (string, []*Token, bool) {
	if len(line) == 0 {
		return "", nil, false
	}
	if line[0].Kind == HEADER {
		h := line[0].Val
		if len(h) < 2 || (h[0] == '<' && h[len(h)-1] != '>') || (h[0] == '"' && h[len(h)-1] != '"') {
			return "", nil, false
		}
		return h, line[1:], true
	}
	toks := pp.expandAll(line)
	if len(toks) == 0 {
		return "", nil, false
	}
	switch toks[0].Kind {
	case STRING:
		if !strings.HasPrefix(toks[0].Val, "\"") || len(toks[0].Val) < 2 {
			return "", nil, false
		}
		return toks[0].Val, toks[1:], true
	case LSS:
		for i := 1; i < len(toks); i++ {
			if toks[i].Kind == GTR {
				return "<" + JoinTokens(toks[1:i]) + ">", toks[i+1:], true
			}
		}
	}
	return "", nil, false
}
