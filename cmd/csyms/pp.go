package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/maruel/subcommands"
	"github.com/spf13/afero"

	"github.com/andrewchambers/csyms/cpp"
	"github.com/andrewchambers/csyms/extract"
)

const ppUsage = `print tokens after preprocessing

 $ csyms pp [-join] <file>

prints one kind:value:line:col line per token of <file> after macro
expansion and conditional inclusion, or the expanded text with -join.
`

const tokensUsage = `print tokens after lexing

 $ csyms tokens <file>

prints one kind:value:line:col line per token of <file>, directives
included, without any preprocessing.
`

func cmdPreprocess(fs afero.Fs) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "pp [flags] <file>",
		ShortDesc: "print tokens after preprocessing",
		LongDesc:  ppUsage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &ppRun{}
			c.fs = fs
			c.init()
			return c
		},
	}
}

type ppRun struct {
	subcommands.CommandRunBase
	commonFlags

	join bool
}

func (c *ppRun) init() {
	c.commonFlags.register(&c.Flags)
	c.Flags.BoolVar(&c.join, "join", false, "print the expanded source text instead of tokens")
}

func (c *ppRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return exitCode(a, c.run(ctx, a, args), ppUsage, c.source)
}

func (c *ppRun) run(ctx context.Context, a subcommands.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: want a single source file, got %d arguments", flag.ErrHelp, len(args))
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	baseline, err := cfg.Baseline()
	if err != nil {
		return err
	}
	logger := c.logger(a)
	ld, err := c.newLoader(cfg, baseline, logger)
	if err != nil {
		return err
	}
	src, err := afero.ReadFile(c.fs, args[0])
	if err != nil {
		return err
	}
	toks, diags, ppErr := extract.Preprocess(ctx, extract.Unit{Name: args[0], Source: src, Baseline: baseline}, extract.Options{
		Resolver: ld,
		Strict:   cfg.StrictRedefinition,
		Logger:   logger,
	})
	c.reportDiagnostics(a, diags)

	w, closeOutput, err := c.openOutput(a)
	if err != nil {
		return err
	}
	if c.join {
		_, err = fmt.Fprintln(w, cpp.JoinTokens(toks))
	} else {
		err = dumpTokens(w, toks)
	}
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return ppErr
}

func cmdTokens(fs afero.Fs) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "tokens [-o <file>] <file>",
		ShortDesc: "print tokens after lexing",
		LongDesc:  tokensUsage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &tokensRun{}
			c.fs = fs
			c.Flags.StringVar(&c.output, "o", "-", "file to write output to, - for stdout")
			return c
		},
	}
}

type tokensRun struct {
	subcommands.CommandRunBase
	commonFlags
}

func (c *tokensRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	return exitCode(a, c.run(a, args), tokensUsage, c.source)
}

func (c *tokensRun) run(a subcommands.Application, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: want a single source file, got %d arguments", flag.ErrHelp, len(args))
	}
	src, err := afero.ReadFile(c.fs, args[0])
	if err != nil {
		return err
	}
	lx := cpp.Lex(args[0], src)
	var toks []*cpp.Token
	for {
		tok := lx.Next()
		if tok.Kind == cpp.EOF {
			break
		}
		toks = append(toks, tok)
	}
	c.reportDiagnostics(a, lx.Diagnostics().Sorted())

	w, closeOutput, err := c.openOutput(a)
	if err != nil {
		return err
	}
	err = dumpTokens(w, toks)
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	return err
}

func dumpTokens(w io.Writer, toks []*cpp.Token) error {
	for _, tok := range toks {
		if _, err := fmt.Fprintf(w, "%s:%s:%d:%d\n", tok.Kind, tok.Val, tok.Pos.Line, tok.Pos.Col); err != nil {
			return err
		}
	}
	return nil
}
