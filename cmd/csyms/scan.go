package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"
	"github.com/spf13/afero"

	"github.com/andrewchambers/csyms/config"
	"github.com/andrewchambers/csyms/emit"
	"github.com/andrewchambers/csyms/extract"
)

const scanUsage = `list declarations and macros

 $ csyms scan [-config csyms.yaml] [-format text|json|yaml] <paths>...

scans the C sources named by <paths>. Directories are walked for files
with the configured extensions, skipping paths matching the exclude
patterns. Files named on the command line are always scanned.
When no path is given, the current directory is scanned.

Diagnostics are printed to stderr, the records to -o.
`

func cmdScan(fs afero.Fs) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scan [flags] [<paths>...]",
		ShortDesc: "list declarations and macros",
		LongDesc:  scanUsage,
		CommandRun: func() subcommands.CommandRun {
			c := &scanRun{}
			c.fs = fs
			c.init()
			return c
		},
	}
}

type scanRun struct {
	subcommands.CommandRunBase
	commonFlags

	format string
}

func (c *scanRun) init() {
	c.commonFlags.register(&c.Flags)
	c.Flags.StringVar(&c.format, "format", "", "output format, text, json or yaml")
}

func (c *scanRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return exitCode(a, c.run(ctx, a, args), scanUsage, c.source)
}

func (c *scanRun) run(ctx context.Context, a subcommands.Application, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.format != "" {
		cfg.Format = c.format
	}
	format, err := emit.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", flag.ErrHelp, err)
	}
	logger := c.logger(a)

	if len(args) == 0 {
		args = []string{"."}
	}
	paths, err := c.collect(cfg, args)
	if err != nil {
		return err
	}
	baseline, err := cfg.Baseline()
	if err != nil {
		return err
	}
	ld, err := c.newLoader(cfg, baseline, logger)
	if err != nil {
		return err
	}

	units := make([]extract.Unit, 0, len(paths))
	total := 0
	for _, path := range paths {
		src, err := afero.ReadFile(c.fs, path)
		if err != nil {
			return err
		}
		total += len(src)
		units = append(units, extract.Unit{Name: path, Source: src, Baseline: baseline})
	}
	logger.Debug("scanning", "files", len(units), "size", humanize.Bytes(uint64(total)))

	results, procErr := extract.ProcessAll(ctx, units, extract.Options{
		Resolver: ld,
		Strict:   cfg.StrictRedefinition,
		Logger:   logger,
		Workers:  cfg.Workers,
	})
	if errors.Is(procErr, context.Canceled) {
		return procErr
	}

	records, errCount := 0, 0
	var done []*extract.Result
	for _, res := range results {
		if res == nil {
			continue
		}
		done = append(done, res)
		c.reportDiagnostics(a, res.Diagnostics)
		records += len(res.Records)
		errCount += res.ErrorCount()
	}

	w, closeOutput, err := c.openOutput(a)
	if err != nil {
		return err
	}
	err = emit.Emit(w, done, format)
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Info("scanned", "files", len(done), "size", humanize.Bytes(uint64(total)), "records", records, "errors", errCount, "headers", ld.Len())
	return procErr
}

// collect returns the files to scan, in walk order.
func (c *scanRun) collect(cfg *config.Config, args []string) ([]string, error) {
	ex, err := cfg.Excluder()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var paths []string
	for _, root := range args {
		err := afero.Walk(c.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path != root && ex.Excluded(path) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if path != root && !cfg.HasSourceExt(path) {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
