package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"github.com/spf13/afero"

	"github.com/andrewchambers/csyms/config"
	"github.com/andrewchambers/csyms/cpp"
	"github.com/andrewchambers/csyms/loader"
	"github.com/andrewchambers/csyms/report"
)

const defaultConfigFile = "csyms.yaml"

// stringsFlag collects the values of a repeated flag.
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// commonFlags are shared by the subcommands that preprocess sources.
type commonFlags struct {
	fs afero.Fs

	configPath string
	verbose    bool
	cflags     string
	includes   stringsFlag
	defines    stringsFlag
	undefines  stringsFlag
	strict     bool
	workers    int
	output     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "configuration file, "+defaultConfigFile+" is used when present")
	fs.BoolVar(&c.verbose, "v", false, "log debug messages")
	fs.StringVar(&c.cflags, "cflags", "", "compiler flags to take -D, -U, -I and -isystem options from")
	fs.Var(&c.includes, "I", "add an include directory, may be repeated")
	fs.Var(&c.defines, "D", "define a macro as NAME or NAME=VALUE, may be repeated")
	fs.Var(&c.undefines, "U", "undefine a macro, may be repeated")
	fs.BoolVar(&c.strict, "strict", false, "report macro redefinitions with a different body as errors")
	fs.IntVar(&c.workers, "j", 0, "number of files processed at once, the number of CPUs when 0")
	fs.StringVar(&c.output, "o", "-", "file to write output to, - for stdout")
}

func (c *commonFlags) logger(a subcommands.Application) *log.Logger {
	level := log.InfoLevel
	if c.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.GetErr(), log.Options{
		Prefix: "csyms",
		Level:  level,
	})
}

// loadConfig reads the configuration file and applies the flags over it.
func (c *commonFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	path := c.configPath
	if path == "" {
		if _, err := c.fs.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		var err error
		cfg, err = config.Load(c.fs, path)
		if err != nil {
			return nil, err
		}
	}
	if c.cflags != "" {
		if err := cfg.ApplyCFlags(c.cflags); err != nil {
			return nil, err
		}
	}
	cfg.IncludeDirs = append(cfg.IncludeDirs, c.includes...)
	for _, d := range c.defines {
		cfg.Define(d)
	}
	for _, u := range c.undefines {
		delete(cfg.Defines, u)
		cfg.Undefines = append(cfg.Undefines, u)
	}
	if c.strict {
		cfg.StrictRedefinition = true
	}
	if c.workers != 0 {
		cfg.Workers = c.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commonFlags) newLoader(cfg *config.Config, baseline *cpp.MacroTable, logger *log.Logger) (*loader.Loader, error) {
	return loader.New(loader.Config{
		Fs:          c.fs,
		QuoteDirs:   cfg.QuoteDirs,
		IncludeDirs: cfg.IncludeDirs,
		SystemDirs:  cfg.SystemDirs,
		Baseline:    baseline,
		CacheSize:   cfg.CacheSize,
		Strict:      cfg.StrictRedefinition,
		Logger:      logger,
	})
}

// openOutput returns the writer selected by -o and a function closing it.
func (c *commonFlags) openOutput(a subcommands.Application) (io.Writer, func() error, error) {
	if c.output == "" || c.output == "-" {
		return a.GetOut(), func() error { return nil }, nil
	}
	f, err := c.fs.Create(c.output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, f.Close, nil
}

// source reads files for the caret display, nil when unreadable.
func (c *commonFlags) source(file string) []byte {
	b, err := afero.ReadFile(c.fs, file)
	if err != nil {
		return nil
	}
	return b
}

func (c *commonFlags) reportDiagnostics(a subcommands.Application, diags []cpp.Diagnostic) {
	for _, d := range diags {
		report.Diagnostic(a.GetErr(), d, c.source)
	}
}

// exitCode prints err the way the subcommands do and returns the status.
func exitCode(a subcommands.Application, err error, usage string, src report.Source) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(a.GetErr(), "%v\n%s\n", err, usage)
		return 2
	}
	fmt.Fprint(a.GetErr(), "Error: ")
	report.Error(a.GetErr(), err, src)
	return 1
}
