// Package config reads the csyms configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/andrewchambers/csyms/cpp"
)

type Config struct {
	// Defines maps macro names to their values, an empty value defines
	// the name as 1.
	Defines   map[string]string `yaml:"defines"`
	Undefines []string          `yaml:"undefines"`
	// CFlags is a compiler command line fragment, -D, -U, -I, -iquote
	// and -isystem are used, other flags are ignored.
	CFlags      string   `yaml:"cflags"`
	IncludeDirs []string `yaml:"include_dirs"`
	QuoteDirs   []string `yaml:"quote_dirs"`
	SystemDirs  []string `yaml:"system_dirs"`
	// Exclude holds glob patterns of paths to skip when scanning
	// directories.
	Exclude    []string `yaml:"exclude"`
	Extensions []string `yaml:"extensions"`
	Workers    int      `yaml:"workers"`
	Format     string   `yaml:"format"`
	// StrictRedefinition reports a macro redefined with a different body
	// as an error and keeps the first definition.
	StrictRedefinition bool `yaml:"strict_redefinition"`
	CacheSize          int  `yaml:"cache_size"`
}

func Default() *Config {
	return &Config{
		Defines:    make(map[string]string),
		Extensions: []string{".c", ".h"},
		Format:     "text",
	}
}

// Load reads a YAML configuration over the defaults. Unknown keys are an
// error.
func Load(fs afero.Fs, path string) (*Config, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if c.Defines == nil {
		c.Defines = make(map[string]string)
	}
	if c.CFlags != "" {
		if err := c.ApplyCFlags(c.CFlags); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Format {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	for _, p := range c.Exclude {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

// ApplyCFlags adds the preprocessor options of a compiler command line.
func (c *Config) ApplyCFlags(flags string) error {
	args, err := shellquote.Split(flags)
	if err != nil {
		return fmt.Errorf("cflags: %w", err)
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		opt, val := "", ""
		for _, o := range []string{"-isystem", "-iquote", "-D", "-U", "-I"} {
			if strings.HasPrefix(arg, o) {
				opt, val = o, arg[len(o):]
				break
			}
		}
		if opt == "" {
			continue
		}
		if val == "" {
			i++
			if i == len(args) {
				return fmt.Errorf("cflags: missing argument to %s", opt)
			}
			val = args[i]
		}
		switch opt {
		case "-D":
			c.Define(val)
		case "-U":
			delete(c.Defines, val)
			c.Undefines = append(c.Undefines, val)
		case "-I":
			c.IncludeDirs = append(c.IncludeDirs, val)
		case "-iquote":
			c.QuoteDirs = append(c.QuoteDirs, val)
		case "-isystem":
			c.SystemDirs = append(c.SystemDirs, val)
		}
	}
	return nil
}

// Define adds a definition in command line syntax, NAME or NAME=VALUE.
func (c *Config) Define(def string) {
	name, val, _ := strings.Cut(def, "=")
	if c.Defines == nil {
		c.Defines = make(map[string]string)
	}
	c.Defines[name] = val
}

// Baseline returns the frozen macro table units start with: the
// standard predefined macros, then the defines, then the undefines.
func (c *Config) Baseline() (*cpp.MacroTable, error) {
	mt := cpp.NewMacroTable()
	mt.DefineStandard()
	names := make([]string, 0, len(c.Defines))
	for name := range c.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := name
		if v := c.Defines[name]; v != "" {
			def += "=" + v
		}
		if err := mt.DefineString(def); err != nil {
			return nil, err
		}
	}
	for _, name := range c.Undefines {
		mt.Undef(name)
	}
	return mt.Freeze(), nil
}

// Excluder matches paths against the exclude patterns.
type Excluder struct {
	globs []glob.Glob
}

func (c *Config) Excluder() (*Excluder, error) {
	e := &Excluder{}
	for _, p := range c.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Excluded reports whether path or its base name matches a pattern.
func (e *Excluder) Excluded(path string) bool {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range e.globs {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

// HasSourceExt reports whether path has one of the configured
// extensions.
func (c *Config) HasSourceExt(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range c.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
