// Package loader resolves #include directives against a set of include
// directories. A header is preprocessed on its own, over the baseline
// macros, and only its effect on the macro table is kept.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/andrewchambers/csyms/cpp"
)

const (
	defaultCacheSize = 256
	defaultMaxDepth  = 200
)

type Config struct {
	Fs afero.Fs
	// QuoteDirs are searched for "header" includes only, after the
	// directory of the including file.
	QuoteDirs   []string
	IncludeDirs []string
	SystemDirs  []string
	// Baseline is the frozen macro table headers are processed over.
	Baseline  *cpp.MacroTable
	CacheSize int
	MaxDepth  int
	Strict    bool
	Logger    *log.Logger
}

// Loader is a cpp.IncludeResolver. It is safe for concurrent use.
type Loader struct {
	fs       afero.Fs
	quote    []string
	dirs     []string
	baseline *cpp.MacroTable
	maxDepth int
	strict   bool
	log      *log.Logger

	cache *lru.Cache[string, *cpp.MacroDelta]
	group singleflight.Group
}

var _ cpp.IncludeResolver = (*Loader)(nil)

func New(cfg Config) (*Loader, error) {
	if cfg.Baseline == nil {
		return nil, errors.New("loader: no baseline macro table")
	}
	size := cfg.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *cpp.MacroDelta](size)
	if err != nil {
		return nil, fmt.Errorf("loader: cache: %w", err)
	}
	l := &Loader{
		fs:       cfg.Fs,
		baseline: cfg.Baseline,
		maxDepth: cfg.MaxDepth,
		strict:   cfg.Strict,
		log:      cfg.Logger,
		cache:    cache,
	}
	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}
	if l.maxDepth == 0 {
		l.maxDepth = defaultMaxDepth
	}
	if l.log == nil {
		l.log = log.New(io.Discard)
	}
	for _, d := range cfg.QuoteDirs {
		l.quote = append(l.quote, filepath.Clean(d))
	}
	for _, d := range cfg.IncludeDirs {
		l.dirs = append(l.dirs, filepath.Clean(d))
	}
	for _, d := range cfg.SystemDirs {
		l.dirs = append(l.dirs, filepath.Clean(d))
	}
	return l, nil
}

// ResolveInclude returns the macro changes made by the included header.
// Angle bracket headers that are not found resolve to nothing, as system
// headers are often unavailable. Quoted headers that are not found are
// an error.
func (l *Loader) ResolveInclude(ctx context.Context, req cpp.IncludeRequest) (*cpp.MacroDelta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := l.find(req)
	if !ok {
		if req.Angled {
			l.log.Debug("system header not found", "header", req.Header)
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", req.Header, os.ErrNotExist)
	}
	if slices.Contains(req.Chain, path) {
		// Recursive include, the guard of the file is already defined
		// or it would recurse forever.
		return &cpp.MacroDelta{}, nil
	}
	if len(req.Chain) >= l.maxDepth {
		return nil, fmt.Errorf("#include nested too deeply, %d levels at %s", len(req.Chain), path)
	}
	if len(req.Chain) > 1 {
		// Nested includes are not cached, their result depends on the
		// chain.
		return l.load(ctx, path, req.Chain)
	}
	if d, ok := l.cache.Get(path); ok {
		return d, nil
	}
	v, err, _ := l.group.Do(path, func() (any, error) {
		d, err := l.load(ctx, path, req.Chain)
		if err != nil {
			return nil, err
		}
		l.cache.Add(path, d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cpp.MacroDelta), nil
}

func (l *Loader) load(ctx context.Context, path string, chain []string) (*cpp.MacroDelta, error) {
	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, err
	}
	mt := l.baseline.Overlay()
	pp := cpp.New(ctx, cpp.Lex(path, src), mt, cpp.Config{
		Resolver: l,
		Chain:    chain,
		Strict:   l.strict,
		Logger:   l.log,
	})
	if err := pp.Drain(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d := mt.Delta()
	l.log.Debug("loaded header", "path", path, "defined", len(d.Defined), "undefined", len(d.Undefined))
	return d, nil
}

// find returns the path of the header named by req.
func (l *Loader) find(req cpp.IncludeRequest) (string, bool) {
	if filepath.IsAbs(req.Header) {
		return req.Header, l.isFile(req.Header)
	}
	var dirs []string
	if !req.Angled {
		dirs = append(dirs, filepath.Dir(req.From))
		dirs = append(dirs, l.quote...)
	}
	dirs = append(dirs, l.dirs...)
	if req.Next {
		// Continue after the directory the current file was found in.
		from := filepath.Dir(req.From)
		for i, d := range dirs {
			if d == from {
				dirs = dirs[i+1:]
				break
			}
		}
	}
	for _, d := range dirs {
		p := filepath.Join(d, req.Header)
		if l.isFile(p) {
			return p, true
		}
	}
	return "", false
}

func (l *Loader) isFile(path string) bool {
	fi, err := l.fs.Stat(path)
	return err == nil && !fi.IsDir()
}

// Len returns the number of cached headers.
func (l *Loader) Len() int {
	return l.cache.Len()
}
