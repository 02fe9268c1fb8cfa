// Package extract runs source units through the preprocessor and the
// declaration classifier.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/andrewchambers/csyms/cpp"
	"github.com/andrewchambers/csyms/parse"
)

// Unit is one source file to process.
type Unit struct {
	Name   string
	Source []byte
	// Baseline holds the macros defined before the first line. It must
	// be frozen. When nil the standard predefined macros are used.
	Baseline *cpp.MacroTable
}

type Options struct {
	// Resolver handles #include directives. It is shared by all units.
	Resolver cpp.IncludeResolver
	Strict   bool
	Logger   *log.Logger
	// Workers limits the units processed at once by ProcessAll,
	// runtime.NumCPU() when zero.
	Workers int
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard)
	}
	return o.Logger
}

// Result is what was extracted from one unit.
type Result struct {
	Unit         string            `json:"unit" yaml:"unit"`
	Size         int               `json:"size" yaml:"size"`
	Records      []*parse.Record   `json:"records" yaml:"records"`
	Includes     []cpp.Include     `json:"includes,omitempty" yaml:"includes,omitempty"`
	Conditionals []cpp.Conditional `json:"conditionals,omitempty" yaml:"conditionals,omitempty"`
	Diagnostics  []cpp.Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Lookup returns the records named name, in source order.
func (r *Result) Lookup(name string) []*parse.Record {
	var ret []*parse.Record
	for _, rec := range r.Records {
		if rec.Name == name {
			ret = append(ret, rec)
		}
	}
	return ret
}

func (r *Result) ErrorCount() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == cpp.SeverityError {
			n++
		}
	}
	return n
}

var standardBaseline = sync.OnceValue(func() *cpp.MacroTable {
	mt := cpp.NewMacroTable()
	mt.DefineStandard()
	return mt.Freeze()
})

// StandardBaseline returns a frozen table of the standard predefined
// macros.
func StandardBaseline() *cpp.MacroTable {
	return standardBaseline()
}

func newPreprocessor(ctx context.Context, u Unit, opts Options) *cpp.Preprocessor {
	base := u.Baseline
	if base == nil {
		base = StandardBaseline()
	}
	return cpp.New(ctx, cpp.Lex(u.Name, u.Source), base.Overlay(), cpp.Config{
		Resolver: opts.Resolver,
		Strict:   opts.Strict,
		Logger:   opts.logger().With("unit", u.Name),
	})
}

// Process extracts the records of one unit. An unterminated conditional
// is returned as an error along with the result.
func Process(ctx context.Context, u Unit, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pp := newPreprocessor(ctx, u, opts)
	recs, err := parse.Parse(pp)
	res := &Result{
		Unit:         u.Name,
		Size:         len(u.Source),
		Records:      recs,
		Includes:     pp.Includes(),
		Conditionals: pp.Conditionals(),
		Diagnostics:  pp.Diagnostics().Sorted(),
	}
	opts.logger().Debug("processed unit", "unit", u.Name, "records", len(res.Records), "diagnostics", len(res.Diagnostics))
	if err != nil {
		return res, fmt.Errorf("%s: %w", u.Name, err)
	}
	return res, nil
}

// ProcessAll processes units concurrently. Results are in the order of
// units. Errors of single units are joined and do not stop the others,
// only cancellation of ctx does.
func ProcessAll(ctx context.Context, units []Unit, opts Options) ([]*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]*Result, len(units))
	errs := make([]error, len(units))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, u := range units {
		i, u := i, u
		eg.Go(func() error {
			res, err := Process(ctx, u, opts)
			if res == nil {
				return err
			}
			results[i] = res
			errs[i] = err
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

// Preprocess returns the expanded tokens of a unit, without EOF.
func Preprocess(ctx context.Context, u Unit, opts Options) ([]*cpp.Token, []cpp.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pp := newPreprocessor(ctx, u, opts)
	var toks []*cpp.Token
	for {
		t, err := pp.Next()
		if t.Kind == cpp.EOF {
			if err != nil {
				err = fmt.Errorf("%s: %w", u.Name, err)
			}
			return toks, pp.Diagnostics().Sorted(), err
		}
		toks = append(toks, t)
	}
}
