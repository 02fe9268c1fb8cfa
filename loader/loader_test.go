package loader

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewchambers/csyms/cpp"
	"github.com/andrewchambers/csyms/extract"
)

var testFiles = map[string]string{
	"/inc/config.h": `#ifndef CONFIG_H
#define CONFIG_H
#define VERSION 3
#include "detail.h"
#endif
`,
	"/inc/detail.h": "#define DETAIL(x) ((x) + VERSION)\n#undef OLD\n",
	"/inc/self.h":   "#include \"self.h\"\n#define SELF 1\n",
	"/inc/open.h":   "#if 1\n#define OPEN 1\n",
	"/a/x.h":        "#define X_LEVEL 1\n#include_next <x.h>\n",
	"/b/x.h":        "#define X_NEXT 2\n",
	"/src/main.c":   "#include \"config.h\"\nint arr[VERSION];\nint d = DETAIL(1);\n",
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range testFiles {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	l, err := New(Config{
		Fs:          fs,
		IncludeDirs: []string{"/inc", "/a"},
		SystemDirs:  []string{"/b"},
		Baseline:    extract.StandardBaseline(),
	})
	require.NoError(t, err)
	return l
}

func definedNames(d *cpp.MacroDelta) []string {
	var ret []string
	for _, m := range d.Defined {
		ret = append(ret, m.Name)
	}
	sort.Strings(ret)
	return ret
}

func TestResolveInclude(t *testing.T) {
	l := newTestLoader(t)
	ctx := context.Background()
	req := cpp.IncludeRequest{From: "/src/main.c", Header: "config.h", Chain: []string{"/src/main.c"}}

	d, err := l.ResolveInclude(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"CONFIG_H", "DETAIL", "VERSION"}, definedNames(d))
	assert.Equal(t, []string{"OLD"}, d.Undefined)
	assert.Equal(t, 1, l.Len())

	again, err := l.ResolveInclude(ctx, req)
	require.NoError(t, err)
	assert.Same(t, d, again)
}

func TestResolveMissing(t *testing.T) {
	l := newTestLoader(t)
	ctx := context.Background()

	d, err := l.ResolveInclude(ctx, cpp.IncludeRequest{From: "/src/main.c", Header: "stdio.h", Angled: true})
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = l.ResolveInclude(ctx, cpp.IncludeRequest{From: "/src/main.c", Header: "nope.h"})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = l.ResolveInclude(ctx, cpp.IncludeRequest{From: "/src/main.c", Header: "open.h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated conditional")
}

func TestResolveRecursive(t *testing.T) {
	l := newTestLoader(t)
	d, err := l.ResolveInclude(context.Background(), cpp.IncludeRequest{From: "/src/main.c", Header: "self.h", Chain: []string{"/src/main.c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELF"}, definedNames(d))
}

func TestResolveIncludeNext(t *testing.T) {
	l := newTestLoader(t)
	d, err := l.ResolveInclude(context.Background(), cpp.IncludeRequest{From: "/src/main.c", Header: "x.h", Angled: true, Chain: []string{"/src/main.c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"X_LEVEL", "X_NEXT"}, definedNames(d))
}

func TestResolveConcurrent(t *testing.T) {
	l := newTestLoader(t)
	req := cpp.IncludeRequest{From: "/src/main.c", Header: "config.h", Chain: []string{"/src/main.c"}}
	var wg sync.WaitGroup
	deltas := make([]*cpp.MacroDelta, 16)
	for i := range deltas {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.ResolveInclude(context.Background(), req)
			assert.NoError(t, err)
			deltas[i] = d
		}()
	}
	wg.Wait()
	for _, d := range deltas {
		require.NotNil(t, d)
		assert.Len(t, d.Defined, 3)
	}
	assert.Equal(t, 1, l.Len())
}

func TestResolveCanceled(t *testing.T) {
	l := newTestLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.ResolveInclude(ctx, cpp.IncludeRequest{From: "/src/main.c", Header: "config.h"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoaderWithExtract(t *testing.T) {
	l := newTestLoader(t)
	res, err := extract.Process(context.Background(), extract.Unit{
		Name:   "/src/main.c",
		Source: []byte(testFiles["/src/main.c"]),
	}, extract.Options{Resolver: l})
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Includes, 1)
	assert.True(t, res.Includes[0].Resolved)
	assert.Equal(t, "int[3]", res.Lookup("arr")[0].Variable.Type)
	assert.Equal(t, "((1) + 3)", res.Lookup("d")[0].Variable.Init)
}

func TestNewErrors(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Baseline: extract.StandardBaseline(), CacheSize: -1})
	require.Error(t, err)
}
