package emit

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/andrewchambers/csyms/extract"
)

const src = `#include <stdint.h>
#define LIMIT 4
#if 0
#define OLD 1
#endif
struct pair { int a, b; };
union value;
typedef int (*cmp_fn)(const void *, const void *);
static const char *names[LIMIT] = { "a" };
int sum(int n, ...);
int 5;
`

func testResults(t *testing.T) []*extract.Result {
	t.Helper()
	res, err := extract.Process(context.Background(), extract.Unit{Name: "demo.c", Source: []byte(src)}, extract.Options{})
	require.NoError(t, err)
	return []*extract.Result{res}
}

func TestEmitText(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, Emit(&b, testResults(t), Text))
	expected := `demo.c:
  2:9	macro	#define LIMIT 4
  4:9	macro	#define OLD 1 (inactive)
  6:8	composite	struct pair { 2 members }
  7:7	composite	union value;
  8:15	typedef	typedef int (*)(const void *, const void *) cmp_fn
  9:20	variable	static const char *[4] names = { "a" }
  10:5	function_decl	int sum(int n, ...)
  1:1	include	<stdint.h> unresolved
  11:5	warning	syntax: syntax error: expected identifier got intconst, declaration skipped
`
	assert.Equal(t, expected, b.String())
}

func TestEmitJSON(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, Emit(&b, testResults(t), JSON))
	var out []map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(b.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "demo.c", out[0]["unit"])
	recs := out[0]["records"].([]interface{})
	require.Len(t, recs, 7)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, "macro", first["kind"])
	assert.Equal(t, "LIMIT", first["name"])
	pos := first["pos"].(map[string]interface{})
	assert.Equal(t, float64(2), pos["line"])
	fn := recs[6].(map[string]interface{})["function"].(map[string]interface{})
	assert.Equal(t, true, fn["variadic"])
	diags := out[0]["diagnostics"].([]interface{})
	assert.Equal(t, "warning", diags[0].(map[string]interface{})["severity"])
}

func TestEmitYAML(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, Emit(&b, testResults(t), YAML))
	var out []struct {
		Unit    string `yaml:"unit"`
		Records []struct {
			Kind     string `yaml:"kind"`
			Name     string `yaml:"name"`
			Variable *struct {
				Type     string `yaml:"type"`
				InitList bool   `yaml:"init_list"`
			} `yaml:"variable"`
		} `yaml:"records"`
	}
	require.NoError(t, yaml.Unmarshal(b.Bytes(), &out))
	require.Len(t, out, 1)
	recs := out[0].Records
	require.Len(t, recs, 7)
	assert.Equal(t, "composite", recs[2].Kind)
	assert.Equal(t, "names", recs[5].Name)
	require.NotNil(t, recs[5].Variable)
	assert.Equal(t, "const char *[4]", recs[5].Variable.Type)
	assert.True(t, recs[5].Variable.InitList)
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{Text, JSON, YAML} {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
