package parse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrewchambers/csyms/cpp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, name string, src []byte) ([]*Record, []cpp.Diagnostic, error) {
	t.Helper()
	base := cpp.NewMacroTable()
	base.DefineStandard()
	pp := cpp.New(context.Background(), cpp.Lex(name, src), base.Freeze().Overlay(), cpp.Config{})
	recs, err := Parse(pp)
	return recs, pp.Diagnostics().Sorted(), err
}

func parseTestCase(t *testing.T, path string) []*Record {
	t.Helper()
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	recs, diags, err := parseSource(t, path, src)
	require.NoError(t, err)
	assert.Empty(t, diags)
	return recs
}

// summary is the part of a record compared by the fixture tests. Type
// is the aggregate for composites, the aliased type for typedefs, the
// return type for functions and the body for macros.
type summary struct {
	Line int
	Kind Kind
	Name string
	Type string
}

func summarize(recs []*Record) []summary {
	var ret []summary
	for _, r := range recs {
		s := summary{Line: r.Start.Line, Kind: r.Kind, Name: r.Name}
		switch r.Kind {
		case CompositeTypeDef:
			s.Type = r.Composite.Aggregate.String()
		case TypedefAlias:
			s.Type = r.Typedef.Type
		case FunctionDecl, FunctionDef:
			s.Type = r.Function.Return
		case GlobalVariable:
			s.Type = r.Variable.Type
		case MacroDef:
			s.Type = r.Macro.Body
		}
		ret = append(ret, s)
	}
	return ret
}

func find(t *testing.T, recs []*Record, kind Kind, name string) *Record {
	t.Helper()
	for _, r := range recs {
		if r.Kind == kind && r.Name == name {
			return r
		}
	}
	t.Fatalf("no %s record named %s", kind, name)
	return nil
}

func paramTypes(fn *Function) []string {
	var ret []string
	for _, p := range fn.Params {
		ret = append(ret, p.Type)
	}
	return ret
}

func TestCompositeTypes(t *testing.T) {
	recs := parseTestCase(t, filepath.Join("testdata", "composite_types.c"))
	expected := []summary{
		{1, CompositeTypeDef, "Foo", "struct"},
		{5, CompositeTypeDef, "Point", "struct"},
		{10, CompositeTypeDef, "Color", "enum"},
		{17, CompositeTypeDef, "Rectangle", "struct"},
		{20, CompositeTypeDef, "_Style", "struct"},
		{27, CompositeTypeDef, "Number", "union"},
		{29, CompositeTypeDef, "Number", "union"},
		{43, FunctionDef, "create_rectangle", "struct Rectangle"},
		{52, GlobalVariable, "global_rect", "struct Rectangle"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, recs[5].Composite.ForwardOnly)
	assert.False(t, recs[6].Composite.ForwardOnly)

	color := recs[2].Composite
	require.Len(t, color.Members, 4)
	assert.Equal(t, Member{Name: "COLOR_NONE", Value: "0"}, color.Members[0])
	assert.Equal(t, Member{Name: "COLOR_BLUE"}, color.Members[3])

	rect := recs[3].Composite
	require.Len(t, rect.Members, 3)
	assert.Equal(t, "struct Point", rect.Members[0].Type)
	style := rect.Members[2]
	assert.Equal(t, "style", style.Name)
	assert.Equal(t, "struct _Style", style.Type)
	require.NotNil(t, style.Nested)
	assert.Same(t, recs[4], style.Nested)

	filled := recs[4].Composite.Members[1]
	assert.Equal(t, Member{Name: "filled", Type: "unsigned", BitWidth: "1"}, filled)

	num := recs[6].Composite
	require.Len(t, num.Members, 3)
	bits := num.Members[2]
	assert.Equal(t, "bits", bits.Name)
	assert.Equal(t, "struct {...}", bits.Type)
	require.NotNil(t, bits.Nested)
	assert.True(t, bits.Nested.Composite.Anonymous)
	var widths []string
	for _, m := range bits.Nested.Composite.Members {
		widths = append(widths, m.BitWidth)
	}
	assert.Equal(t, []string{"1", "8", "23"}, widths)
}

func TestFunctions(t *testing.T) {
	recs := parseTestCase(t, filepath.Join("testdata", "functions.c"))
	expected := []summary{
		{2, FunctionDef, "simple_void_function", "void"},
		{6, FunctionDef, "multiply", "float"},
		{10, FunctionDef, "pointer_params", "void"},
		{14, FunctionDef, "get_string", "const char *const"},
		{18, FunctionDef, "static_inline_combo", "void"},
		{22, FunctionDef, "apply_operation", "int"},
		{26, FunctionDef, "process_array", "void"},
		{32, FunctionDef, "matrix_op", "void"},
		{36, FunctionDef, "log_message", "void"},
		{40, CompositeTypeDef, "Point", "struct"},
		{42, FunctionDef, "create_point", "struct Point"},
		{47, FunctionDef, "allocate_point", "struct Point *"},
		{51, FunctionDef, "complex_function", "int"},
		{61, FunctionDef, "get_unsigned", "unsigned int"},
		{65, FunctionDef, "get_strings", "char **"},
		{70, FunctionDef, "old_style", "int"},
		{77, FunctionDef, "complex_ptr", "int *(*)[10]"},
		{81, FunctionDef, "signal_handler", "void (*)(int)"},
		{85, FunctionDef, "spaced_function", "int"},
		{95, FunctionDef, "commented", "int"},
		{101, FunctionDef, "exported_function", "int"},
		{105, FunctionDef, "macro_inline", "void"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	paramTests := []struct {
		name     string
		params   []string
		variadic bool
	}{
		{"simple_void_function", nil, false},
		{"multiply", []string{"float", "float", "float"}, false},
		{"pointer_params", []string{"int *", "char *", "void *"}, false},
		{"get_string", []string{"const char *"}, false},
		{"apply_operation", []string{"int (*)(int, int)", "int", "int"}, false},
		{"process_array", []string{"int[]", "size_t"}, false},
		{"matrix_op", []string{"int[10][10]"}, false},
		{"log_message", []string{"const char *"}, true},
		{"complex_function", []string{"int", "double", "const char *", "void *", "size_t"}, false},
		{"get_unsigned", []string{"unsigned char", "unsigned long"}, false},
		{"old_style", []string{"int", "int"}, false},
		{"complex_ptr", []string{"int"}, false},
		{"signal_handler", []string{"int", "void (*)(int)"}, false},
		{"spaced_function", []string{"int", "int"}, false},
		{"commented", []string{"int"}, false},
	}
	for _, tc := range paramTests {
		fn := find(t, recs, FunctionDef, tc.name).Function
		if diff := cmp.Diff(tc.params, paramTypes(fn)); diff != "" {
			t.Errorf("%s: params mismatch (-want +got):\n%s", tc.name, diff)
		}
		if fn.Variadic != tc.variadic {
			t.Errorf("%s: variadic %v, expected %v", tc.name, fn.Variadic, tc.variadic)
		}
	}

	old := find(t, recs, FunctionDef, "old_style").Function
	assert.True(t, old.KR)
	assert.Equal(t, []Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}}, old.Params)

	combo := find(t, recs, FunctionDef, "static_inline_combo").Function
	assert.Equal(t, "static", combo.Storage)
	assert.True(t, combo.Inline)

	apply := find(t, recs, FunctionDef, "apply_operation").Function
	assert.Equal(t, "op", apply.Params[0].Name)

	spaced := find(t, recs, FunctionDef, "spaced_function")
	assert.Equal(t, "int spaced_function ( int x, int y )", spaced.Signature)
	assert.Equal(t, 93, spaced.End.Line)
}

func TestTypeAliases(t *testing.T) {
	recs := parseTestCase(t, filepath.Join("testdata", "type_aliases.c"))
	expected := []summary{
		{7, TypedefAlias, "my_int", "int"},
		{8, TypedefAlias, "my_const_int", "const my_int"},
		{11, TypedefAlias, "char_ptr", "char *"},
		{12, TypedefAlias, "const_char_ptr", "const char *"},
		{13, TypedefAlias, "restrict_char_ptr", "char *restrict"},
		{14, TypedefAlias, "ptr_to_char_ptr", "char_ptr"},
		{17, TypedefAlias, "int_array", "int[10]"},
		{18, TypedefAlias, "array_of_arrays", "int_array[5]"},
		{19, TypedefAlias, "func_ptr_array", "int (*[3])(double)"},
		{22, TypedefAlias, "void_fn", "void (*)(void)"},
		{23, TypedefAlias, "binary_op", "int (*)(int, int)"},
		{24, TypedefAlias, "fn_returning_fn", "void_fn (*)(int)"},
		{27, TypedefAlias, "point_t", "struct point"},
		{27, CompositeTypeDef, "point", "struct"},
		{31, TypedefAlias, "rect_t", "struct {...}"},
		{35, TypedefAlias, "number_t", "union {...}"},
		{40, TypedefAlias, "color_t", "enum {...}"},
		{57, TypedefAlias, "anonymous_struct_t", "struct {...}"},
		{62, TypedefAlias, "anonymous_union_t", "union {...}"},
		{68, TypedefAlias, "volatile_int", "volatile int"},
		{69, TypedefAlias, "volatile_int_ptr", "volatile_int *volatile"},
		{72, TypedefAlias, "cv_ulong", "const volatile unsigned long"},
		{73, TypedefAlias, "cv_ulong_array", "cv_ulong[8]"},
		{76, TypedefAlias, "ushort_t", "unsigned short"},
		{77, CompositeTypeDef, "flag_holder", "struct"},
		{82, FunctionDef, "make_typedef_local", "void"},
		{89, TypedefAlias, "node_t", "struct node"},
		{90, CompositeTypeDef, "node", "struct"},
		{95, TypedefAlias, "aligned_int_t", "int"},
		{98, TypedefAlias, "index_t", "unsigned"},
		{98, TypedefAlias, "count_t", "unsigned"},
		{101, TypedefAlias, "recursive_fn", "int (*)(int, recursive_fn)"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	rect := find(t, recs, TypedefAlias, "rect_t").Typedef
	require.NotNil(t, rect.Inline)
	assert.True(t, rect.Inline.Composite.Anonymous)
	assert.Equal(t, []Member{{Name: "width", Type: "int"}, {Name: "height", Type: "int"}}, rect.Inline.Composite.Members)

	fpa := find(t, recs, TypedefAlias, "func_ptr_array").Typedef
	kinds := []DerivKind{}
	for _, d := range fpa.Chain {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []DerivKind{Array, Pointer, Func}, kinds)
	assert.Equal(t, "int", fpa.Underlying)

	holder := find(t, recs, CompositeTypeDef, "flag_holder").Composite
	assert.Equal(t, []Member{{Name: "flags", Type: "ushort_t", BitWidth: "9"}}, holder.Members)

	node := find(t, recs, CompositeTypeDef, "node").Composite
	assert.Equal(t, "node_t *", node.Members[0].Type)
}

func TestGlobalDeclarators(t *testing.T) {
	recs := parseTestCase(t, filepath.Join("testdata", "glob_declarators.c"))
	expected := []summary{
		{2, GlobalVariable, "global_flag", "int"},
		{3, GlobalVariable, "status_register", "volatile unsigned"},
		{4, GlobalVariable, "extern_only", "int"},
		{5, GlobalVariable, "operation_table", "binary_op[2]"},
		{6, GlobalVariable, "external_float_array", "float[5]"},
		{8, GlobalVariable, "global_counter", "int"},
		{9, GlobalVariable, "static_internal_state", "int"},
		{10, GlobalVariable, "PI", "const double"},
		{11, GlobalVariable, "extern_initialized", "int"},
		{12, GlobalVariable, "array_of_ints", "int[]"},
		{13, GlobalVariable, "alphabet", "const char[]"},
		{14, GlobalVariable, "flags", "_Bool[4]"},
		{15, GlobalVariable, "tiny_numbers", "signed char[3]"},
		{16, GlobalVariable, "huge_number", "ulong_t"},
		{17, GlobalVariable, "static_node_instance", "Node"},
		{19, GlobalVariable, "global_array", "int[10]"},
		{20, GlobalVariable, "string_table", "const char *[]"},
		{27, GlobalVariable, "multi_dimensional", "int[2][3][4]"},
		{40, GlobalVariable, "polygon_vertices", "struct Point[3]"},
		{46, GlobalVariable, "mixed_data", "union Data"},
		{49, FunctionDecl, "add", "int"},
		{50, FunctionDecl, "subtract", "int"},
		{51, FunctionDecl, "sc_adb_parse_device_ip_from_line", "char *"},
		{53, FunctionDecl, "init_operations", "void"},
		{54, FunctionDecl, "print_status", "void"},
		{55, FunctionDecl, "process_node_chain", "void"},
		{57, GlobalVariable, "pointer_to_int", "int *"},
		{58, GlobalVariable, "pointer_to_pointer", "int **"},
		{59, GlobalVariable, "function_pointer", "int (*)(int, int)"},
		{60, GlobalVariable, "array_of_function_pointers", "int (*[3])(int, int)"},
		{62, GlobalVariable, "anonymous_struct", "struct {...}"},
		{73, GlobalVariable, "volatile_node_ptr", "volatile struct Node *volatile"},
		{75, GlobalVariable, "color_table", "struct {...}"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	varTests := []struct {
		name     string
		storage  string
		hasInit  bool
		initList bool
		init     string
	}{
		{"global_flag", "", false, false, ""},
		{"extern_only", "extern", false, false, ""},
		{"global_counter", "", true, false, "0"},
		{"static_internal_state", "static", true, false, "1"},
		{"extern_initialized", "extern", true, false, "42"},
		{"array_of_ints", "static", true, true, "{ 1, 2, 3 }"},
		{"alphabet", "", true, false, `"ABCDEFGHIJKLMNOPQRSTUVWXYZ"`},
		{"static_node_instance", "static", true, true, "{ .value = 99, .next = NULL }"},
		{"pointer_to_int", "", true, false, "&global_counter"},
		{"function_pointer", "", true, false, "add"},
		{"volatile_node_ptr", "", true, false, "NULL"},
		{"color_table", "static", false, false, ""},
	}
	for _, tc := range varTests {
		v := find(t, recs, GlobalVariable, tc.name).Variable
		got := []interface{}{v.Storage, v.HasInit, v.InitList, v.Init}
		want := []interface{}{tc.storage, tc.hasInit, tc.initList, tc.init}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", tc.name, diff)
		}
	}

	anon := find(t, recs, GlobalVariable, "anonymous_struct").Variable
	require.NotNil(t, anon.Inline)
	require.Len(t, anon.Inline.Composite.Members, 2)
	payload := anon.Inline.Composite.Members[1]
	assert.Equal(t, "union {...}", payload.Type)
	require.NotNil(t, payload.Nested)
	assert.Equal(t, Union, payload.Nested.Composite.Aggregate)

	chain := find(t, recs, GlobalVariable, "volatile_node_ptr").Variable.Chain
	assert.Equal(t, []Derivation{{Kind: Pointer, Qualifiers: []string{"volatile"}}}, chain)

	proc := find(t, recs, FunctionDecl, "process_node_chain").Function
	assert.Equal(t, []Param{{Name: "head", Type: "Node *"}}, proc.Params)
	assert.Equal(t, "static", find(t, recs, FunctionDecl, "print_status").Function.Storage)
}

func TestMacroRecords(t *testing.T) {
	src := `#define MAX(a, b) ((a) > (b) ? (a) : (b))
#if 0
#define HIDDEN 1
#endif
#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)
int x;
`
	recs, diags, err := parseSource(t, "macros.c", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, diags)
	expected := []summary{
		{1, MacroDef, "MAX", "((a) > (b) ? (a) : (b))"},
		{3, MacroDef, "HIDDEN", "1"},
		{5, MacroDef, "LOG", "printf(fmt, __VA_ARGS__)"},
		{6, GlobalVariable, "x", "int"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, recs[0].Macro.Active)
	assert.Equal(t, []string{"a", "b"}, recs[0].Macro.Params)
	assert.False(t, recs[1].Macro.Active)
	assert.True(t, recs[2].Macro.Variadic)
	assert.Equal(t, "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)", recs[2].Signature)
}

func TestMacroExpandedDeclarations(t *testing.T) {
	src := `#define DECLARE(name) int name##_count
#define API extern
DECLARE(widgets);
API int api_call(void);
`
	recs, diags, err := parseSource(t, "expanded.c", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, diags)
	widgets := find(t, recs, GlobalVariable, "widgets_count")
	assert.Equal(t, "int", widgets.Variable.Type)
	call := find(t, recs, FunctionDecl, "api_call")
	assert.Equal(t, "extern", call.Function.Storage)
}

func TestSkippedDeclarations(t *testing.T) {
	src := `DECLARE_THING(foo);
int ok;
x = 5;
int 5;
int after;
typedef int T;
typedef long T;
`
	recs, diags, err := parseSource(t, "skip.c", []byte(src))
	require.NoError(t, err)
	expected := []summary{
		{2, GlobalVariable, "ok", "int"},
		{5, GlobalVariable, "after", "int"},
		{6, TypedefAlias, "T", "int"},
		{7, TypedefAlias, "T", "long"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	var lines []int
	for _, d := range diags {
		assert.Equal(t, cpp.SyntaxError, d.Kind)
		assert.Equal(t, cpp.SeverityWarning, d.Severity)
		lines = append(lines, d.Pos.Line)
	}
	assert.Equal(t, []int{1, 3, 4, 7}, lines)
	assert.Contains(t, diags[0].Msg, "unexpanded macro invocation DECLARE_THING")
	assert.True(t, strings.HasSuffix(diags[2].Msg, "declaration skipped"))
	assert.Contains(t, diags[3].Msg, "conflicting types for typedef T")
}

func TestUnterminated(t *testing.T) {
	recs, _, err := parseSource(t, "open.c", []byte("int a;\n#ifdef X\nint b;\n"))
	require.Error(t, err)
	var loc cpp.ErrorLoc
	require.ErrorAs(t, err, &loc)
	assert.Equal(t, 2, loc.Pos.Line)
	assert.Equal(t, []summary{{1, GlobalVariable, "a", "int"}}, summarize(recs))

	recs, diags, err := parseSource(t, "body.c", []byte("int a;\nint f(void) {\n  return 0;\n"))
	require.NoError(t, err)
	assert.Equal(t, []summary{{1, GlobalVariable, "a", "int"}}, summarize(recs))
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Msg, "unterminated function body")
}

func TestStrayBlock(t *testing.T) {
	src := "{ int x; }\nint y;\n{ int a; { int b; } }\nint z;\n{ int c;\n"
	recs, diags, err := parseSource(t, "stray.c", []byte(src))
	require.NoError(t, err)
	expected := []summary{
		{2, GlobalVariable, "y", "int"},
		{4, GlobalVariable, "z", "int"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	var msgs []string
	for _, d := range diags {
		msgs = append(msgs, fmt.Sprintf("%d: %s", d.Pos.Line, d.Msg))
	}
	assert.Equal(t, []string{
		"1: block at file scope, skipped",
		"3: block at file scope, skipped",
		"5: block at file scope, skipped",
		"5: unterminated block",
	}, msgs)
}

func TestResumeAfterDirective(t *testing.T) {
	src := "int a\n#define LIMIT 4\nint b;\nint c\n#ifdef X\n#endif\nint d;\nint e\nint f;\n"
	recs, diags, err := parseSource(t, "resume.c", []byte(src))
	require.NoError(t, err)
	expected := []summary{
		{2, MacroDef, "LIMIT", "4"},
		{3, GlobalVariable, "b", "int"},
		{7, GlobalVariable, "d", "int"},
	}
	if diff := cmp.Diff(expected, summarize(recs)); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	var lines []int
	for _, d := range diags {
		assert.True(t, strings.HasSuffix(d.Msg, "declaration skipped"), d.Msg)
		lines = append(lines, d.Pos.Line)
	}
	// Without a directive between them, e and f are lost together.
	assert.Equal(t, []int{3, 7, 9}, lines)
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		base     string
		chain    []Derivation
		expected string
	}{
		{"int", nil, "int"},
		{"char", []Derivation{{Kind: Pointer}, {Kind: Pointer, Qualifiers: []string{"const"}}}, "char *const *"},
		{"int", []Derivation{{Kind: Array, Size: "3"}, {Kind: Pointer}}, "int *[3]"},
		{"int", []Derivation{{Kind: Pointer}, {Kind: Array, Size: "3"}}, "int (*)[3]"},
		{"void", []Derivation{{Kind: Pointer}, {Kind: Func, Prototype: true}}, "void (*)(void)"},
		{"int", []Derivation{{Kind: Pointer}, {Kind: Func}}, "int (*)()"},
		{"int", []Derivation{{Kind: Func, KR: true, Params: []Param{{Name: "a"}, {Name: "b"}}}}, "int (a, b)"},
	} {
		got := typeString(tc.base, tc.chain)
		if got != tc.expected {
			t.Errorf("typeString(%q, %v) = %q, expected %q", tc.base, tc.chain, got, tc.expected)
		}
	}
}
