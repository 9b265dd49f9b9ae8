package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUnit = `{
  "externals": [
    {"name": "lib", "facade": "lib.LibKt", "declarations": [
      {"kind": "class", "id": "lib.Box", "name": "Box",
       "typeParameters": [{"id": "lib.Box.T", "name": "T"}],
       "declarations": [
         {"kind": "function", "id": "lib.Box.get", "name": "get",
          "dispatchReceiverParameter": {"id": "lib.Box.get.this", "name": "<this>", "type": {"class": "lib.Box", "args": [{"type": {"param": "lib.Box.T"}}]}},
          "returnType": {"param": "lib.Box.T"}}
       ]}
    ]}
  ],
  "files": [
    {"path": "src/main.kt", "package": "app", "loc": [1, 1, 20, 1], "declarations": [
      {"kind": "function", "id": "f", "name": "f", "loc": [3, 1, 8, 2],
       "valueParameters": [{"id": "f.x", "name": "x", "type": {"class": "builtin:kotlin.Int"}}],
       "returnType": {"class": "builtin:kotlin.Int"},
       "body": {"kind": "block_body", "statements": [
         {"kind": "variable", "id": "f.y", "name": "y", "var": true, "type": {"class": "builtin:kotlin.Int"},
          "initializer": {"kind": "const", "constKind": "int", "text": "1", "type": {"class": "builtin:kotlin.Int"}}},
         {"kind": "set_value", "symbol": "f.y", "origin": "PLUSEQ", "loc": [5, 3, 5, 9],
          "value": {"kind": "call", "callee": "builtin:kotlin.Int.plus", "origin": "PLUSEQ",
                    "dispatchReceiver": {"kind": "get_value", "symbol": "f.y"},
                    "args": [{"kind": "get_value", "symbol": "f.x"}]}},
         {"kind": "mystery_node", "loc": [6, 3, 6, 4]},
         {"kind": "return", "target": "f", "value": {"kind": "get_value", "symbol": "f.y"}}
       ]}}
    ]}
  ]
}`

func TestDecode(t *testing.T) {
	t.Parallel()

	u, err := Decode(strings.NewReader(sampleUnit))
	require.NoError(t, err)
	require.Len(t, u.Files, 1)
	require.Len(t, u.Externals, 1)

	f := u.Files[0]
	assert.Equal(t, "app", f.Package)
	assert.Equal(t, "MainKt", f.FileClassName())
	require.Len(t, f.Declarations, 1)

	fn, ok := f.Declarations[0].(*Function)
	require.True(t, ok)
	assert.Equal(t, u.Builtins.Int, fn.ReturnType.Class())
	assert.Equal(t, Location{File: "src/main.kt", StartLine: 3, StartCol: 1, EndLine: 8, EndCol: 2}, fn.Loc())
	assert.Equal(t, f, u.Parents.Parent(fn))

	body, ok := fn.Body.(*BlockBody)
	require.True(t, ok)
	require.Len(t, body.Statements, 4)

	v, ok := body.Statements[0].(*Variable)
	require.True(t, ok)
	assert.Equal(t, fn, u.Parents.Parent(v))

	set, ok := body.Statements[1].(*SetValue)
	require.True(t, ok)
	assert.Equal(t, OriginPlusEq, set.Origin)
	assert.Equal(t, v, set.Symbol)
	call, ok := set.Value.(*Call)
	require.True(t, ok)
	assert.Equal(t, "plus", call.Callee.Name)
	assert.Equal(t, u.Builtins.Int, u.Parents.Parent(call.Callee))

	un, ok := body.Statements[2].(*Unsupported)
	require.True(t, ok)
	assert.Equal(t, "mystery_node", un.Kind)
	assert.Equal(t, 6, un.Loc().StartLine)

	ret, ok := body.Statements[3].(*Return)
	require.True(t, ok)
	assert.Equal(t, fn, ret.Target)
}

func TestDecode_Externals(t *testing.T) {
	t.Parallel()

	u, err := Decode(strings.NewReader(sampleUnit))
	require.NoError(t, err)

	pkg := u.Externals[0]
	box, ok := pkg.Declarations[0].(*Class)
	require.True(t, ok)
	assert.Equal(t, pkg, u.Parents.Parent(box))

	get := box.Member("get")
	require.NotNil(t, get)
	assert.Equal(t, box.TypeParameters[0], get.ReturnType.TypeParameter())
	assert.True(t, get.DispatchReceiver.Type.IsUnspecialised())
	assert.Equal(t, -1, get.DispatchReceiver.Index)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Malformed", `{"files": [`, "decoding declaration tree"},
		{"UnresolvedRef", `{"files":[{"path":"a.kt","declarations":[{"kind":"field","id":"x","type":{"class":"nope"}}]}]}`, `unresolved reference "nope"`},
		{"UnknownBuiltin", `{"files":[{"path":"a.kt","declarations":[{"kind":"field","id":"x","type":{"class":"builtin:kotlin.Nope"}}]}]}`, "unknown builtin"},
		{"DuplicateID", `{"files":[{"path":"a.kt","declarations":[{"kind":"class","id":"c"},{"kind":"class","id":"c"}]}]}`, `duplicate id "c"`},
		{"UnknownDecl", `{"files":[{"path":"a.kt","declarations":[{"kind":"macro"}]}]}`, `unknown declaration kind "macro"`},
		{"WrongRefType", `{"files":[{"path":"a.kt","declarations":[{"kind":"class","id":"c"},{"kind":"field","id":"x","type":{"param":"c"}}]}]}`, "has type *ir.Class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
