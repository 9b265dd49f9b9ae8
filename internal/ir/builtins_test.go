package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins_Lookup(t *testing.T) {
	t.Parallel()

	b := NewBuiltins(NewParentIndex())

	t.Run("Class", func(t *testing.T) {
		t.Parallel()
		d, err := b.Lookup("kotlin.Int")
		require.NoError(t, err)
		assert.Equal(t, b.Int, d)
	})

	t.Run("Member", func(t *testing.T) {
		t.Parallel()
		d, err := b.Lookup("kotlin.Int.plus")
		require.NoError(t, err)
		fn, ok := d.(*Function)
		require.True(t, ok)
		assert.Equal(t, "plus", fn.Name)
		assert.Equal(t, b.Int, b.parents.Parent(fn))
	})

	t.Run("Intrinsic", func(t *testing.T) {
		t.Parallel()
		d, err := b.Lookup("kotlin.internal.ir.EQEQ")
		require.NoError(t, err)
		assert.Equal(t, b.InternalIR, b.parents.Parent(d))
	})

	t.Run("FunctionK", func(t *testing.T) {
		t.Parallel()
		d, err := b.Lookup("kotlin.jvm.functions.Function2.invoke")
		require.NoError(t, err)
		fn := d.(*Function)
		assert.Len(t, fn.ValueParameters, 2)
		assert.Equal(t, ModalityAbstract, fn.Modality)
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		_, err := b.Lookup("kotlin.Nope")
		assert.Error(t, err)
	})
}

func TestBuiltins_FunctionKIsMemoized(t *testing.T) {
	t.Parallel()

	b := NewBuiltins(NewParentIndex())
	f3 := b.FunctionK(3)
	assert.Same(t, f3, b.FunctionK(3))
	assert.Len(t, f3.TypeParameters, 4)
	assert.Equal(t, "R", f3.TypeParameters[3].Name)
	assert.Equal(t, "Function3", f3.Name)
}

func TestBuiltins_IsNumeric(t *testing.T) {
	t.Parallel()

	b := NewBuiltins(NewParentIndex())
	assert.True(t, b.IsNumeric(b.Int))
	assert.True(t, b.IsNumeric(b.Double))
	assert.False(t, b.IsNumeric(b.Boolean))
	assert.False(t, b.IsNumeric(b.String))
}

func TestType_IsUnspecialised(t *testing.T) {
	t.Parallel()

	b := NewBuiltins(NewParentIndex())
	arrT := b.Array.TypeParameters[0]

	assert.True(t, ClassType(b.Array, ParamType(arrT)).IsUnspecialised())
	assert.False(t, ClassType(b.Array, ClassType(b.Int)).IsUnspecialised())
	assert.False(t, ClassType(b.Array).IsUnspecialised())
	assert.False(t, ParamType(arrT).IsUnspecialised())
}

func TestFile_FileClassName(t *testing.T) {
	t.Parallel()

	tests := []struct{ path, want string }{
		{"src/foo.kt", "FooKt"},
		{"Bar.kt", "BarKt"},
		{`dir\baz.kt`, "BazKt"},
		{"noext", "NoextKt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&File{Path: tt.path}).FileClassName(), tt.path)
	}
}

func TestChildren(t *testing.T) {
	t.Parallel()

	a := &Const{Kind: ConstInt, Value: "1"}
	c := &Const{Kind: ConstInt, Value: "2"}
	call := &Call{DispatchReceiver: a, Args: []Expression{nil, c}}

	assert.Equal(t, []Statement{a, c}, Children(call))
	assert.Empty(t, Children(&FunctionExpression{Function: &Function{}}))
}
