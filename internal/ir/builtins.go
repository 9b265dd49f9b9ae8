package ir

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Package names of the builtin declarations.
const (
	PkgKotlin             = "kotlin"
	PkgInternalIR         = "kotlin.internal.ir"
	PkgKotlinJvmFunctions = "kotlin.jvm.functions"
	PkgKotlinJvmInternal  = "kotlin.jvm.internal"
	PkgJavaLang           = "java.lang"
)

// Builtins holds the declarations the front-end treats as intrinsic:
// primitive classes, arithmetic operators, comparison intrinsics, arrays and
// the function interfaces used by generated classes. Each decoded unit owns
// one Builtins so its parent index stays self-contained.
type Builtins struct {
	Kotlin             *Package
	InternalIR         *Package
	KotlinJvmFunctions *Package
	KotlinJvmInternal  *Package
	JavaLang           *Package

	Any, Unit, Nothing, Boolean, Char  *Class
	Byte, Short, Int, Long             *Class
	Float, Double, String, Array, Enum *Class

	// PrimitiveArrays maps "IntArray" and friends to their class.
	PrimitiveArrays map[string]*Class

	FunctionN         *Class
	FunctionReference *Class
	Intrinsics        *Class
	JavaString        *Class
	JavaObject        *Class

	parents *ParentIndex

	mu        sync.Mutex
	functionK map[int]*Class
	byName    map[string]Declaration
}

// NewBuiltins creates the builtin declarations and registers their parents
// in idx.
func NewBuiltins(idx *ParentIndex) *Builtins {
	b := &Builtins{
		Kotlin:             &Package{Name: PkgKotlin, FacadeName: "kotlin.LibraryKt"},
		InternalIR:         &Package{Name: PkgInternalIR, FacadeName: "kotlin.internal.ir.IrKt"},
		KotlinJvmFunctions: &Package{Name: PkgKotlinJvmFunctions},
		KotlinJvmInternal:  &Package{Name: PkgKotlinJvmInternal},
		JavaLang:           &Package{Name: PkgJavaLang},
		PrimitiveArrays:    make(map[string]*Class),
		parents:            idx,
		functionK:          make(map[int]*Class),
		byName:             make(map[string]Declaration),
	}

	b.Any = b.class(b.Kotlin, "Any", KindClass, ModalityOpen, "")
	b.addConstructor(b.Any)
	b.Unit = b.class(b.Kotlin, "Unit", KindObject, ModalityFinal, "")
	b.Nothing = b.class(b.Kotlin, "Nothing", KindClass, ModalityFinal, "")
	b.Boolean = b.class(b.Kotlin, "Boolean", KindClass, ModalityFinal, "boolean")
	b.Char = b.class(b.Kotlin, "Char", KindClass, ModalityFinal, "char")
	b.Byte = b.class(b.Kotlin, "Byte", KindClass, ModalityFinal, "byte")
	b.Short = b.class(b.Kotlin, "Short", KindClass, ModalityFinal, "short")
	b.Int = b.class(b.Kotlin, "Int", KindClass, ModalityFinal, "int")
	b.Long = b.class(b.Kotlin, "Long", KindClass, ModalityFinal, "long")
	b.Float = b.class(b.Kotlin, "Float", KindClass, ModalityFinal, "float")
	b.Double = b.class(b.Kotlin, "Double", KindClass, ModalityFinal, "double")
	b.String = b.class(b.Kotlin, "String", KindClass, ModalityFinal, "")
	b.Enum = b.class(b.Kotlin, "Enum", KindClass, ModalityAbstract, "")
	b.addConstructor(b.Enum)

	anyN := ClassType(b.Any).WithNullability(true)
	for _, c := range []*Class{b.Byte, b.Short, b.Int, b.Long, b.Float, b.Double} {
		t := ClassType(c)
		for _, op := range []string{"plus", "minus", "times", "div", "rem"} {
			b.member(c, op, t, t)
		}
		b.member(c, "compareTo", ClassType(b.Int), t)
	}
	b.member(b.Boolean, "not", ClassType(b.Boolean))
	b.member(b.String, "plus", ClassType(b.String), anyN)
	b.member(b.Any, "toString", ClassType(b.String))
	b.member(b.Any, "equals", ClassType(b.Boolean), anyN)
	b.member(b.Any, "hashCode", ClassType(b.Int))

	// Array<T>
	b.Array = b.class(b.Kotlin, "Array", KindClass, ModalityFinal, "")
	b.Array.IsArray = true
	arrT := b.typeParam(b.Array, "T", 0)
	arrOf := ClassType(b.Array, ParamType(arrT))
	b.member(b.Array, "get", ParamType(arrT), ClassType(b.Int))
	b.member(b.Array, "set", ClassType(b.Unit), ClassType(b.Int), ParamType(arrT))
	b.member(b.Array, "clone", arrOf)
	for _, el := range []*Class{b.Boolean, b.Char, b.Byte, b.Short, b.Int, b.Long, b.Float, b.Double} {
		name := el.Name + "Array"
		c := b.class(b.Kotlin, name, KindClass, ModalityFinal, "")
		c.PrimitiveArrayOf = el.JvmPrimitive
		b.PrimitiveArrays[name] = c
		b.member(c, "get", ClassType(el), ClassType(b.Int))
		b.member(c, "set", ClassType(b.Unit), ClassType(b.Int), ClassType(el))
		b.member(c, "clone", ClassType(c))

		fn := b.topLevel(b.Kotlin, strings.ToLower(el.Name[:1])+el.Name[1:]+"ArrayOf", ClassType(c))
		fn.ValueParameters = []*ValueParameter{{Name: "elements", Type: ClassType(c), Index: 0, VarargElementType: ClassType(el)}}
	}

	arrayOf := b.topLevel(b.Kotlin, "arrayOf", nil)
	t := b.typeParam(arrayOf, "T", 0)
	arrayOf.ReturnType = ClassType(b.Array, ParamType(t))
	arrayOf.ValueParameters = []*ValueParameter{{Name: "elements", Type: ClassType(b.Array, ParamType(t)), Index: 0, VarargElementType: ParamType(t)}}

	arrayOfNulls := b.topLevel(b.Kotlin, "arrayOfNulls", nil, ClassType(b.Int))
	t = b.typeParam(arrayOfNulls, "T", 0)
	arrayOfNulls.ReturnType = ClassType(b.Array, ParamType(t).WithNullability(true))

	enumValues := b.topLevel(b.Kotlin, "enumValues", nil)
	t = b.typeParam(enumValues, "T", 0)
	enumValues.ReturnType = ClassType(b.Array, ParamType(t))
	enumValueOf := b.topLevel(b.Kotlin, "enumValueOf", nil, ClassType(b.String))
	t = b.typeParam(enumValueOf, "T", 0)
	enumValueOf.ReturnType = ParamType(t)

	strPlus := b.topLevel(b.Kotlin, "plus", ClassType(b.String), anyN)
	strPlus.ExtensionReceiver = &ValueParameter{Name: "<this>", Type: ClassType(b.String).WithNullability(true), Index: -1}
	toString := b.topLevel(b.Kotlin, "toString", ClassType(b.String))
	toString.ExtensionReceiver = &ValueParameter{Name: "<this>", Type: anyN, Index: -1}

	boolean := ClassType(b.Boolean)
	for _, name := range []string{"less", "lessOrEqual", "greater", "greaterOrEqual"} {
		b.topLevel(b.InternalIR, name, boolean, ClassType(b.Int), ClassType(b.Int))
	}
	for _, name := range []string{"EQEQ", "EQEQEQ", "ieee754equals"} {
		b.topLevel(b.InternalIR, name, boolean, anyN, anyN)
	}
	checkNotNull := b.topLevel(b.InternalIR, "CHECK_NOT_NULL", nil)
	t = b.typeParam(checkNotNull, "T", 0)
	checkNotNull.ReturnType = ParamType(t)
	checkNotNull.ValueParameters = []*ValueParameter{{Name: "arg0", Type: ParamType(t).WithNullability(true), Index: 0}}
	b.topLevel(b.InternalIR, "THROW_CCE", ClassType(b.Nothing))
	b.topLevel(b.InternalIR, "ANDAND", boolean, boolean, boolean)
	b.topLevel(b.InternalIR, "OROR", boolean, boolean, boolean)
	b.topLevel(b.InternalIR, "noWhenBranchMatchedException", ClassType(b.Nothing))
	b.topLevel(b.InternalIR, "illegalArgumentException", ClassType(b.Nothing), ClassType(b.String))

	// FunctionN<R>
	b.FunctionN = b.class(b.KotlinJvmFunctions, "FunctionN", KindInterface, ModalityAbstract, "")
	r := b.typeParam(b.FunctionN, "R", 0)
	inv := b.member(b.FunctionN, "invoke", ParamType(r), ClassType(b.Array, anyN))
	inv.Modality = ModalityAbstract
	b.FunctionN.SuperTypes = []*Type{ClassType(b.Any)}

	b.FunctionReference = b.class(b.KotlinJvmInternal, "FunctionReference", KindClass, ModalityAbstract, "")
	b.FunctionReference.SuperTypes = []*Type{ClassType(b.Any)}
	b.addConstructor(b.FunctionReference)

	b.Intrinsics = b.class(b.KotlinJvmInternal, "Intrinsics", KindClass, ModalityFinal, "")
	sp := b.member(b.Intrinsics, "stringPlus", ClassType(b.String), ClassType(b.String).WithNullability(true), anyN)
	sp.IsStatic = true
	sp.DispatchReceiver = nil

	b.JavaObject = b.class(b.JavaLang, "Object", KindClass, ModalityOpen, "")
	b.member(b.JavaObject, "clone", ClassType(b.Any))
	b.JavaString = b.class(b.JavaLang, "String", KindClass, ModalityFinal, "")
	vo := b.member(b.JavaString, "valueOf", ClassType(b.String), anyN)
	vo.IsStatic = true
	vo.DispatchReceiver = nil

	return b
}

func (b *Builtins) class(p *Package, name string, kind ClassKind, mod Modality, prim string) *Class {
	c := &Class{Name: name, Kind: kind, Modality: mod, JvmPrimitive: prim}
	c.ThisReceiver = &ValueParameter{Name: "<this>", Index: -1}
	p.Declarations = append(p.Declarations, c)
	b.parents.Set(c, p)
	b.parents.Set(c.ThisReceiver, c)
	b.byName[p.Name+"."+name] = c
	return c
}

func (b *Builtins) typeParam(parent DeclarationParent, name string, idx int) *TypeParameter {
	tp := &TypeParameter{Name: name, Index: idx}
	switch p := parent.(type) {
	case *Class:
		p.TypeParameters = append(p.TypeParameters, tp)
		if p.ThisReceiver != nil {
			p.ThisReceiver.Type = thisType(p)
		}
	case *Function:
		p.TypeParameters = append(p.TypeParameters, tp)
	}
	b.parents.Set(tp, parent)
	return tp
}

func thisType(c *Class) *Type {
	t := &Type{Classifier: c}
	for _, tp := range c.TypeParameters {
		t.Args = append(t.Args, &TypeProjection{Type: ParamType(tp)})
	}
	return t
}

func (b *Builtins) params(fn *Function, types []*Type) {
	for i, t := range types {
		p := &ValueParameter{Name: "arg" + strconv.Itoa(i), Type: t, Index: i}
		fn.ValueParameters = append(fn.ValueParameters, p)
		b.parents.Set(p, fn)
	}
}

func (b *Builtins) member(c *Class, name string, ret *Type, params ...*Type) *Function {
	if c.ThisReceiver.Type == nil {
		c.ThisReceiver.Type = thisType(c)
	}
	fn := &Function{Name: name, ReturnType: ret, Modality: ModalityFinal}
	fn.DispatchReceiver = &ValueParameter{Name: "<this>", Type: c.ThisReceiver.Type, Index: -1}
	b.params(fn, params)
	c.Declarations = append(c.Declarations, fn)
	b.parents.Set(fn, c)
	b.parents.Set(fn.DispatchReceiver, fn)
	for _, pk := range []*Package{b.Kotlin, b.KotlinJvmInternal, b.JavaLang, b.KotlinJvmFunctions} {
		if b.parents.Parent(c) == pk {
			b.byName[pk.Name+"."+c.Name+"."+name] = fn
		}
	}
	return fn
}

func (b *Builtins) addConstructor(c *Class) *Function {
	if c.ThisReceiver.Type == nil {
		c.ThisReceiver.Type = thisType(c)
	}
	fn := &Function{Name: "<init>", IsConstructor: true, IsPrimary: true, ReturnType: c.ThisReceiver.Type}
	c.Declarations = append(c.Declarations, fn)
	b.parents.Set(fn, c)
	return fn
}

func (b *Builtins) topLevel(p *Package, name string, ret *Type, params ...*Type) *Function {
	fn := &Function{Name: name, ReturnType: ret, Modality: ModalityFinal}
	b.params(fn, params)
	p.Declarations = append(p.Declarations, fn)
	b.parents.Set(fn, p)
	key := p.Name + "." + name
	if _, dup := b.byName[key]; !dup {
		b.byName[key] = fn
	}
	return fn
}

// FunctionK returns the interface kotlin.jvm.functions.Function{k}, with
// type parameters P1..Pk and R and an abstract invoke. It is created on first
// use.
func (b *Builtins) FunctionK(k int) *Class {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.functionK[k]; ok {
		return c
	}
	c := b.class(b.KotlinJvmFunctions, "Function"+strconv.Itoa(k), KindInterface, ModalityAbstract, "")
	var params []*Type
	for i := 1; i <= k; i++ {
		params = append(params, ParamType(b.typeParam(c, "P"+strconv.Itoa(i), i-1)))
	}
	r := b.typeParam(c, "R", k)
	c.SuperTypes = []*Type{ClassType(b.Any)}
	inv := b.member(c, "invoke", ParamType(r), params...)
	inv.Modality = ModalityAbstract
	b.functionK[k] = c
	return c
}

// Lookup resolves a fully qualified builtin name such as "kotlin.Int",
// "kotlin.Int.plus" or "kotlin.internal.ir.less".
func (b *Builtins) Lookup(fq string) (Declaration, error) {
	if rest, ok := strings.CutPrefix(fq, PkgKotlinJvmFunctions+".Function"); ok {
		name, member, _ := strings.Cut(rest, ".")
		if k, err := strconv.Atoi(name); err == nil {
			c := b.FunctionK(k)
			if member == "" {
				return c, nil
			}
			if f := c.Member(member); f != nil {
				return f, nil
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.byName[fq]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown builtin %q", fq)
}

// IsNumeric reports whether c is one of the numeric builtin classes.
func (b *Builtins) IsNumeric(c *Class) bool {
	switch c {
	case b.Int, b.Byte, b.Short, b.Long, b.Float, b.Double:
		return true
	}
	return false
}
