// Package ir provides the typed declaration tree consumed by the extractor.
//
// The tree is produced by a compiler front-end and is treated as read-only:
// files hold declarations, declarations hold nested declarations and bodies,
// and bodies hold statements and expressions. Node kinds form closed sets
// expressed as sealed interfaces, so every consumer can switch exhaustively
// over them.
package ir

import "fmt"

// Location is a source span. Lines and columns are 1-based.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// String renders the location as file:line:col.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.StartLine, l.StartCol)
}

// Node is anything that carries a source location.
type Node interface {
	Loc() Location
}

// DeclarationParent is a node that can own declarations: a file, an external
// package, a class, or a function (for local declarations).
type DeclarationParent interface {
	declarationParent()
}

// Declaration is a named program element.
type Declaration interface {
	Node
	declNode()
}

// Statement is an element of a block: either an expression or a local
// declaration (variable, class or function).
type Statement interface {
	Node
	stmtNode()
}

// Visibility is a declaration's access level.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityInternal
	VisibilityLocal
)

// Modality is a class or member's finality.
type Modality int

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

// ClassKind distinguishes the flavours of class-like declarations.
type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindEnumClass
	KindEnumEntry
	KindObject
	KindAnnotationClass
)

// File is one source file of the unit.
type File struct {
	Path         string
	Package      string
	Declarations []Declaration
	Location     Location
}

func (f *File) Loc() Location      { return f.Location }
func (f *File) declarationParent() {}

// FileClassName is the name of the synthetic class holding the file's
// top-level functions and properties, e.g. "FooKt" for "src/foo.kt".
func (f *File) FileClassName() string {
	base := f.Path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' || base[i] == '\\' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	if base == "" {
		return "Kt"
	}
	return string(upper(base[0])) + base[1:] + "Kt"
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// Package is an external package fragment. Declarations parented by a
// Package live outside the unit being extracted.
type Package struct {
	Name string
	// FacadeName is the class that holds the package's top-level functions.
	FacadeName   string
	Declarations []Declaration
}

func (p *Package) declarationParent() {}

// Class is a class, interface, enum, object or companion object.
type Class struct {
	Name           string
	Kind           ClassKind
	Modality       Modality
	Visibility     Visibility
	IsCompanion    bool
	IsAnonymous    bool
	IsInner        bool
	TypeParameters []*TypeParameter
	SuperTypes     []*Type
	Declarations   []Declaration
	// ThisReceiver is the implicit receiver used by `this` inside the class.
	ThisReceiver *ValueParameter
	// JvmPrimitive names the primitive a non-null use of this class maps to
	// ("int", "boolean", ...), or is empty.
	JvmPrimitive string
	// IsArray marks the generic Array class.
	IsArray bool
	// PrimitiveArrayOf names the element primitive for IntArray and friends.
	PrimitiveArrayOf string
	Location         Location
}

func (c *Class) Loc() Location      { return c.Location }
func (c *Class) declNode()          {}
func (c *Class) stmtNode()          {}
func (c *Class) declarationParent() {}
func (c *Class) classifier()        {}
func (c *Class) IsInterface() bool  { return c.Kind == KindInterface }
func (c *Class) IsEnum() bool       { return c.Kind == KindEnumClass }
func (c *Class) IsObject() bool     { return c.Kind == KindObject }
func (c *Class) IsNonCompanionObject() bool {
	return c.Kind == KindObject && !c.IsCompanion
}

// Member looks up a function declared directly in the class by name.
func (c *Class) Member(name string) *Function {
	for _, d := range c.Declarations {
		if f, ok := d.(*Function); ok && f.Name == name {
			return f
		}
	}
	return nil
}

// PrimaryConstructor returns the first constructor declared in the class.
func (c *Class) PrimaryConstructor() *Function {
	for _, d := range c.Declarations {
		if f, ok := d.(*Function); ok && f.IsConstructor {
			return f
		}
	}
	return nil
}

// DeclOrigin records how a declaration came to exist.
type DeclOrigin string

const (
	OriginDefined        DeclOrigin = ""
	OriginFakeOverride   DeclOrigin = "FAKE_OVERRIDE"
	OriginLocalFunction  DeclOrigin = "LOCAL_FUNCTION"
	OriginLambdaFunction DeclOrigin = "LAMBDA"
)

// Function is a method, constructor, top-level function, accessor, local
// function or lambda body.
type Function struct {
	Name              string
	IsConstructor     bool
	IsPrimary         bool
	IsStatic          bool
	Visibility        Visibility
	Modality          Modality
	Origin            DeclOrigin
	TypeParameters    []*TypeParameter
	DispatchReceiver  *ValueParameter
	ExtensionReceiver *ValueParameter
	ValueParameters   []*ValueParameter
	ReturnType        *Type
	Body              Body
	Location          Location
}

func (f *Function) Loc() Location      { return f.Location }
func (f *Function) declNode()          {}
func (f *Function) stmtNode()          {}
func (f *Function) declarationParent() {}

// IsFakeOverride reports whether the function is an inherited member copied
// into a subclass by the front-end.
func (f *Function) IsFakeOverride() bool { return f.Origin == OriginFakeOverride }

// IsLocal reports whether the function is declared inside a body.
func (f *Function) IsLocal() bool {
	return f.Origin == OriginLocalFunction
}

// ValueParameter is a function parameter or an implicit receiver.
type ValueParameter struct {
	Name string
	Type *Type
	// Index is the position among the value parameters, or -1 for receivers.
	Index             int
	VarargElementType *Type
	Location          Location
}

func (p *ValueParameter) Loc() Location { return p.Location }
func (p *ValueParameter) declNode()     {}
func (p *ValueParameter) valueDecl()    {}

// IsVararg reports whether the parameter collects a variable argument list.
func (p *ValueParameter) IsVararg() bool { return p.VarargElementType != nil }

// Property is a property with optional accessors and backing field.
type Property struct {
	Name         string
	IsVar        bool
	IsExtension  bool
	Visibility   Visibility
	Modality     Modality
	Origin       DeclOrigin
	Getter       *Function
	Setter       *Function
	BackingField *Field
	Location     Location
}

func (p *Property) Loc() Location { return p.Location }
func (p *Property) declNode()     {}

// Field is a backing or standalone field.
type Field struct {
	Name        string
	Type        *Type
	IsStatic    bool
	IsFinal     bool
	Visibility  Visibility
	Initializer Expression
	Location    Location
}

func (f *Field) Loc() Location { return f.Location }
func (f *Field) declNode()     {}

// EnumEntry is one constant of an enum class.
type EnumEntry struct {
	Name        string
	Initializer Expression
	Location    Location
}

func (e *EnumEntry) Loc() Location { return e.Location }
func (e *EnumEntry) declNode()     {}

// AnonymousInitializer is an `init { ... }` block.
type AnonymousInitializer struct {
	IsStatic bool
	Body     *Block
	Location Location
}

func (a *AnonymousInitializer) Loc() Location { return a.Location }
func (a *AnonymousInitializer) declNode()     {}

// TypeAlias is a `typealias` declaration.
type TypeAlias struct {
	Name           string
	Visibility     Visibility
	TypeParameters []*TypeParameter
	Expanded       *Type
	Location       Location
}

func (t *TypeAlias) Loc() Location { return t.Location }
func (t *TypeAlias) declNode()     {}

// TypeParameter is a generic parameter of a class or function.
type TypeParameter struct {
	Name       string
	Index      int
	SuperTypes []*Type
	Location   Location
}

func (t *TypeParameter) Loc() Location { return t.Location }
func (t *TypeParameter) declNode()     {}
func (t *TypeParameter) classifier()   {}

// Variable is a local `val` or `var`.
type Variable struct {
	Name        string
	Type        *Type
	IsVar       bool
	Initializer Expression
	Location    Location
}

func (v *Variable) Loc() Location { return v.Location }
func (v *Variable) declNode()     {}
func (v *Variable) stmtNode()     {}
func (v *Variable) valueDecl()    {}

// ValueDeclaration is something a GetValue or SetValue can refer to.
type ValueDeclaration interface {
	Declaration
	valueDecl()
}

// LocalDelegatedProperty is a `val x by lazy { ... }` inside a body.
type LocalDelegatedProperty struct {
	Name     string
	Location Location
}

func (p *LocalDelegatedProperty) Loc() Location { return p.Location }
func (p *LocalDelegatedProperty) declNode()     {}
func (p *LocalDelegatedProperty) stmtNode()     {}

// Body is the body of a function.
type Body interface {
	Node
	bodyNode()
}

// BlockBody is a `{ ... }` function body.
type BlockBody struct {
	Statements []Statement
	Location   Location
}

func (b *BlockBody) Loc() Location { return b.Location }
func (b *BlockBody) bodyNode()     {}

// ExpressionBody is an `= expr` function body.
type ExpressionBody struct {
	Expression Expression
	Location   Location
}

func (b *ExpressionBody) Loc() Location { return b.Location }
func (b *ExpressionBody) bodyNode()     {}

// SyntheticBodyKind identifies a compiler-provided body.
type SyntheticBodyKind int

const (
	SyntheticEnumValues SyntheticBodyKind = iota + 1
	SyntheticEnumValueOf
)

// SyntheticBody is a compiler-provided body such as an enum's values().
type SyntheticBody struct {
	Kind     SyntheticBodyKind
	Location Location
}

func (b *SyntheticBody) Loc() Location { return b.Location }
func (b *SyntheticBody) bodyNode()     {}
