package ir

// Classifier is what a simple type names: a class or a type parameter.
type Classifier interface {
	classifier()
}

// Variance is the use-site variance of a type argument.
type Variance int

const (
	Invariant Variance = iota
	In
	Out
)

// TypeArgument is an argument of a parameterized type.
type TypeArgument interface {
	typeArgument()
}

// TypeProjection is a concrete type argument, possibly with variance.
type TypeProjection struct {
	Variance Variance
	Type     *Type
}

func (*TypeProjection) typeArgument() {}

// StarProjection is the `*` type argument.
type StarProjection struct{}

func (*StarProjection) typeArgument() {}

// Type is a use of a classifier with arguments and nullability.
type Type struct {
	Classifier Classifier
	Args       []TypeArgument
	Nullable   bool
}

// Class returns the named class, or nil for a type-parameter type.
func (t *Type) Class() *Class {
	if t == nil {
		return nil
	}
	c, _ := t.Classifier.(*Class)
	return c
}

// TypeParameter returns the named type parameter, or nil for a class type.
func (t *Type) TypeParameter() *TypeParameter {
	if t == nil {
		return nil
	}
	p, _ := t.Classifier.(*TypeParameter)
	return p
}

// WithNullability returns a copy of t with the given nullability.
func (t *Type) WithNullability(nullable bool) *Type {
	c := *t
	c.Nullable = nullable
	return &c
}

// ClassType is a convenience for a non-null use of c with invariant arguments.
func ClassType(c *Class, args ...*Type) *Type {
	t := &Type{Classifier: c}
	for _, a := range args {
		t.Args = append(t.Args, &TypeProjection{Type: a})
	}
	return t
}

// ParamType is a non-null use of a type parameter.
func ParamType(p *TypeParameter) *Type {
	return &Type{Classifier: p}
}

// ArgTypes returns the type of each argument that is a plain projection, or
// nil when the argument is a star.
func (t *Type) ArgTypes() []*Type {
	out := make([]*Type, len(t.Args))
	for i, a := range t.Args {
		if p, ok := a.(*TypeProjection); ok {
			out[i] = p.Type
		}
	}
	return out
}

// IsUnspecialised reports whether t is C<T1..Tn> where T1..Tn are exactly
// C's own type parameters.
func (t *Type) IsUnspecialised() bool {
	c := t.Class()
	if c == nil || len(c.TypeParameters) != len(t.Args) {
		return false
	}
	for i, tp := range c.TypeParameters {
		p, ok := t.Args[i].(*TypeProjection)
		if !ok || p.Variance != Invariant || p.Type.TypeParameter() != tp {
			return false
		}
	}
	return true
}
