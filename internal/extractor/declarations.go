package extractor

import (
	"strconv"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

const (
	obinitName = "<obinit>"
	clinitName = "<clinit>"
)

// extractDeclaration dispatches on the declaration kind.
func (s *Session) extractDeclaration(d ir.Declaration) error {
	switch d := d.(type) {
	case *ir.Class:
		return s.extractClass(d)
	case *ir.Function:
		if d.IsFakeOverride() {
			return nil
		}
		return s.extractMember(d)
	case *ir.Property:
		return s.extractProperty(d)
	case *ir.Field:
		_, err := s.extractField(d)
		return err
	case *ir.EnumEntry:
		return s.extractEnumEntry(d)
	case *ir.TypeAlias:
		return s.extractTypeAlias(d)
	case *ir.AnonymousInitializer:
		// Lowered into the class's initializer methods.
		return nil
	}
	return errorAt(d, "unsupported declaration %T", d)
}

func (s *Session) extractMember(f *ir.Function) error {
	id, err := s.useFunction(f)
	if err != nil {
		return errorAt(f, "%w", err)
	}
	parent, err := s.functionParent(f)
	if err != nil {
		return errorAt(f, "%w", err)
	}
	return s.extractFunctionAs(f, id, f.Name, parent)
}

func visibilityModifier(v ir.Visibility, local bool) string {
	switch v {
	case ir.VisibilityPrivate:
		return "private"
	case ir.VisibilityProtected:
		return "protected"
	case ir.VisibilityInternal:
		return "internal"
	case ir.VisibilityLocal:
		if local {
			return "public"
		}
		return "private"
	}
	return "public"
}

func (s *Session) modalityModifier(id facts.Label, m ir.Modality) {
	switch m {
	case ir.ModalityFinal:
		s.modifier(id, "final")
	case ir.ModalitySealed:
		s.modifier(id, "sealed")
	case ir.ModalityAbstract:
		s.modifier(id, "abstract")
	}
}

// extractClass emits a class with its members and initializer methods.
func (s *Session) extractClass(c *ir.Class) error {
	id := s.useClass(c)
	s.emitLocation(id, c.Location)
	if c.IsEnum() {
		s.emit(facts.KindIsEnumType, facts.L(id))
	}
	s.modifier(id, visibilityModifier(c.Visibility, false))
	s.modalityModifier(id, c.Modality)
	if encl := s.enclosingClassOf(c); encl != 0 {
		s.emit(facts.KindEnclInReftype, facts.L(id), facts.L(encl))
	}
	s.extractTypeParameters(c.TypeParameters)
	for _, st := range c.SuperTypes {
		s.supertype(id, st)
	}

	s.push(frame{decl: c, class: id})
	defer s.pop()

	if c.IsNonCompanionObject() {
		fid := s.staticField(id, "INSTANCE", ir.ClassType(c), c.Location)
		s.emit(facts.KindClassObject, facts.L(id), facts.L(fid))
	}
	for _, d := range c.Declarations {
		if comp, ok := d.(*ir.Class); ok && comp.IsCompanion {
			fid := s.staticField(id, comp.Name, ir.ClassType(comp), comp.Location)
			s.emit(facts.KindTypeCompanionObject, facts.L(id), facts.L(fid), facts.L(s.useClass(comp)))
		}
	}

	for _, d := range c.Declarations {
		if err := s.guard(d, func() error { return s.extractDeclaration(d) }); err != nil {
			return err
		}
	}
	if s.externalMode || c.IsInterface() {
		return nil
	}
	if err := s.extractObjectInit(c, id); err != nil {
		return err
	}
	return s.extractClassInit(id, c.Declarations, c.Location)
}

// staticField emits a public static final field of type t on the class id.
func (s *Session) staticField(id facts.Label, name string, t *ir.Type, loc ir.Location) facts.Label {
	r := s.useType(t, nil, modeValue)
	fid := s.w.Label(fieldKey(id, name))
	s.emit(facts.KindFields, facts.L(fid), facts.S(name), facts.L(r.id), facts.L(id), facts.L(fid))
	s.emit(facts.KindFieldsKotlinType, facts.L(fid), facts.L(r.kotlin))
	s.emitLocation(fid, loc)
	for _, m := range []string{"public", "static", "final"} {
		s.modifier(fid, m)
	}
	return fid
}

// extractTypeParameters emits type variables and their bounds. Bounds on
// the top type are implicit.
func (s *Session) extractTypeParameters(tps []*ir.TypeParameter) {
	for _, tp := range tps {
		id := s.useTypeParameter(tp)
		s.emitLocation(id, tp.Location)
		for j, b := range tp.SuperTypes {
			if s.isTop(b) {
				continue
			}
			t := s.useType(b, nil, modeArg)
			bid := s.w.Label("bound;" + strconv.Itoa(j) + ";" + id.String())
			s.emit(facts.KindTypeBounds, facts.L(bid), facts.L(t.id), facts.I(j), facts.L(id))
		}
	}
}

func isLocalCallable(f *ir.Function) bool {
	return f.Origin == ir.OriginLocalFunction || f.Origin == ir.OriginLambdaFunction
}

// extractFunctionAs emits f as a method or constructor labelled id and
// named name on the type parent, then lowers its body.
func (s *Session) extractFunctionAs(f *ir.Function, id facts.Label, name string, parent facts.Label) error {
	params := signatureParams(f)
	types := make([]typeResult, len(params))
	for i, p := range params {
		types[i] = s.useType(p.Type, nil, modeValue)
	}

	if f.IsConstructor {
		cname := ""
		if c, ok := s.parents.Parent(f).(*ir.Class); ok && !c.IsAnonymous {
			cname = c.Name
		}
		void := s.useType(nil, nil, modeReturn)
		s.emit(facts.KindConstrs, facts.L(id), facts.S(cname), facts.S(s.signature(cname, f, nil)),
			facts.L(void.id), facts.L(parent), facts.L(id))
		s.emit(facts.KindConstrsKotlinType, facts.L(id), facts.L(void.kotlin))
	} else {
		ret := s.useType(f.ReturnType, nil, modeReturn)
		s.emit(facts.KindMethods, facts.L(id), facts.S(name), facts.S(s.signature(name, f, nil)),
			facts.L(ret.id), facts.L(parent), facts.L(id))
		s.emit(facts.KindMethodsKotlinType, facts.L(id), facts.L(ret.kotlin))
	}
	s.emitLocation(id, f.Location)

	s.modifier(id, visibilityModifier(f.Visibility, isLocalCallable(f)))
	if !f.IsConstructor {
		s.modalityModifier(id, f.Modality)
	}
	if f.IsStatic {
		s.modifier(id, "static")
	}

	s.extractTypeParameters(f.TypeParameters)
	for i, p := range params {
		pid := s.w.Label(paramKey(id, i))
		s.emit(facts.KindParams, facts.L(pid), facts.L(types[i].id), facts.I(i), facts.L(id), facts.L(pid))
		s.emit(facts.KindParamsKotlinType, facts.L(pid), facts.L(types[i].kotlin))
		s.emit(facts.KindParamName, facts.L(pid), facts.S(p.Name))
		s.emitLocation(pid, p.Location)
		if p.IsVararg() {
			s.emit(facts.KindIsVarargsParam, facts.L(pid))
		}
	}
	if f.ExtensionReceiver != nil {
		s.emit(facts.KindKtExtensionFunctions, facts.L(id), facts.L(types[0].id), facts.L(types[0].kotlin))
	}

	if s.externalMode || f.Body == nil {
		return nil
	}
	s.push(frame{decl: f})
	defer s.pop()
	return s.extractBody(f.Body, id)
}

func (s *Session) extractProperty(p *ir.Property) error {
	if p.Origin == ir.OriginFakeOverride {
		return nil
	}
	if p.Getter == nil {
		return errorAt(p, "property %s has no getter", p.Name)
	}
	if !p.IsVar && p.Setter != nil {
		return errorAt(p, "read-only property %s has a setter", p.Name)
	}
	if p.IsVar && p.Setter == nil && !p.IsExtension && p.Visibility != ir.VisibilityPrivate {
		s.warn(p, "mutable property %s has no setter", p.Name)
	}

	parent, err := s.ownerLabel(s.parents.Parent(p))
	if err != nil {
		return errorAt(p, "%w", err)
	}
	id := s.w.Label(propertyKey(parent, p.Name))
	s.emit(facts.KindKtProperties, facts.L(id), facts.S(p.Name))
	s.emitLocation(id, p.Location)

	getter, err := s.useFunction(p.Getter)
	if err != nil {
		return errorAt(p, "%w", err)
	}
	if err := s.extractFunctionAs(p.Getter, getter, p.Getter.Name, parent); err != nil {
		return err
	}
	s.emit(facts.KindKtPropertyGetters, facts.L(id), facts.L(getter))

	if p.Setter != nil {
		setter, err := s.useFunction(p.Setter)
		if err != nil {
			return errorAt(p, "%w", err)
		}
		if err := s.extractFunctionAs(p.Setter, setter, p.Setter.Name, parent); err != nil {
			return err
		}
		s.emit(facts.KindKtPropertySetters, facts.L(id), facts.L(setter))
	}

	if p.BackingField != nil {
		fid, err := s.extractField(p.BackingField)
		if err != nil {
			return err
		}
		s.emit(facts.KindKtPropertyBackingField, facts.L(id), facts.L(fid))
	}
	return nil
}

func (s *Session) extractField(f *ir.Field) (facts.Label, error) {
	parent, err := s.ownerLabel(s.parents.Parent(f))
	if err != nil {
		return 0, errorAt(f, "%w", err)
	}
	t := s.useType(f.Type, nil, modeValue)
	id := s.w.Label(fieldKey(parent, f.Name))
	s.emit(facts.KindFields, facts.L(id), facts.S(f.Name), facts.L(t.id), facts.L(parent), facts.L(id))
	s.emit(facts.KindFieldsKotlinType, facts.L(id), facts.L(t.kotlin))
	s.emitLocation(id, f.Location)
	s.modifier(id, visibilityModifier(f.Visibility, false))
	if f.IsStatic {
		s.modifier(id, "static")
	}
	if f.IsFinal {
		s.modifier(id, "final")
	}

	decl := s.w.Label("fielddecl;" + id.String())
	s.emit(facts.KindFieldDecls, facts.L(decl), facts.L(parent))
	s.emit(facts.KindFieldDeclaredIn, facts.L(id), facts.L(decl), facts.I(0))
	return id, nil
}

func (s *Session) extractEnumEntry(e *ir.EnumEntry) error {
	c, ok := s.parents.Parent(e).(*ir.Class)
	if !ok {
		return errorAt(e, "enum entry %s is not declared in a class", e.Name)
	}
	if len(c.TypeParameters) > 0 {
		return errorAt(e, "enum class %s has type parameters", c.Name)
	}
	fid := s.staticField(s.useClass(c), e.Name, ir.ClassType(c), e.Location)
	s.emit(facts.KindIsEnumConst, facts.L(fid))
	return nil
}

func (s *Session) extractTypeAlias(a *ir.TypeAlias) error {
	if len(a.TypeParameters) > 0 {
		return errorAt(a, "type alias %s has type parameters", a.Name)
	}
	id := s.w.Label("type_alias;" + qualify(packageName(s.root(a)), a.Name))
	t := s.useType(a.Expanded, nil, modeValue)
	s.emit(facts.KindKtTypeAlias, facts.L(id), facts.S(a.Name), facts.L(t.kotlin))
	s.emitLocation(id, a.Location)
	return nil
}

// initLabel returns the label of a class's <obinit> or <clinit> method.
func (s *Session) initLabel(class facts.Label, name string) facts.Label {
	void := s.useType(nil, nil, modeReturn)
	return s.w.Label(callableKey(class, name, nil, void.id))
}

// initMethod emits an initializer method with an empty block body and
// returns its label and block.
func (s *Session) initMethod(class facts.Label, name string, loc ir.Location, modifiers ...string) (facts.Label, facts.Label) {
	void := s.useType(nil, nil, modeReturn)
	id := s.initLabel(class, name)
	s.emit(facts.KindMethods, facts.L(id), facts.S(name), facts.S(name+"()"), facts.L(void.id), facts.L(class), facts.L(id))
	s.emit(facts.KindMethodsKotlinType, facts.L(id), facts.L(void.kotlin))
	s.emitLocation(id, loc)
	for _, m := range modifiers {
		s.modifier(id, m)
	}
	block := s.w.Fresh()
	s.emitStmt(block, "block", stmtParent{parent: id, idx: 0}, id, loc)
	return id, block
}

// initializer is one step of an initializer method: a field assignment or
// an init block.
type initializer struct {
	node  ir.Declaration
	field *ir.Field
	value ir.Expression
	entry *ir.EnumEntry
	block *ir.Block
}

// collectInitializers returns the initializers of decls in declaration
// order, instance or static.
func collectInitializers(decls []ir.Declaration, static bool) []initializer {
	var out []initializer
	for _, d := range decls {
		switch d := d.(type) {
		case *ir.Field:
			if d.IsStatic == static && d.Initializer != nil {
				out = append(out, initializer{node: d, field: d, value: d.Initializer})
			}
		case *ir.Property:
			if f := d.BackingField; f != nil && f.IsStatic == static && f.Initializer != nil && d.Origin != ir.OriginFakeOverride {
				out = append(out, initializer{node: d, field: f, value: f.Initializer})
			}
		case *ir.EnumEntry:
			if static && d.Initializer != nil {
				out = append(out, initializer{node: d, entry: d, value: d.Initializer})
			}
		case *ir.AnonymousInitializer:
			if d.IsStatic == static && d.Body != nil {
				out = append(out, initializer{node: d, block: d.Body})
			}
		}
	}
	return out
}

func hasConstructor(c *ir.Class) bool {
	return c.PrimaryConstructor() != nil
}

// extractObjectInit emits <obinit>, which runs field initializers and init
// blocks in declaration order. Constructors reach it through
// InstanceInitializerCall.
func (s *Session) extractObjectInit(c *ir.Class, class facts.Label) error {
	inits := collectInitializers(c.Declarations, false)
	if len(inits) == 0 && !hasConstructor(c) {
		return nil
	}
	id, block := s.initMethod(class, obinitName, c.Location, "private")
	return s.lowerInitializers(inits, class, id, block)
}

// extractClassInit emits <clinit> for static initializers, if there are
// any.
func (s *Session) extractClassInit(class facts.Label, decls []ir.Declaration, loc ir.Location) error {
	inits := collectInitializers(decls, true)
	if len(inits) == 0 {
		return nil
	}
	id, block := s.initMethod(class, clinitName, loc, "static")
	return s.lowerInitializers(inits, class, id, block)
}

func (s *Session) lowerInitializers(inits []initializer, class, callable, block facts.Label) error {
	for i, in := range inits {
		p := stmtParent{parent: block, idx: i}
		err := s.guard(in.node, func() error {
			if in.block != nil {
				return s.extractExpr(in.block, p, callable)
			}
			return s.assignInitializer(in, class, p, callable)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// assignInitializer emits `field = value` for a field or enum entry
// initializer.
func (s *Session) assignInitializer(in initializer, class facts.Label, p stmtParent, callable facts.Label) error {
	loc := in.node.Loc()
	ep := p.asExpr(s, loc, callable)

	var target facts.Label
	var t typeResult
	static := true
	if in.entry != nil {
		c, _ := s.parents.Parent(in.entry).(*ir.Class)
		if c == nil {
			return errorAt(in.entry, "enum entry %s is not declared in a class", in.entry.Name)
		}
		target = s.w.Label(fieldKey(class, in.entry.Name))
		t = s.useType(ir.ClassType(c), nil, modeValue)
	} else {
		var err error
		if target, err = s.useField(in.field); err != nil {
			return errorAt(in.node, "%w", err)
		}
		t = s.useType(in.field.Type, nil, modeValue)
		static = in.field.IsStatic
	}

	assign := s.w.Fresh()
	s.emitExpr(assign, "assignexpr", t, ep, callable, loc)
	lhs := s.w.Fresh()
	s.emitExpr(lhs, "varaccess", t, ep.under(assign, 0), callable, loc)
	s.emit(facts.KindVariableBinding, facts.L(lhs), facts.L(target))
	if static {
		s.typeAccessOf(s.classType(class), ep.under(lhs, -1), callable, loc)
	} else {
		s.emitExpr(s.w.Fresh(), "thisaccess", s.classType(class), ep.under(lhs, -1), callable, loc)
	}
	return s.extractExpr(in.value, ep.under(assign, 1), callable)
}

// extractFileClass emits the class holding a file's top-level functions
// and properties, with a <clinit> for their initializers.
func (s *Session) extractFileClass(f *ir.File) error {
	id := s.fileClassLabel(f)
	s.emitLocation(id, f.Location)
	s.modifier(id, "public")
	s.modifier(id, "final")

	s.push(frame{class: id})
	defer s.pop()
	return s.guard(f, func() error { return s.extractClassInit(id, f.Declarations, f.Location) })
}
