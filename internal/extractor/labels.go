package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// Label keys. Every canonical entity is named by one of these; the same
// entity always produces the same key.

func fileKey(path string) string    { return "file;" + path }
func packageKey(name string) string { return "package;" + name }

func locationKey(file facts.Label, l ir.Location) string {
	return fmt.Sprintf("loc,%d,%d,%d,%d,%d", file, l.StartLine, l.StartCol, l.EndLine, l.EndCol)
}

func callableKey(parent facts.Label, name string, params []facts.Label, ret facts.Label) string {
	ids := make([]string, len(params))
	for i, p := range params {
		ids[i] = p.String()
	}
	return fmt.Sprintf("callable;%s.%s(%s)%s", parent, name, strings.Join(ids, ","), ret)
}

func paramKey(callable facts.Label, idx int) string {
	return "params;" + callable.String() + ";" + strconv.Itoa(idx)
}

func fieldKey(parent facts.Label, name string) string {
	return "field;" + parent.String() + ";" + name
}

func propertyKey(parent facts.Label, name string) string {
	return "property;" + parent.String() + ";" + name
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func shortName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func (s *Session) useFile(path string) facts.Label {
	id := s.w.Label(fileKey(path))
	s.emit(facts.KindFiles, facts.L(id), facts.S(path))
	return id
}

func (s *Session) usePackage(name string) facts.Label {
	id := s.w.Label(packageKey(name))
	s.emit(facts.KindPackages, facts.L(id), facts.S(name))
	return id
}

// location returns the label of loc, or 0 when loc is empty.
func (s *Session) location(loc ir.Location) facts.Label {
	if loc.File == "" || loc.StartLine == 0 {
		return 0
	}
	file := s.useFile(loc.File)
	id := s.w.Label(locationKey(file, loc))
	s.emit(facts.KindLocations, facts.L(id), facts.L(file),
		facts.I(loc.StartLine), facts.I(loc.StartCol), facts.I(loc.EndLine), facts.I(loc.EndCol))
	return id
}

func (s *Session) emitLocation(id facts.Label, loc ir.Location) {
	if l := s.location(loc); l != 0 {
		s.emit(facts.KindHasLocation, facts.L(id), facts.L(l))
	}
}

func (s *Session) modifier(id facts.Label, name string) {
	m := s.w.Label("modifier;" + name)
	s.emit(facts.KindModifiers, facts.L(m), facts.S(name))
	s.emit(facts.KindHasModifier, facts.L(id), facts.L(m))
}

// root returns the file or package a declaration ultimately belongs to.
func (s *Session) root(d ir.Declaration) ir.DeclarationParent {
	var p ir.DeclarationParent = s.parents.Parent(d)
	for p != nil {
		switch q := p.(type) {
		case *ir.File, *ir.Package:
			return q
		case ir.Declaration:
			p = s.parents.Parent(q)
		default:
			return nil
		}
	}
	return nil
}

func packageName(p ir.DeclarationParent) string {
	switch p := p.(type) {
	case *ir.File:
		return p.Package
	case *ir.Package:
		return p.Name
	}
	return ""
}

// qualifiedName returns the binary name of c, e.g. "pkg.Outer$Inner". It
// reports false for local and anonymous classes, which have no stable name.
func (s *Session) qualifiedName(c *ir.Class) (string, bool) {
	if c.IsAnonymous {
		return "", false
	}
	switch p := s.parents.Parent(c).(type) {
	case *ir.File:
		return qualify(p.Package, c.Name), true
	case *ir.Package:
		return qualify(p.Name, c.Name), true
	case *ir.Class:
		outer, ok := s.qualifiedName(p)
		if !ok {
			return "", false
		}
		return outer + "$" + c.Name, true
	}
	return "", false
}

// useClass returns the label of the erased class c and emits its stub
// facts. Classes outside the unit are queued for external extraction.
func (s *Session) useClass(c *ir.Class) facts.Label {
	if id, ok := s.localClasses[c]; ok {
		s.classStub(c, id)
		return id
	}
	qn, ok := s.qualifiedName(c)
	if !ok {
		id := s.w.Fresh()
		s.localClasses[c] = id
		s.remember(func() { delete(s.localClasses, c) })
		s.classStub(c, id)
		return id
	}
	id := s.w.Label("class;" + qn)
	s.classStub(c, id)
	s.ExtractExternalClassLater(c)
	return id
}

func (s *Session) classStub(c *ir.Class, id facts.Label) {
	name := c.Name
	if c.IsAnonymous {
		name = ""
	}
	kind := facts.KindClasses
	if c.IsInterface() {
		kind = facts.KindInterfaces
	}
	pkg := s.usePackage(packageName(s.root(c)))
	s.emit(kind, facts.L(id), facts.S(name), facts.L(pkg), facts.L(id))
}

// namedClass returns the label of a class known only by name, such as the
// boxed form of a primitive.
func (s *Session) namedClass(pkg, name string) facts.Label {
	id := s.w.Label("class;" + qualify(pkg, name))
	s.emit(facts.KindClasses, facts.L(id), facts.S(name), facts.L(s.usePackage(pkg)), facts.L(id))
	return id
}

// fileClassLabel returns the label of the class holding f's top-level
// members.
func (s *Session) fileClassLabel(f *ir.File) facts.Label {
	id := s.namedClass(f.Package, f.FileClassName())
	s.emit(facts.KindFileClass, facts.L(id))
	return id
}

func facadeName(p *ir.Package) string {
	if p.FacadeName != "" {
		return p.FacadeName
	}
	return qualify(p.Name, "PackageKt")
}

// facadeLabel returns the label of the class holding an external package's
// top-level members.
func (s *Session) facadeLabel(p *ir.Package) facts.Label {
	name := facadeName(p)
	id := s.namedClass(p.Name, shortName(name))
	s.queueFacade(p)
	return id
}

// ownerLabel returns the label of the type a member declared in p belongs
// to.
func (s *Session) ownerLabel(p ir.DeclarationParent) (facts.Label, error) {
	switch p := p.(type) {
	case *ir.Class:
		return s.useClass(p), nil
	case *ir.File:
		return s.fileClassLabel(p), nil
	case *ir.Package:
		return s.facadeLabel(p), nil
	case nil:
		return 0, fmt.Errorf("declaration has no parent")
	}
	return 0, fmt.Errorf("declaration parent %T is not a type", p)
}

// functionParent returns the label of the type f is a member of.
func (s *Session) functionParent(f *ir.Function) (facts.Label, error) {
	if g, ok := s.genClassOf[f]; ok {
		return g.id, nil
	}
	if _, ok := s.parents.Parent(f).(*ir.Function); ok {
		return 0, fmt.Errorf("local function %s used before its declaration", f.Name)
	}
	return s.ownerLabel(s.parents.Parent(f))
}

// useFunction returns the canonical label of f.
func (s *Session) useFunction(f *ir.Function) (facts.Label, error) {
	if id, ok := s.functionLabels[f]; ok {
		return id, nil
	}
	parent, err := s.functionParent(f)
	if err != nil {
		return 0, err
	}
	return s.w.Label(s.functionKey(parent, f.Name, f, nil)), nil
}

// functionKey builds the callable key of f as a member of parent, with
// parameter and return types erased under sub.
func (s *Session) functionKey(parent facts.Label, name string, f *ir.Function, sub *substitution) string {
	var params []facts.Label
	for _, p := range signatureParams(f) {
		params = append(params, s.useType(p.Type, sub, modeErased).id)
	}
	ret := s.useType(f.ReturnType, sub, modeReturnErased).id
	return callableKey(parent, name, params, ret)
}

// signatureParams returns the extension receiver, if any, followed by the
// value parameters.
func signatureParams(f *ir.Function) []*ir.ValueParameter {
	var out []*ir.ValueParameter
	if f.ExtensionReceiver != nil {
		out = append(out, f.ExtensionReceiver)
	}
	return append(out, f.ValueParameters...)
}

// paramIndex returns the position of p in f's extracted parameter list.
func paramIndex(f *ir.Function, p *ir.ValueParameter) (int, bool) {
	for i, q := range signatureParams(f) {
		if q == p {
			return i, true
		}
	}
	return 0, false
}

// useParam returns the label of parameter p of f.
func (s *Session) useParam(f *ir.Function, p *ir.ValueParameter) (facts.Label, error) {
	idx, ok := paramIndex(f, p)
	if !ok {
		return 0, fmt.Errorf("parameter %s is not a parameter of %s", p.Name, f.Name)
	}
	callable, err := s.useFunction(f)
	if err != nil {
		return 0, err
	}
	return s.w.Label(paramKey(callable, idx)), nil
}

// useField returns the label of fld.
func (s *Session) useField(fld *ir.Field) (facts.Label, error) {
	parent, err := s.ownerLabel(s.parents.Parent(fld))
	if err != nil {
		return 0, err
	}
	return s.w.Label(fieldKey(parent, fld.Name)), nil
}

// useVariable returns the label of a local variable. Locals have no stable
// name, so they get a fresh label on first use.
func (s *Session) useVariable(v *ir.Variable) facts.Label {
	if id, ok := s.vars[v]; ok {
		return id
	}
	id := s.w.Fresh()
	s.vars[v] = id
	s.remember(func() { delete(s.vars, v) })
	return id
}

// enclosingClassOf walks the lexical parent chain of a class up to the
// nearest enclosing type. Top-level classes have none.
func (s *Session) enclosingClassOf(c *ir.Class) facts.Label {
	switch p := s.parents.Parent(c).(type) {
	case *ir.Class:
		return s.useClass(p)
	case *ir.Function:
		return s.enclosingOfFunction(p)
	}
	return 0
}

// enclosingOfFunction returns the type whose body contains code lowered
// inside f: the generated class of a lambda or local function, or else the
// nearest class, file class or facade up the parent chain.
func (s *Session) enclosingOfFunction(f *ir.Function) facts.Label {
	for {
		if g, ok := s.genClassOf[f]; ok {
			return g.id
		}
		switch p := s.parents.Parent(f).(type) {
		case *ir.Class:
			return s.useClass(p)
		case *ir.File:
			return s.fileClassLabel(p)
		case *ir.Package:
			return s.facadeLabel(p)
		case *ir.Function:
			f = p
		default:
			return 0
		}
	}
}
