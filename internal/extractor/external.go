package extractor

import (
	"fmt"

	"github.com/Benny93/irfacts/internal/ir"
)

// External is a declaration outside the unit that the unit refers to:
// either a top-level class or the facade class of an external package.
type External struct {
	Class   *ir.Class
	Package *ir.Package

	// Key identifies the external across runs.
	Key string
}

// ExtractExternalClassLater queues the top-level class enclosing c for
// extraction after the unit's files. Classes declared in the unit are never
// queued.
func (s *Session) ExtractExternalClassLater(c *ir.Class) {
	top := c
	for {
		outer, ok := s.parents.Parent(top).(*ir.Class)
		if !ok {
			break
		}
		top = outer
	}
	if _, ok := s.parents.Parent(top).(*ir.Package); !ok {
		return
	}
	name, ok := s.qualifiedName(top)
	if !ok {
		return
	}
	s.enqueue(External{Class: top, Key: "class;" + name})
}

// queueFacade queues the facade class of an external package.
func (s *Session) queueFacade(p *ir.Package) {
	s.enqueue(External{Package: p, Key: "facade;" + facadeName(p)})
}

func (s *Session) enqueue(x External) {
	if s.queued[x.Key] {
		return
	}
	s.queued[x.Key] = true
	s.externals = append(s.externals, x)
}

// Externals returns everything queued so far.
func (s *Session) Externals() []External {
	return s.externals
}

// ExtractExternals populates the queued externals, including those queued
// while doing so. An external is populated only by the run that claims its
// key in the sink, so each is populated once per store no matter how many
// runs refer to it. It returns how many this session populated.
func (s *Session) ExtractExternals() (int, error) {
	populated := 0
	s.file = nil
	for i := 0; i < len(s.externals); i++ {
		if err := s.ctx.Err(); err != nil {
			return populated, err
		}
		x := s.externals[i]
		claim, created := s.w.LabelCreated(ClaimKey(x.Key))
		if err := s.w.Err(); err != nil {
			return populated, err
		}
		if !created {
			continue
		}
		populated++

		s.externalMode = true
		err := s.extractExternal(x)
		s.externalMode = false
		if err != nil {
			return populated, err
		}
		s.emitDiagnostics(claim)
		if err := s.w.Flush(); err != nil {
			return populated, fmt.Errorf("extracting external %s: %w", x.Key, err)
		}
	}
	return populated, nil
}

func (s *Session) extractExternal(x External) error {
	if x.Class != nil {
		return s.guard(x.Class, func() error { return s.extractClass(x.Class) })
	}
	id := s.facadeLabel(x.Package)
	s.modifier(id, "public")
	s.modifier(id, "final")
	s.push(frame{class: id})
	defer s.pop()
	for _, d := range x.Package.Declarations {
		switch d.(type) {
		case *ir.Function, *ir.Property, *ir.Field:
		default:
			continue
		}
		if err := s.guard(d, func() error { return s.extractDeclaration(d) }); err != nil {
			return err
		}
	}
	return nil
}

// ClaimKey returns the sink key whose creation claims the population of
// the external with key.
func ClaimKey(key string) string { return "external;" + key }
