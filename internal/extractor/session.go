// Package extractor lowers a typed declaration tree into label-addressed
// relational facts.
//
// A Session walks one unit depth-first. Declarations become class, method,
// field and property facts; bodies are lowered into stmts and exprs facts
// addressed by (parent, index); closures, callable references and interface
// conversions are turned into generated adapter classes. Every identity
// decision goes through the sink's get-or-create, so repeated and concurrent
// runs over one store converge on the same labels.
package extractor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/ir"
)

// DefaultBigArity is the largest parameter-plus-return count that still
// uses a fixed-arity FunctionK interface.
const DefaultBigArity = 22

// Logger receives located diagnostics.
type Logger interface {
	Warn(msg string, loc ir.Location)
	Error(msg string, loc ir.Location)
}

// Options configure a Session.
type Options struct {
	// RunID namespaces fresh labels. A random one is used when empty.
	RunID string

	// BigArity is the threshold above which function values use the N-ary
	// FunctionN form. Zero means DefaultBigArity.
	BigArity int

	// FaultFile injects ErrFaultInjected when extraction reaches it.
	FaultFile string
}

type severity string

const (
	severityWarning severity = "warning"
	severityError   severity = "error"
)

type diagnostic struct {
	sev severity
	msg string
	loc ir.Location
}

// frame is one entry of the declaration stack.
type frame struct {
	// decl is a *ir.Class or *ir.Function, or nil for a file class.
	decl ir.Declaration

	// class is the label of a class frame.
	class facts.Label
}

// Session is the state of one extraction run over a unit. It is not safe
// for concurrent use; run one Session per goroutine over a shared sink.
type Session struct {
	ctx     context.Context
	w       *facts.Writer
	unit    *ir.Unit
	b       *ir.Builtins
	parents *ir.ParentIndex
	logger  Logger
	opts    Options

	file      *ir.File
	fileLabel facts.Label

	stack        []frame
	loops        map[ir.Loop]facts.Label
	vars         map[*ir.Variable]facts.Label
	localClasses map[*ir.Class]facts.Label

	// functionLabels overrides the canonical label of lambda bodies, which
	// become the invoke method of their generated class.
	functionLabels map[*ir.Function]facts.Label

	// genClassOf maps lambdas and local functions to their generated class.
	genClassOf map[*ir.Function]*generated

	// undo forgets the map entries above that were added since a guard
	// began, in insertion order.
	undo []func()

	externals    []External
	queued       map[string]bool
	externalMode bool

	diags []diagnostic
}

// NewSession returns a session writing to sink.
func NewSession(ctx context.Context, sink facts.Sink, unit *ir.Unit, logger Logger, opts Options) *Session {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.BigArity <= 0 {
		opts.BigArity = DefaultBigArity
	}
	return &Session{
		ctx:            ctx,
		w:              facts.NewWriter(ctx, sink, opts.RunID),
		unit:           unit,
		b:              unit.Builtins,
		parents:        unit.Parents,
		logger:         logger,
		opts:           opts,
		loops:          make(map[ir.Loop]facts.Label),
		vars:           make(map[*ir.Variable]facts.Label),
		localClasses:   make(map[*ir.Class]facts.Label),
		functionLabels: make(map[*ir.Function]facts.Label),
		genClassOf:     make(map[*ir.Function]*generated),
		queued:         make(map[string]bool),
	}
}

// RunID returns the run identifier fresh labels are namespaced by.
func (s *Session) RunID() string { return s.opts.RunID }

// ExtractUnit extracts every file of the session's unit and then the
// external declarations they queued.
func (s *Session) ExtractUnit() error {
	for _, f := range s.unit.Files {
		if err := s.ExtractFile(f); err != nil {
			return err
		}
	}
	_, err := s.ExtractExternals()
	return err
}

// ExtractFile extracts one file and flushes its facts to the sink.
// Malformed declarations are reported and skipped; the returned error is
// fatal: a store failure, cancellation, or ErrFaultInjected.
func (s *Session) ExtractFile(f *ir.File) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if faultRequested(f.Path, s.opts.FaultFile) {
		return fmt.Errorf("%s: %w", f.Path, ErrFaultInjected)
	}

	s.file = f
	s.fileLabel = s.useFile(f.Path)
	clear(s.loops)
	s.emitLocation(s.fileLabel, f.Location)
	s.emit(facts.KindCUPackage, facts.L(s.fileLabel), facts.L(s.usePackage(f.Package)))

	if hasFileClassMembers(f) {
		if err := s.extractFileClass(f); err != nil {
			return err
		}
	}
	for _, d := range f.Declarations {
		if err := s.guard(d, func() error { return s.extractDeclaration(d) }); err != nil {
			return err
		}
	}

	s.emitDiagnostics(s.fileLabel)
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("extracting %s: %w", f.Path, err)
	}
	s.undo = s.undo[:0]
	return nil
}

func hasFileClassMembers(f *ir.File) bool {
	for _, d := range f.Declarations {
		switch d.(type) {
		case *ir.Function, *ir.Property, *ir.Field:
			return true
		}
	}
	return false
}

func (s *Session) emit(kind string, args ...facts.Arg) {
	s.w.Emit(kind, args...)
}

func (s *Session) report(sev severity, msg string, loc ir.Location) {
	s.diags = append(s.diags, diagnostic{sev: sev, msg: msg, loc: loc})
	if s.logger == nil {
		return
	}
	if sev == severityError {
		s.logger.Error(msg, loc)
	} else {
		s.logger.Warn(msg, loc)
	}
}

func (s *Session) warn(n ir.Node, format string, args ...any) {
	s.report(severityWarning, fmt.Sprintf(format, args...), n.Loc())
}

// emitDiagnostics persists the diagnostics reported since the last call.
func (s *Session) emitDiagnostics(file facts.Label) {
	for _, d := range s.diags {
		id := s.w.Fresh()
		s.emit(facts.KindDiagnostics, facts.L(id), facts.L(file), facts.S(string(d.sev)),
			facts.S(d.msg), facts.L(s.location(d.loc)))
	}
	s.diags = s.diags[:0]
}

// remember records how to drop a session map entry if the enclosing guard
// rolls back.
func (s *Session) remember(forget func()) { s.undo = append(s.undo, forget) }

// forget drops the entries remembered since mark, newest first.
func (s *Session) forget(mark int) {
	for i := len(s.undo) - 1; i >= mark; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:mark]
}

func (s *Session) push(f frame) { s.stack = append(s.stack, f) }

func (s *Session) pop() { s.stack = s.stack[:len(s.stack)-1] }

// currentClass returns the innermost source class on the declaration stack.
func (s *Session) currentClass() *ir.Class {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if c, ok := s.stack[i].decl.(*ir.Class); ok {
			return c
		}
	}
	return nil
}

// currentThisClass returns the label of the class whose instance `this`
// denotes in the code being lowered.
func (s *Session) currentThisClass() facts.Label {
	if len(s.stack) == 0 {
		return 0
	}
	top := s.stack[len(s.stack)-1]
	if fn, ok := top.decl.(*ir.Function); ok {
		return s.enclosingOfFunction(fn)
	}
	return top.class
}

// generatedEnclosing returns the enclosing type of a class generated at the
// current position.
func (s *Session) generatedEnclosing() facts.Label {
	return s.currentThisClass()
}
