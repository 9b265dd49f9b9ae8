package extractor

import (
	"errors"
	"fmt"
	"os"

	"github.com/Benny93/irfacts/internal/ir"
)

// FaultEnv names the environment variable that injects a fatal error when
// extraction reaches the file it names. It exists for tests of the abort
// path.
const FaultEnv = "IRFACTS_INTERNAL_EXCEPTION_WHILE_EXTRACTING_FILE"

// ErrFaultInjected aborts the whole run. It is the only fatal error raised by
// the engine itself; store errors are the other way a run aborts.
var ErrFaultInjected = errors.New("internal exception injected while extracting file")

// Error is a recoverable extraction error. The node it names was skipped
// and its siblings were still extracted.
type Error struct {
	// Kind is the kind of node being extracted, e.g. "call".
	Kind string

	// Location is the node's source location.
	Location ir.Location

	// Err is the cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("while extracting a %s at %s: %v", e.Kind, e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// errorAt builds a recoverable error for node n.
func errorAt(n ir.Node, format string, args ...any) error {
	return &Error{Kind: nodeKind(n), Location: n.Loc(), Err: fmt.Errorf(format, args...)}
}

// fatal reports whether err must abort the run instead of skipping a node.
func (s *Session) fatal(err error) bool {
	return errors.Is(err, ErrFaultInjected) || s.w.Err() != nil
}

// guard runs fn as one unit of extraction. If fn fails with a recoverable
// error, every fact fn buffered is rolled back, the error is reported once,
// and guard returns nil so the caller continues with the next sibling.
func (s *Session) guard(n ir.Node, fn func() error) error {
	mark, undo := s.w.Mark(), len(s.undo)
	err := fn()
	if werr := s.w.Err(); werr != nil {
		return werr
	}
	if err == nil {
		return nil
	}
	if s.fatal(err) {
		return err
	}
	s.w.Rollback(mark)
	s.forget(undo)

	var xerr *Error
	if !errors.As(err, &xerr) {
		xerr = &Error{Kind: nodeKind(n), Location: n.Loc(), Err: err}
	}
	s.report(severityError, xerr.Error(), xerr.Location)
	return nil
}

func faultRequested(path, configured string) bool {
	if configured != "" && configured == path {
		return true
	}
	env := os.Getenv(FaultEnv)
	return env != "" && env == path
}

// nodeKind names a node for error messages.
func nodeKind(n ir.Node) string {
	switch n := n.(type) {
	case *ir.File:
		return "file"
	case *ir.Class:
		if n.IsInterface() {
			return "interface"
		}
		return "class"
	case *ir.Function:
		if n.IsConstructor {
			return "constructor"
		}
		return "function"
	case *ir.Property:
		return "property"
	case *ir.Field:
		return "field"
	case *ir.EnumEntry:
		return "enum entry"
	case *ir.AnonymousInitializer:
		return "anonymous initializer"
	case *ir.TypeAlias:
		return "type alias"
	case *ir.Variable:
		return "variable"
	case *ir.LocalDelegatedProperty:
		return "local delegated property"
	case *ir.Block:
		return "block"
	case *ir.Call:
		return "call"
	case *ir.ConstructorCall:
		return "constructor call"
	case *ir.DelegatingConstructorCall:
		return "delegating constructor call"
	case *ir.InstanceInitializerCall:
		return "instance initializer call"
	case *ir.Const:
		return "constant"
	case *ir.GetValue:
		return "value read"
	case *ir.SetValue:
		return "value write"
	case *ir.GetField:
		return "field read"
	case *ir.SetField:
		return "field write"
	case *ir.GetEnumValue:
		return "enum value"
	case *ir.GetObjectValue:
		return "object value"
	case *ir.Return:
		return "return"
	case *ir.Throw:
		return "throw"
	case *ir.StringConcatenation:
		return "string concatenation"
	case *ir.WhileLoop:
		return "while loop"
	case *ir.DoWhileLoop:
		return "do-while loop"
	case *ir.Break:
		return "break"
	case *ir.Continue:
		return "continue"
	case *ir.Try:
		return "try"
	case *ir.When:
		return "when"
	case *ir.TypeOperatorCall:
		return "type operator call"
	case *ir.GetClass:
		return "class read"
	case *ir.ClassReference:
		return "class reference"
	case *ir.FunctionExpression:
		return "function expression"
	case *ir.FunctionReference:
		return "function reference"
	case *ir.PropertyReference:
		return "property reference"
	case *ir.Vararg:
		return "vararg"
	case *ir.Spread:
		return "spread"
	case *ir.Unsupported:
		return n.Kind
	default:
		return fmt.Sprintf("%T", n)
	}
}
