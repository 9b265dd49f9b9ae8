package ir

// Expression is a typed value-producing node. Every expression can also
// stand as a statement in a block.
type Expression interface {
	Statement
	Type() *Type
	exprNode()
}

// ExprBase carries the type and location shared by all expressions.
type ExprBase struct {
	Typ      *Type
	Location Location
}

func (e *ExprBase) Loc() Location { return e.Location }
func (e *ExprBase) Type() *Type   { return e.Typ }
func (e *ExprBase) exprNode()     {}
func (e *ExprBase) stmtNode()     {}

// Origin is the syntactic form a lowered expression was produced from, such
// as "PLUS" for `a + b`. Empty when the front-end recorded none.
type Origin string

const (
	OriginNone           Origin = ""
	OriginPlus           Origin = "PLUS"
	OriginMinus          Origin = "MINUS"
	OriginMul            Origin = "MUL"
	OriginDiv            Origin = "DIV"
	OriginPerc           Origin = "PERC"
	OriginLt             Origin = "LT"
	OriginLtEq           Origin = "LTEQ"
	OriginGt             Origin = "GT"
	OriginGtEq           Origin = "GTEQ"
	OriginEqEq           Origin = "EQEQ"
	OriginEqEqEq         Origin = "EQEQEQ"
	OriginExclEq         Origin = "EXCLEQ"
	OriginExclEqEq       Origin = "EXCLEQEQ"
	OriginExcl           Origin = "EXCL"
	OriginExclExcl       Origin = "EXCLEXCL"
	OriginPlusEq         Origin = "PLUSEQ"
	OriginMinusEq        Origin = "MINUSEQ"
	OriginMultEq         Origin = "MULTEQ"
	OriginDivEq          Origin = "DIVEQ"
	OriginPercEq         Origin = "PERCEQ"
	OriginIf             Origin = "IF"
	OriginWhen           Origin = "WHEN"
	OriginLambda         Origin = "LAMBDA"
	OriginAnonymousFunc  Origin = "ANONYMOUS_FUNCTION"
	OriginInitializeProp Origin = "INITIALIZE_PROPERTY_FROM_PARAMETER"
)

// Block is a sequence of statements whose value is the last one.
type Block struct {
	ExprBase
	Statements []Statement
	Origin     Origin
}

// Call invokes a function.
type Call struct {
	ExprBase
	Callee            *Function
	DispatchReceiver  Expression
	ExtensionReceiver Expression
	// Args are positional; a nil entry means the default value is used.
	Args     []Expression
	TypeArgs []*Type
	Origin   Origin
}

// ConstructorCall creates an instance of the constructor's class.
type ConstructorCall struct {
	ExprBase
	Callee           *Function
	DispatchReceiver Expression
	Args             []Expression
	TypeArgs         []*Type
}

// DelegatingConstructorCall is a `this(...)` or `super(...)` call made from
// a constructor.
type DelegatingConstructorCall struct {
	ExprBase
	Callee           *Function
	DispatchReceiver Expression
	Args             []Expression
	TypeArgs         []*Type
}

// InstanceInitializerCall runs the field initializers and init blocks of
// Class.
type InstanceInitializerCall struct {
	ExprBase
	Class *Class
}

// ConstKind is the literal kind of a Const.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstShort
	ConstByte
	ConstLong
	ConstFloat
	ConstDouble
	ConstBoolean
	ConstChar
	ConstString
	ConstNull
)

// Const is a literal. Value holds its source text.
type Const struct {
	ExprBase
	Kind  ConstKind
	Value string
}

// GetValue reads a variable, parameter or receiver.
type GetValue struct {
	ExprBase
	Symbol ValueDeclaration
	Origin Origin
}

// SetValue assigns a local variable.
type SetValue struct {
	ExprBase
	Symbol ValueDeclaration
	Value  Expression
	Origin Origin
}

// GetField reads a field. Receiver is nil for static fields.
type GetField struct {
	ExprBase
	Field    *Field
	Receiver Expression
}

// SetField writes a field.
type SetField struct {
	ExprBase
	Field    *Field
	Receiver Expression
	Value    Expression
}

// GetEnumValue reads an enum constant.
type GetEnumValue struct {
	ExprBase
	Entry *EnumEntry
}

// GetObjectValue reads the instance of an object or companion.
type GetObjectValue struct {
	ExprBase
	Class *Class
}

// Return leaves Target with Value.
type Return struct {
	ExprBase
	Target *Function
	Value  Expression
}

// Throw raises Value.
type Throw struct {
	ExprBase
	Value Expression
}

// StringConcatenation is a string template.
type StringConcatenation struct {
	ExprBase
	Args []Expression
}

// Loop is a while or do-while loop; break and continue refer to it.
type Loop interface {
	Expression
	loopNode()
	LoopLabel() string
	LoopCondition() Expression
	LoopBody() Expression
}

// WhileLoop is a `while (cond) body` loop.
type WhileLoop struct {
	ExprBase
	Label     string
	Condition Expression
	Body      Expression
}

func (l *WhileLoop) loopNode()                 {}
func (l *WhileLoop) LoopLabel() string         { return l.Label }
func (l *WhileLoop) LoopCondition() Expression { return l.Condition }
func (l *WhileLoop) LoopBody() Expression      { return l.Body }

// DoWhileLoop is a `do body while (cond)` loop.
type DoWhileLoop struct {
	ExprBase
	Label     string
	Condition Expression
	Body      Expression
}

func (l *DoWhileLoop) loopNode()                 {}
func (l *DoWhileLoop) LoopLabel() string         { return l.Label }
func (l *DoWhileLoop) LoopCondition() Expression { return l.Condition }
func (l *DoWhileLoop) LoopBody() Expression      { return l.Body }

// Break exits Loop.
type Break struct {
	ExprBase
	Loop  Loop
	Label string
}

// Continue restarts Loop.
type Continue struct {
	ExprBase
	Loop  Loop
	Label string
}

// Try is a try/catch/finally expression.
type Try struct {
	ExprBase
	TryResult Expression
	Catches   []*Catch
	Finally   Expression
}

// Catch is one catch clause of a Try.
type Catch struct {
	Parameter *Variable
	Result    Expression
	Location  Location
}

// When is a `when` or `if` expression.
type When struct {
	ExprBase
	Origin   Origin
	Branches []*Branch
}

// Branch is one arm of a When. Else branches have a constant true condition.
type Branch struct {
	Condition Expression
	Result    Expression
	IsElse    bool
	Location  Location
}

// TypeOperator is the operator of a TypeOperatorCall.
type TypeOperator string

const (
	OpCast            TypeOperator = "CAST"
	OpImplicitCast    TypeOperator = "IMPLICIT_CAST"
	OpImplicitNotNull TypeOperator = "IMPLICIT_NOTNULL"
	OpCoercionToUnit  TypeOperator = "IMPLICIT_COERCION_TO_UNIT"
	OpSafeCast        TypeOperator = "SAFE_CAST"
	OpInstanceOf      TypeOperator = "INSTANCEOF"
	OpNotInstanceOf   TypeOperator = "NOT_INSTANCEOF"
	OpSamConversion   TypeOperator = "SAM_CONVERSION"
)

// TypeOperatorCall applies a type operator to Argument.
type TypeOperatorCall struct {
	ExprBase
	Operator    TypeOperator
	Argument    Expression
	TypeOperand *Type
}

// GetClass is `x::class`.
type GetClass struct {
	ExprBase
	Argument Expression
}

// ClassReference is `C::class`.
type ClassReference struct {
	ExprBase
	ClassType *Type
}

// FunctionExpression is a lambda or anonymous function literal.
type FunctionExpression struct {
	ExprBase
	Function *Function
	Origin   Origin
}

// FunctionReference is `recv::f` or `C::f`. A receiver that is set is bound.
type FunctionReference struct {
	ExprBase
	Target            *Function
	DispatchReceiver  Expression
	ExtensionReceiver Expression
	TypeArgs          []*Type
}

// PropertyReference is `C::p`.
type PropertyReference struct {
	ExprBase
	Property *Property
}

// Vararg packs Elements into an array argument.
type Vararg struct {
	ExprBase
	ElementType *Type
	Elements    []Expression
}

// Spread is `*arr` inside a Vararg.
type Spread struct {
	ExprBase
	Expression Expression
}

// Unsupported is a node kind the decoder does not model.
type Unsupported struct {
	ExprBase
	Kind string
}
