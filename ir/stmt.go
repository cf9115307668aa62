package ir

import (
	"fmt"
	"strings"
)

// Stmt is one of *New, *Copy, *LoadField, *StoreField, *LoadArray,
// *StoreArray or *Invoke. The set is closed: only this package can add
// statement kinds.
type Stmt interface {
	fmt.Stringer
	// Index of the statement in its method body.
	Index() int
	// Method containing the statement.
	Method() *Method
	stmt()
}

type stmtBase struct {
	method *Method
	index  int
}

func (s *stmtBase) Index() int      { return s.index }
func (s *stmtBase) Method() *Method { return s.method }
func (*stmtBase) stmt()             {}

func (s *stmtBase) format(body string) string {
	return fmt.Sprintf("%s[%d] %s", s.method.Signature(), s.index, body)
}

// New is an allocation "x = new T".
type New struct {
	stmtBase
	LValue *Var
	Type   Type
}

func (s *New) String() string {
	return s.format(fmt.Sprintf("%s = new %s", s.LValue, s.Type))
}

// Copy is an assignment "x = y".
type Copy struct {
	stmtBase
	LValue, RValue *Var
}

func (s *Copy) String() string {
	return s.format(fmt.Sprintf("%s = %s", s.LValue, s.RValue))
}

// LoadField is "x = y.f", or "x = T.f" when Base is nil.
type LoadField struct {
	stmtBase
	LValue *Var
	Base   *Var
	Field  *Field
}

// IsStatic reports whether the statement loads a static field.
func (s *LoadField) IsStatic() bool { return s.Base == nil }

func (s *LoadField) String() string {
	return s.format(fmt.Sprintf("%s = %s.%s", s.LValue, accessBase(s.Base, s.Field), s.Field.Name))
}

// StoreField is "x.f = y", or "T.f = y" when Base is nil.
type StoreField struct {
	stmtBase
	Base   *Var
	Field  *Field
	RValue *Var
}

// IsStatic reports whether the statement stores to a static field.
func (s *StoreField) IsStatic() bool { return s.Base == nil }

func (s *StoreField) String() string {
	return s.format(fmt.Sprintf("%s.%s = %s", accessBase(s.Base, s.Field), s.Field.Name, s.RValue))
}

func accessBase(base *Var, f *Field) string {
	if base == nil {
		return f.Class.Name
	}
	return base.Name
}

// LoadArray is "x = a[*]". Indices are not modeled.
type LoadArray struct {
	stmtBase
	LValue *Var
	Base   *Var
}

func (s *LoadArray) String() string {
	return s.format(fmt.Sprintf("%s = %s[*]", s.LValue, s.Base))
}

// StoreArray is "a[*] = y".
type StoreArray struct {
	stmtBase
	Base   *Var
	RValue *Var
}

func (s *StoreArray) String() string {
	return s.format(fmt.Sprintf("%s[*] = %s", s.Base, s.RValue))
}

// CallKind classifies an invocation.
type CallKind int

const (
	Static CallKind = iota + 1
	Special
	Virtual
	Interface
)

func (k CallKind) String() string {
	switch k {
	case Static:
		return "STATIC"
	case Special:
		return "SPECIAL"
	case Virtual:
		return "VIRTUAL"
	case Interface:
		return "INTERFACE"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// MethodRef is the symbolic target of an invocation: the declaring class
// named at the call site and the subsignature of the method.
type MethodRef struct {
	Class        *Class
	Subsignature string
}

func (r MethodRef) String() string {
	return fmt.Sprintf("<%s: %s>", r.Class, r.Subsignature)
}

// Invoke is a call "r = base.m(args)". Base is nil for static calls and
// Result is nil when the returned value is discarded.
type Invoke struct {
	stmtBase
	Kind   CallKind
	Ref    MethodRef
	Base   *Var
	Args   []*Var
	Result *Var
}

// IsStatic reports whether the call is dispatched without a receiver.
func (s *Invoke) IsStatic() bool { return s.Kind == Static }

func (s *Invoke) String() string {
	var sb strings.Builder
	if s.Result != nil {
		fmt.Fprintf(&sb, "%s = ", s.Result)
	}
	fmt.Fprintf(&sb, "invoke%s ", strings.ToLower(s.Kind.String()))
	if s.Base != nil {
		fmt.Fprintf(&sb, "%s.", s.Base)
	}
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.Name
	}
	fmt.Fprintf(&sb, "%s(%s)", s.Ref, strings.Join(args, ","))
	return s.format(sb.String())
}

// CompareStmts orders statements by the signature of their methods and then
// by their index. It returns a negative number, zero or a positive number.
func CompareStmts(a, b Stmt) int {
	if c := strings.Compare(a.Method().Signature(), b.Method().Signature()); c != 0 {
		return c
	}
	return a.Index() - b.Index()
}
