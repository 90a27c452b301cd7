// Package pyi parses, rewrites and prints Python stub (.pyi) files.
//
// A stub is parsed with the tree-sitter Python grammar into a small
// statement tree (Module). Declarations the rewrite rules care about are
// modelled structurally (classes, functions, annotated assignments and
// conditional blocks); everything else is carried verbatim. The tree is
// printed back with normalized indentation.
//
// Usage:
//
//	out, report, err := pyi.TransformSource(ctx, src)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("repaired %d annotations\n", len(report.Repaired))
package pyi

// Stmt is one statement of a stub file.
type Stmt interface {
	stmt()
}

// Module is the parsed form of one stub file.
type Module struct {
	Body []Stmt
}

// ClassDef is a class declaration.
type ClassDef struct {
	Decorators []string // decorator source, including the leading "@"
	Name       string
	TypeParams string // "[T]" or empty
	Bases      string // "(Base, metaclass=M)" or empty
	Body       []Stmt
}

// FunctionDef is a def or async def declaration.
type FunctionDef struct {
	Decorators []string
	Async      bool
	Name       string
	TypeParams string
	Params     string // parameter list including parentheses
	Returns    string // return annotation, empty when absent
	Body       []Stmt
}

// AnnAssign is an annotated assignment whose target is a plain name,
// e.g. "bar: Foo" or "x: int = 3".
type AnnAssign struct {
	Target     string
	Annotation Expr
	Value      string // empty when there is no "= value"
}

// Expr is an expression kept as source text.
// Name is true when the expression is a bare identifier.
type Expr struct {
	Text string
	Name bool
}

// IfStmt is an if/elif/else block. Stubs use it for version and
// platform checks, and the rules apply inside every clause.
type IfStmt struct {
	Clauses []Clause
}

// Clause is one branch of an IfStmt.
type Clause struct {
	Header string // "if sys.version_info >= (3, 12)", "elif ...", "else"
	Body   []Stmt
}

// Verbatim is any other statement, carried as source text.
type Verbatim struct {
	Lines []Line
}

// Line is one line of a verbatim statement. Relative lines are printed at
// the statement's indentation; Absolute lines (continuation lines that sat
// left of the statement in the source, e.g. inside a docstring) are printed
// exactly as read.
type Line struct {
	Text     string
	Absolute bool
}

func (*ClassDef) stmt()    {}
func (*FunctionDef) stmt() {}
func (*AnnAssign) stmt()   {}
func (*IfStmt) stmt()      {}
func (*Verbatim) stmt()    {}

// Ellipsis builds the "..." placeholder statement.
func Ellipsis() *Verbatim {
	return &Verbatim{Lines: []Line{{Text: "..."}}}
}

// Name builds a bare identifier expression.
func Name(id string) Expr {
	return Expr{Text: id, Name: true}
}

// isEllipsisBody reports whether a body prints inline as "...".
func isEllipsisBody(body []Stmt) bool {
	if len(body) == 0 {
		return true
	}
	if len(body) != 1 {
		return false
	}
	v, ok := body[0].(*Verbatim)
	return ok && len(v.Lines) == 1 && v.Lines[0].Text == "..."
}
