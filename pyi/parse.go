package pyi

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/teranos/cystub/errors"
)

// Parse reads stub source into a Module.
// Source that does not parse cleanly yields an error marked ErrParseStub
// carrying the position of the first syntax error.
func Parse(ctx context.Context, src []byte) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "tree-sitter parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.Mark(errors.New("empty syntax tree"), errors.ErrParseStub)
	}
	if root.HasError() {
		return nil, syntaxError(root, src)
	}

	p := &stubParser{src: src}
	return &Module{Body: p.block(root)}, nil
}

// syntaxError describes the first ERROR or MISSING node under n.
func syntaxError(n *sitter.Node, src []byte) error {
	bad := firstError(n)
	pos := bad.StartPoint()
	text := bad.Content(src)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}

	var err error
	if bad.IsMissing() {
		err = errors.Newf("line %d, column %d: missing %s", pos.Row+1, pos.Column+1, bad.Type())
	} else {
		err = errors.Newf("line %d, column %d: unexpected %q", pos.Row+1, pos.Column+1, text)
	}
	return errors.Mark(err, errors.ErrParseStub)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.HasError() || child.IsMissing()) {
			return firstError(child)
		}
	}
	return n
}

type stubParser struct {
	src []byte
}

func (p *stubParser) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.src)
}

// namedChildren returns the named children of n, comments excluded.
func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// block converts the statements under a module or block node.
func (p *stubParser) block(n *sitter.Node) []Stmt {
	var body []Stmt
	for _, child := range namedChildren(n) {
		body = append(body, p.statement(child))
	}
	return body
}

func (p *stubParser) statement(n *sitter.Node) Stmt {
	switch n.Type() {
	case "class_definition":
		return p.class(n, nil)
	case "function_definition":
		return p.function(n, nil)
	case "decorated_definition":
		return p.decorated(n)
	case "if_statement":
		return p.ifStatement(n)
	case "expression_statement":
		if s := p.annAssign(n); s != nil {
			return s
		}
	}
	return p.verbatim(n)
}

func (p *stubParser) decorated(n *sitter.Node) Stmt {
	var decorators []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child != nil && child.Type() == "decorator" {
			decorators = append(decorators, p.text(child))
		}
	}

	def := n.ChildByFieldName("definition")
	if def == nil {
		return p.verbatim(n)
	}
	switch def.Type() {
	case "class_definition":
		return p.class(def, decorators)
	case "function_definition":
		return p.function(def, decorators)
	}
	return p.verbatim(n)
}

func (p *stubParser) class(n *sitter.Node, decorators []string) *ClassDef {
	return &ClassDef{
		Decorators: decorators,
		Name:       p.text(n.ChildByFieldName("name")),
		TypeParams: p.text(n.ChildByFieldName("type_parameters")),
		Bases:      p.text(n.ChildByFieldName("superclasses")),
		Body:       p.suite(n.ChildByFieldName("body")),
	}
}

func (p *stubParser) function(n *sitter.Node, decorators []string) *FunctionDef {
	first := n.Child(0)
	return &FunctionDef{
		Decorators: decorators,
		Async:      first != nil && first.Type() == "async",
		Name:       p.text(n.ChildByFieldName("name")),
		TypeParams: p.text(n.ChildByFieldName("type_parameters")),
		Params:     p.text(n.ChildByFieldName("parameters")),
		Returns:    p.text(n.ChildByFieldName("return_type")),
		Body:       p.suite(n.ChildByFieldName("body")),
	}
}

func (p *stubParser) suite(n *sitter.Node) []Stmt {
	if n == nil {
		return nil
	}
	return p.block(n)
}

func (p *stubParser) ifStatement(n *sitter.Node) *IfStmt {
	stmt := &IfStmt{Clauses: []Clause{{
		Header: "if " + p.text(n.ChildByFieldName("condition")),
		Body:   p.suite(n.ChildByFieldName("consequence")),
	}}}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "elif_clause":
			stmt.Clauses = append(stmt.Clauses, Clause{
				Header: "elif " + p.text(child.ChildByFieldName("condition")),
				Body:   p.suite(child.ChildByFieldName("consequence")),
			})
		case "else_clause":
			stmt.Clauses = append(stmt.Clauses, Clause{
				Header: "else",
				Body:   p.suite(child.ChildByFieldName("body")),
			})
		}
	}
	return stmt
}

// annAssign recognizes "name: annotation [= value]". Anything else,
// including annotated attribute or subscript targets, returns nil.
func (p *stubParser) annAssign(n *sitter.Node) *AnnAssign {
	children := namedChildren(n)
	if len(children) != 1 || children[0].Type() != "assignment" {
		return nil
	}
	assign := children[0]

	left := assign.ChildByFieldName("left")
	typ := assign.ChildByFieldName("type")
	if left == nil || typ == nil || left.Type() != "identifier" {
		return nil
	}

	return &AnnAssign{
		Target:     p.text(left),
		Annotation: p.expr(typ),
		Value:      p.text(assign.ChildByFieldName("right")),
	}
}

// expr converts a type annotation node. The grammar wraps the annotation
// expression in a "type" node; a lone identifier child is a bare name.
func (p *stubParser) expr(n *sitter.Node) Expr {
	inner := n
	if n.Type() == "type" {
		if children := namedChildren(n); len(children) == 1 {
			inner = children[0]
		}
	}
	return Expr{
		Text: p.text(n),
		Name: inner != nil && inner.Type() == "identifier",
	}
}

func (p *stubParser) verbatim(n *sitter.Node) *Verbatim {
	col := int(n.StartPoint().Column)
	raw := strings.Split(p.text(n), "\n")

	lines := make([]Line, 0, len(raw))
	lines = append(lines, Line{Text: strings.TrimRight(raw[0], " \t\r")})
	for _, line := range raw[1:] {
		line = strings.TrimRight(line, "\r")
		if len(line) >= col && strings.TrimLeft(line[:col], " \t") == "" {
			lines = append(lines, Line{Text: line[col:]})
			continue
		}
		if strings.TrimSpace(line) == "" {
			lines = append(lines, Line{Text: ""})
			continue
		}
		lines = append(lines, Line{Text: line, Absolute: true})
	}
	return &Verbatim{Lines: lines}
}
