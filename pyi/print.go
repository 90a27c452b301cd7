package pyi

import (
	"strings"
)

const indentUnit = "    "

// Print serializes m with four-space indentation. Top-level classes and
// functions are set apart by a blank line, as is the placeholder
// definition; a body that is only "..." (or empty) is printed on the header
// line. The result ends with a newline unless the module is empty.
func Print(m *Module) string {
	var p printer
	for i, s := range m.Body {
		if i > 0 && (isDefinition(s) || isDefinition(m.Body[i-1]) || definesPlaceholder(m.Body[i-1])) {
			p.b.WriteByte('\n')
		}
		p.stmt(s, 0)
	}
	return p.b.String()
}

// definesPlaceholder reports whether s is the "Incomplete_ = ..." line of
// the preamble.
func definesPlaceholder(s Stmt) bool {
	v, ok := s.(*Verbatim)
	if !ok || len(v.Lines) == 0 {
		return false
	}
	rest, found := strings.CutPrefix(v.Lines[0].Text, PlaceholderName)
	return found && strings.HasPrefix(strings.TrimLeft(rest, " "), "=")
}

func isDefinition(s Stmt) bool {
	switch s.(type) {
	case *ClassDef, *FunctionDef:
		return true
	}
	return false
}

type printer struct {
	b strings.Builder
}

func (p *printer) line(depth int, text string) {
	if text != "" {
		p.b.WriteString(strings.Repeat(indentUnit, depth))
		p.b.WriteString(text)
	}
	p.b.WriteByte('\n')
}

func (p *printer) stmt(s Stmt, depth int) {
	switch s := s.(type) {
	case *ClassDef:
		p.decorators(s.Decorators, depth)
		p.suite("class "+s.Name+s.TypeParams+s.Bases, s.Body, depth)

	case *FunctionDef:
		p.decorators(s.Decorators, depth)
		header := "def " + s.Name + s.TypeParams + s.Params
		if s.Async {
			header = "async " + header
		}
		if s.Returns != "" {
			header += " -> " + s.Returns
		}
		p.suite(header, s.Body, depth)

	case *AnnAssign:
		text := s.Target + ": " + s.Annotation.Text
		if s.Value != "" {
			text += " = " + s.Value
		}
		p.line(depth, text)

	case *IfStmt:
		for _, c := range s.Clauses {
			p.suite(c.Header, c.Body, depth)
		}

	case *Verbatim:
		for i, l := range s.Lines {
			if l.Absolute && i > 0 {
				p.b.WriteString(l.Text)
				p.b.WriteByte('\n')
				continue
			}
			p.line(depth, l.Text)
		}
	}
}

func (p *printer) decorators(decorators []string, depth int) {
	for _, d := range decorators {
		p.line(depth, d)
	}
}

func (p *printer) suite(header string, body []Stmt, depth int) {
	if isEllipsisBody(body) {
		p.line(depth, header+": ...")
		return
	}
	p.line(depth, header+":")
	for _, s := range body {
		p.stmt(s, depth+1)
	}
}
