package pyi

import "strings"

// PlaceholderName replaces self-referential annotations.
const PlaceholderName = "Incomplete_"

// supportHooks are the pickling methods Cython injects into every
// extension type.
var supportHooks = map[string]bool{
	"__reduce__":          true,
	"__reduce_cython__":   true,
	"__setstate_cython__": true,
}

// IsSupportHook reports whether a function name is one of the fixed
// serialization hooks removed from stubs.
func IsSupportHook(name string) bool {
	return supportHooks[name]
}

// IsDunder reports whether an attribute name is wrapped in double underscores.
func IsDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Report summarizes what Rewrite changed. Names are qualified with their
// enclosing classes and functions, e.g. "Foo.__reduce_cython__".
type Report struct {
	RemovedHooks      []string `json:"removed_hooks,omitempty" yaml:"removed_hooks,omitempty" toml:"removed_hooks,omitempty"`
	RemovedAttributes []string `json:"removed_attributes,omitempty" yaml:"removed_attributes,omitempty" toml:"removed_attributes,omitempty"`
	Repaired          []string `json:"repaired,omitempty" yaml:"repaired,omitempty" toml:"repaired,omitempty"`
}

// NeedsPlaceholder reports whether the placeholder preamble must be emitted.
func (r Report) NeedsPlaceholder() bool {
	return len(r.Repaired) > 0
}

// Changed reports whether any rule fired.
func (r Report) Changed() bool {
	return len(r.RemovedHooks)+len(r.RemovedAttributes)+len(r.Repaired) > 0
}

// Rewrite applies the stub cleanup rules to m in place:
// support hooks and dunder attributes are removed, and annotations naming
// the attribute itself (or, directly in a class body, the enclosing class)
// are replaced with PlaceholderName.
func Rewrite(m *Module) Report {
	var r rewriter
	m.Body = r.body(m.Body, scope{})
	return r.report
}

type scope struct {
	prefix string
	class  string // enclosing class when the body belongs to a class
}

func (s scope) qualify(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

type rewriter struct {
	report Report
}

func (r *rewriter) body(stmts []Stmt, sc scope) []Stmt {
	kept := stmts[:0]
	for _, s := range stmts {
		switch s := s.(type) {
		case *FunctionDef:
			if IsSupportHook(s.Name) {
				r.report.RemovedHooks = append(r.report.RemovedHooks, sc.qualify(s.Name))
				continue
			}
			s.Body = suite(r.body(s.Body, scope{prefix: sc.qualify(s.Name)}))

		case *ClassDef:
			name := sc.qualify(s.Name)
			s.Body = suite(r.body(s.Body, scope{prefix: name, class: s.Name}))

		case *AnnAssign:
			if IsDunder(s.Target) {
				r.report.RemovedAttributes = append(r.report.RemovedAttributes, sc.qualify(s.Target))
				continue
			}
			if selfReferential(s, sc.class) {
				s.Annotation = Name(PlaceholderName)
				r.report.Repaired = append(r.report.Repaired, sc.qualify(s.Target))
			}

		case *IfStmt:
			for i := range s.Clauses {
				s.Clauses[i].Body = suite(r.body(s.Clauses[i].Body, sc))
			}
		}
		kept = append(kept, s)
	}
	return kept
}

// suite keeps an emptied block body valid by leaving "..." in it.
func suite(body []Stmt) []Stmt {
	if len(body) == 0 {
		return []Stmt{Ellipsis()}
	}
	return body
}

// selfReferential never matches the placeholder itself, so a stub that
// already went through Rewrite is left alone.
func selfReferential(s *AnnAssign, class string) bool {
	if !s.Annotation.Name {
		return false
	}
	ann := s.Annotation.Text
	if ann == PlaceholderName {
		return false
	}
	return ann == s.Target || (class != "" && ann == class)
}
