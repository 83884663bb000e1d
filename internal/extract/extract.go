// Package extract scans PHP sources with tree-sitter and writes the
// declarations it finds as reStructuredText stubs for the php domain.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	dom "github.com/jcdickinson/phpdomain/internal/php"
)

// Decl is one declaration. Members are set for class-like declarations.
type Decl struct {
	Kind      dom.Kind
	Signature string
	Summary   string
	Line      int
	Members   []Decl
}

// Namespace groups the declarations made under one namespace statement.
// The global namespace has an empty name.
type Namespace struct {
	Name  string
	Decls []Decl
}

// File is the result of scanning one source file.
type File struct {
	Path       string
	Namespaces []Namespace
}

// Empty reports whether the file declares nothing.
func (f *File) Empty() bool {
	for _, ns := range f.Namespaces {
		if len(ns.Decls) > 0 {
			return false
		}
	}
	return true
}

type Options struct {
	// Private includes private members.
	Private bool
}

// Extractor holds a tree-sitter parser. It is not safe for concurrent use.
type Extractor struct {
	parser *sitter.Parser
	opts   Options
}

func New(opts Options) *Extractor {
	p := sitter.NewParser()
	p.SetLanguage(php.GetLanguage())
	return &Extractor{parser: p, opts: opts}
}

// Source scans the PHP source src. path is only recorded in the result.
func (e *Extractor) Source(ctx context.Context, path string, src []byte) (*File, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	s := &scan{src: src, opts: e.opts, file: &File{Path: path}}
	s.statements(tree.RootNode(), -1)
	return s.file, nil
}

type scan struct {
	src  []byte
	opts Options
	file *File
}

func (s *scan) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(s.src)
}

// namespace returns the index of a new namespace group.
func (s *scan) namespace(name string) int {
	s.file.Namespaces = append(s.file.Namespaces, Namespace{Name: name})
	return len(s.file.Namespaces) - 1
}

func (s *scan) add(ns int, d Decl) int {
	if ns < 0 {
		ns = s.namespace("")
	}
	s.file.Namespaces[ns].Decls = append(s.file.Namespaces[ns].Decls, d)
	return ns
}

// statements reads the top-level statements of n into namespace ns, or a new
// global group when ns is negative.
func (s *scan) statements(n *sitter.Node, ns int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "namespace_definition":
			name := s.text(child.ChildByFieldName("name"))
			if body := child.ChildByFieldName("body"); body != nil {
				s.statements(body, s.namespace(name))
				continue
			}
			ns = s.namespace(name)
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			ns = s.add(ns, s.classLike(child))
		case "function_definition":
			ns = s.add(ns, Decl{
				Kind:      dom.KindFunction,
				Signature: s.callable(child, ""),
				Summary:   s.summary(child),
				Line:      line(child),
			})
		case "const_declaration":
			for _, d := range s.consts(child, "") {
				ns = s.add(ns, d)
			}
		}
	}
}

var classKinds = map[string]dom.Kind{
	"class_declaration":     dom.KindClass,
	"interface_declaration": dom.KindInterface,
	"trait_declaration":     dom.KindTrait,
	"enum_declaration":      dom.KindEnum,
}

func (s *scan) classLike(n *sitter.Node) Decl {
	d := Decl{
		Kind:    classKinds[n.Type()],
		Summary: s.summary(n),
		Line:    line(n),
	}

	var modifier, backing string
	afterColon := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch {
		case child.Type() == "final_modifier" || child.Type() == "abstract_modifier":
			modifier = s.text(child) + " "
		case child.Type() == ":":
			afterColon = true
		case afterColon && child.IsNamed():
			backing = s.text(child)
			afterColon = false
		}
	}
	d.Signature = modifier + s.text(n.ChildByFieldName("name"))
	if backing != "" {
		d.Signature += ": " + backing
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return d
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		d.Members = append(d.Members, s.member(body.NamedChild(i))...)
	}
	return d
}

type modifiers struct {
	visibility string
	modifier   string
}

// prefix renders the modifiers the way signatures accept them: one
// visibility and at most one other modifier.
func (m modifiers) prefix() string {
	var b strings.Builder
	if m.visibility != "" {
		b.WriteString(m.visibility + " ")
	}
	if m.modifier != "" {
		b.WriteString(m.modifier + " ")
	}
	return b.String()
}

func (s *scan) modifiers(n *sitter.Node) modifiers {
	var m modifiers
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "visibility_modifier":
			m.visibility = strings.ToLower(s.text(child))
		case "static_modifier":
			m.modifier = "static"
		case "abstract_modifier", "final_modifier":
			if m.modifier == "" {
				m.modifier = strings.ToLower(s.text(child))
			}
		}
	}
	return m
}

func (s *scan) hidden(m modifiers) bool {
	return m.visibility == "private" && !s.opts.Private
}

func (s *scan) member(n *sitter.Node) []Decl {
	switch n.Type() {
	case "method_declaration":
		m := s.modifiers(n)
		if s.hidden(m) {
			return nil
		}
		return []Decl{{
			Kind:      dom.KindMethod,
			Signature: s.callable(n, m.prefix()),
			Summary:   s.summary(n),
			Line:      line(n),
		}}
	case "property_declaration":
		return s.properties(n)
	case "const_declaration":
		m := s.modifiers(n)
		if s.hidden(m) {
			return nil
		}
		return s.consts(n, m.prefix())
	case "enum_case":
		sig := s.text(n.ChildByFieldName("name"))
		if v := n.ChildByFieldName("value"); v != nil {
			sig += ": " + s.text(v)
		}
		return []Decl{{Kind: dom.KindCase, Signature: sig, Summary: s.summary(n), Line: line(n)}}
	}
	return nil
}

func (s *scan) properties(n *sitter.Node) []Decl {
	m := s.modifiers(n)
	if s.hidden(m) {
		return nil
	}
	typ := s.text(n.ChildByFieldName("type"))
	summary := s.summary(n)

	var out []Decl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		elem := n.NamedChild(i)
		if elem.Type() != "property_element" {
			continue
		}
		var name string
		for j := 0; j < int(elem.NamedChildCount()); j++ {
			if v := elem.NamedChild(j); v.Type() == "variable_name" {
				name = s.text(v)
				break
			}
		}
		if name == "" {
			continue
		}
		sig := m.prefix() + name
		if typ != "" {
			sig += ": " + typ
		}
		out = append(out, Decl{Kind: dom.KindAttr, Signature: sig, Summary: summary, Line: line(elem)})
	}
	return out
}

func (s *scan) consts(n *sitter.Node, prefix string) []Decl {
	summary := s.summary(n)
	var out []Decl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		elem := n.NamedChild(i)
		if elem.Type() != "const_element" || elem.NamedChildCount() == 0 {
			continue
		}
		out = append(out, Decl{
			Kind:      dom.KindConst,
			Signature: prefix + s.text(elem.NamedChild(0)),
			Summary:   summary,
			Line:      line(elem),
		})
	}
	return out
}

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	trailCommaRe = regexp.MustCompile(`,?\s*\)$`)
)

// callable renders a function or method signature on one line.
func (s *scan) callable(n *sitter.Node, prefix string) string {
	params := spaceRe.ReplaceAllString(s.text(n.ChildByFieldName("parameters")), " ")
	params = strings.Replace(params, "( ", "(", 1)
	params = trailCommaRe.ReplaceAllString(params, ")")
	if params == "" {
		params = "()"
	}
	sig := prefix + s.text(n.ChildByFieldName("name")) + params
	if ret := strings.TrimSpace(strings.TrimPrefix(s.text(n.ChildByFieldName("return_type")), ":")); ret != "" {
		sig += ": " + ret
	}
	return sig
}

// summary returns the first paragraph of the doc comment directly above n.
func (s *scan) summary(n *sitter.Node) string {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" || prev.EndPoint().Row+1 < n.StartPoint().Row {
		return ""
	}
	c := s.text(prev)
	if !strings.HasPrefix(c, "/**") {
		return ""
	}
	c = strings.TrimSuffix(strings.TrimPrefix(c, "/**"), "*/")

	var lines []string
	for _, l := range strings.Split(c, "\n") {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "*"))
		if l == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(l, "@") {
			break
		}
		lines = append(lines, l)
	}
	return strings.Join(lines, " ")
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
