package markdown

import (
	"regexp"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"

	"github.com/jcdickinson/phpdomain/internal/docs"
)

var (
	// ```{php:class} App\Widget
	directiveFenceRe = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})\\{([A-Za-z][\\w:.-]*)\\}\\s*(.*)$")
	plainFenceRe     = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
	// :noindex: or :synopsis: text at the top of a directive body
	fenceOptionRe = regexp.MustCompile(`^:([\w-]+):(?:\s+(.*))?$`)
	// {php:func} immediately before an inline code span
	inlineRoleRe = regexp.MustCompile(`\{(?:([\w-]+):)?([\w-]+)\}$`)
)

// Read parses a MyST-style Markdown document into the shared document model.
// Fenced blocks whose info string is {name} become directives, inline
// {role}`target` spans and links to php:role:target become role spans.
func Read(docname string, src []byte) *docs.Document {
	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	doc := &docs.Document{DocName: docname, Blocks: readBlocks(lines, 0)}
	for _, b := range doc.Blocks {
		if b.Type == docs.HeadingBlock {
			doc.Title = b.Text
			break
		}
	}
	return doc
}

// readBlocks splits lines into directive fences and the Markdown between
// them. The parser does not accept text after a {name} info string, so
// directive fences are found here before it runs. offset is the number of
// source lines before lines[0].
func readBlocks(lines []string, offset int) []*docs.Block {
	var blocks []*docs.Block
	chunk := 0
	for i := 0; i < len(lines); i++ {
		m := directiveFenceRe.FindStringSubmatch(lines[i])
		if m == nil {
			if pm := plainFenceRe.FindStringSubmatch(lines[i]); pm != nil {
				i = closingFence(lines, i, pm[1])
			}
			continue
		}
		blocks = append(blocks, readMarkdown(lines[chunk:i], offset+chunk)...)

		end := closingFence(lines, i, m[1])
		blocks = append(blocks, directive(m[2], m[3], lines[i+1:end], offset+i+1))
		chunk = end + 1
		i = end
	}
	if chunk < len(lines) {
		blocks = append(blocks, readMarkdown(lines[chunk:], offset+chunk)...)
	}
	return blocks
}

// closingFence returns the index of the line closing the fence opened at
// open, or len(lines) when it is never closed.
func closingFence(lines []string, open int, marker string) int {
	for j := open + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if len(t) >= len(marker) && strings.Trim(t, marker[:1]) == "" {
			return j
		}
	}
	return len(lines)
}

// directive builds a directive block. line is the 1-based line of the fence.
func directive(name, arg string, body []string, line int) *docs.Block {
	b := &docs.Block{Type: docs.DirectiveBlock, Line: line, Name: name}
	if sig := strings.TrimSpace(arg); sig != "" {
		b.Args = []string{sig}
	}

	consumed := 0
	for consumed < len(body) {
		om := fenceOptionRe.FindStringSubmatch(strings.TrimSpace(body[consumed]))
		if om == nil {
			break
		}
		if b.Options == nil {
			b.Options = make(map[string]string)
		}
		b.Options[om[1]] = strings.TrimSpace(om[2])
		consumed++
	}
	if consumed > 0 && consumed < len(body) && strings.TrimSpace(body[consumed]) == "" {
		consumed++
	}

	if rest := body[consumed:]; strings.TrimSpace(strings.Join(rest, "")) != "" {
		b.Content = readBlocks(rest, line+consumed)
	}
	return b
}

// reader maps AST nodes back to source lines. gomarkdown keeps no positions,
// so blocks are located by scanning forward from the previous match.
type reader struct {
	lines  []string
	cursor int
	offset int
}

func readMarkdown(lines []string, offset int) []*docs.Block {
	src := strings.Join(lines, "\n")
	if strings.TrimSpace(src) == "" {
		return nil
	}
	r := &reader{lines: lines, offset: offset}
	root := gm.Parse([]byte(src+"\n"), newParser())
	var blocks []*docs.Block
	for _, child := range root.GetChildren() {
		blocks = r.node(child, blocks)
	}
	return blocks
}

func (r *reader) node(n ast.Node, out []*docs.Block) []*docs.Block {
	switch n := n.(type) {
	case *ast.Heading:
		in := inlineText(n)
		return append(out, &docs.Block{
			Type:  docs.HeadingBlock,
			Line:  r.locate(in.needle),
			Text:  in.text.String(),
			Level: n.Level,
			Roles: in.roles,
		})
	case *ast.Paragraph:
		in := inlineText(n)
		return append(out, &docs.Block{
			Type:  docs.TextBlock,
			Line:  r.locate(in.needle),
			Text:  in.text.String(),
			Roles: in.roles,
		})
	case *ast.CodeBlock:
		r.skip(n.Literal)
		return out
	case *ast.HTMLBlock, *ast.HorizontalRule:
		return out
	}
	for _, child := range n.GetChildren() {
		out = r.node(child, out)
	}
	return out
}

// locate returns the 1-based line of the next source line containing needle
// and advances past it.
func (r *reader) locate(needle string) int {
	if needle != "" {
		for i := r.cursor; i < len(r.lines); i++ {
			if strings.Contains(r.lines[i], needle) {
				r.cursor = i + 1
				return r.offset + i + 1
			}
		}
	}
	for i := r.cursor; i < len(r.lines); i++ {
		if strings.TrimSpace(r.lines[i]) != "" {
			r.cursor = i + 1
			return r.offset + i + 1
		}
	}
	return r.offset + r.cursor
}

func (r *reader) skip(literal []byte) {
	first, _, _ := strings.Cut(string(literal), "\n")
	if first = strings.TrimSpace(first); first == "" {
		return
	}
	for i := r.cursor; i < len(r.lines); i++ {
		if strings.Contains(r.lines[i], first) {
			r.cursor = i + strings.Count(string(literal), "\n")
			return
		}
	}
}

type inline struct {
	text  strings.Builder
	roles []docs.RoleSpan
	needle string
}

// inlineText rebuilds the Markdown of a paragraph or heading. The parser
// clears the raw content of these blocks once inline parsing is done.
func inlineText(n ast.Node) *inline {
	in := &inline{}
	for _, child := range n.GetChildren() {
		in.add(child)
	}
	return in
}

func (in *inline) setNeedle(s string) {
	if in.needle != "" {
		return
	}
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if len(s) > 40 {
		s = s[:40]
	}
	in.needle = s
}

func (in *inline) wrap(n ast.Node, mark string) {
	in.text.WriteString(mark)
	for _, child := range n.GetChildren() {
		in.add(child)
	}
	in.text.WriteString(mark)
}

func (in *inline) add(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		in.setNeedle(string(n.Literal))
		in.text.Write(n.Literal)
	case *ast.Code:
		code := string(n.Literal)
		in.setNeedle(code)
		if m := inlineRoleRe.FindStringSubmatch(in.text.String()); m != nil {
			in.roles = append(in.roles, docs.RoleSpan{
				Raw:    m[0] + "`" + code + "`",
				Domain: m[1],
				Role:   m[2],
				Text:   code,
			})
		}
		in.text.WriteString("`" + code + "`")
	case *ast.Link:
		in.link(n)
	case *ast.Emph:
		in.wrap(n, "*")
	case *ast.Strong:
		in.wrap(n, "**")
	case *ast.Del:
		in.wrap(n, "~~")
	case *ast.Softbreak, *ast.Hardbreak:
		in.text.WriteString("\n")
	case *ast.HTMLSpan:
		in.text.Write(n.Literal)
	case *ast.Image:
		in.text.WriteString("![")
		for _, child := range n.GetChildren() {
			in.add(child)
		}
		in.text.WriteString("](" + string(n.Destination) + ")")
	default:
		if leaf := n.AsLeaf(); leaf != nil {
			in.text.Write(leaf.Literal)
			return
		}
		for _, child := range n.GetChildren() {
			in.add(child)
		}
	}
}

func (in *inline) link(n *ast.Link) {
	label := &inline{}
	for _, child := range n.GetChildren() {
		label.add(child)
	}
	in.setNeedle(label.needle)
	in.roles = append(in.roles, label.roles...)

	dest := string(n.Destination)
	in.text.WriteString("[" + label.text.String() + "](" + EscapeDestination(dest) + ")")

	role, target, ok := linkRole(dest)
	if !ok {
		return
	}
	text := target
	if title := strings.Trim(label.text.String(), "`"); title != "" && title != target {
		text = title + " <" + target + ">"
	}
	in.roles = append(in.roles, docs.RoleSpan{
		Raw:    dest,
		Domain: "php",
		Role:   role,
		Text:   text,
		Link:   true,
	})
}

// linkRole splits a php:role:target link destination.
func linkRole(dest string) (role, target string, ok bool) {
	rest, found := strings.CutPrefix(dest, "php:")
	if !found {
		return "", "", false
	}
	role, target, ok = strings.Cut(rest, ":")
	if !ok || role == "" || target == "" {
		return "", "", false
	}
	return role, target, true
}
