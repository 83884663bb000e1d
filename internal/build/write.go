package build

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/jcdickinson/phpdomain/internal/docs"
	"github.com/jcdickinson/phpdomain/internal/markdown"
	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/jcdickinson/phpdomain/internal/search"
)

// link is a reference together with what it resolved to, nil when it did
// not resolve.
type link struct {
	ref docs.PendingRef
	res *php.Resolution
}

var slugRe = regexp.MustCompile(`[^a-z0-9_]+`)

// Slug turns an anchor into an HTML id.
func Slug(anchor string) string {
	s := strings.ToLower(strings.ReplaceAll(anchor, "$", "var-"))
	return strings.Trim(slugRe.ReplaceAllString(s, "-"), "-")
}

// Href is the address of a resolved target as seen from the document from.
func Href(from string, res php.Resolution) string {
	frag := "#" + Slug(res.Anchor)
	if res.DocName == from {
		return frag
	}
	return relPath(path.Dir(from), res.DocName) + ".md" + frag
}

// relPath returns target relative to dir, both slash separated paths from
// the project root.
func relPath(dir, target string) string {
	if dir == "." {
		return target
	}
	from := strings.Split(dir, "/")
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	up := strings.Repeat("../", len(from)-i)
	return up + strings.Join(to[i:], "/")
}

// renderDocument writes tree as Markdown. Resolved references become links,
// unresolved ones keep their title as code.
func renderDocument(tree *docs.Doctree, links map[*docs.Block][]link) string {
	w := &mdWriter{docname: tree.Document.DocName, links: links}
	w.blocks(tree.Document.Blocks)

	fields := make(map[string]string)
	for _, o := range tree.Objects() {
		if o.NoIndex || o.Decl == nil || o.Decl.Kind == php.KindNamespace {
			continue
		}
		fields[o.Decl.Name] = search.URI(o.Decl.Name)
	}
	return markdown.AddFrontMatter(strings.TrimSpace(w.out.String())+"\n", fields)
}

type mdWriter struct {
	docname string
	links   map[*docs.Block][]link
	out     strings.Builder
}

func (w *mdWriter) para(s string) {
	w.out.WriteString(s)
	w.out.WriteString("\n\n")
}

func (w *mdWriter) blocks(blocks []*docs.Block) {
	for _, b := range blocks {
		switch b.Type {
		case docs.HeadingBlock:
			w.para(strings.Repeat("#", max(b.Level, 1)) + " " + w.text(b))
		case docs.TextBlock:
			w.para(w.text(b))
		case docs.DirectiveBlock:
			w.directive(b)
		}
	}
}

func (w *mdWriter) directive(b *docs.Block) {
	for _, o := range b.Objects {
		if o.Decl.Kind == php.KindNamespace {
			w.namespace(o, b.Options["synopsis"])
			continue
		}
		sig := "`" + php.Text(o.Nodes) + "`"
		if o.NoIndex {
			w.para(sig)
			continue
		}
		w.para(fmt.Sprintf(`<a id="%s"></a>`, Slug(o.Decl.Name)) + "\n" + sig)
	}
	w.blocks(b.Content)
}

func (w *mdWriter) namespace(o docs.ObjectDesc, synopsis string) {
	line := "**Namespace** `" + o.Decl.Name + "`"
	if !o.NoIndex {
		line = fmt.Sprintf(`<a id="%s"></a>`, Slug(php.NamespaceAnchor(o.Decl.Name))) + "\n" + line
	}
	w.para(line)
	if synopsis != "" {
		w.para("*" + synopsis + "*")
	}
}

// text rewrites the references of a text or heading block.
func (w *mdWriter) text(b *docs.Block) string {
	text := b.Text
	hrefs := make(map[string]string)
	for _, l := range w.links[b] {
		span := l.ref.Span
		if span.Link {
			if l.res != nil {
				hrefs[span.Raw] = Href(w.docname, *l.res)
			}
			continue
		}
		title := "`" + l.ref.Ref.Title + "`"
		if l.res != nil {
			title = "[" + title + "](" + Href(w.docname, *l.res) + ")"
		}
		text = strings.Replace(text, span.Raw, title, 1)
	}
	return markdown.RewriteLinks(text, hrefs)
}

// renderNamespaceIndex lays the namespace index out as a Markdown page.
func renderNamespaceIndex(idx php.NamespaceIndex) string {
	var b strings.Builder
	b.WriteString("# Namespace Index\n")
	for _, g := range idx.Groups {
		fmt.Fprintf(&b, "\n## %s\n\n", strings.ToUpper(g.Letter))
		for _, e := range g.Entries {
			indent := ""
			if e.Subtype == 2 {
				indent = "  "
			}
			name := "`" + e.Name + "`"
			if e.DocName != "" {
				name = "[" + name + "](" + e.DocName + ".md#" + Slug(e.Anchor) + ")"
			}
			line := indent + "- " + name
			if e.Qualifier != "" {
				line += " *(" + e.Qualifier + ")*"
			}
			if e.Synopsis != "" {
				line += ": " + e.Synopsis
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
