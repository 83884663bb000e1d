package docs

import "github.com/jcdickinson/phpdomain/internal/php"

// Document is one source file read into a tree of blocks. Readers for each
// markup produce the same shape so a single walker can process both.
type Document struct {
	DocName string   `json:"docname"`
	Title   string   `json:"title,omitempty"`
	Blocks  []*Block `json:"blocks"`
}

type BlockType string

const (
	TextBlock      BlockType = "text"
	HeadingBlock   BlockType = "heading"
	DirectiveBlock BlockType = "directive"
)

// Block is a paragraph, a heading or a directive with nested content.
type Block struct {
	Type BlockType `json:"type"`
	Line int       `json:"line"`

	// Text holds prose for text and heading blocks, in Markdown.
	Text  string     `json:"text,omitempty"`
	Level int        `json:"level,omitempty"`
	Roles []RoleSpan `json:"roles,omitempty"`

	// Directive fields. Args has one entry per signature line.
	Name    string            `json:"name,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Options map[string]string `json:"options,omitempty"`
	Content []*Block          `json:"content,omitempty"`

	// Filled in by the walker.
	Objects []ObjectDesc `json:"objects,omitempty"`
	Refs    []PendingRef `json:"refs,omitempty"`
}

// RoleSpan is a cross-reference written in prose. Raw is the exact text of
// the span inside Block.Text so a writer can replace it.
type RoleSpan struct {
	Raw    string `json:"raw"`
	Domain string `json:"domain,omitempty"`
	Role   string `json:"role"`
	Text   string `json:"text"`
	// Link is set for Markdown links, whose Raw is the link destination.
	Link bool `json:"link,omitempty"`
}

// ObjectDesc is one declared signature of a directive.
type ObjectDesc struct {
	Line      int              `json:"line"`
	Decl      *php.Declaration `json:"decl"`
	Nodes     []php.SigNode    `json:"nodes"`
	IndexText string           `json:"index_text,omitempty"`
	TocName   string           `json:"toc_name,omitempty"`
	NoIndex   bool             `json:"noindex,omitempty"`
}

// PendingRef is a reference waiting for the resolve pass, captured with the
// ambient state in effect where it was written.
type PendingRef struct {
	Line  int              `json:"line"`
	Span  RoleSpan         `json:"span"`
	Ref   php.Reference    `json:"ref"`
	State php.AmbientState `json:"state"`
}

// Doctree is the read result of one document: its annotated block tree and
// the partial tables its declarations produced.
type Doctree struct {
	Document *Document   `json:"document"`
	Tables   *php.Tables `json:"tables"`
}

// Refs returns every pending reference of the tree in document order.
func (d *Doctree) Refs() []PendingRef {
	var refs []PendingRef
	var walk func([]*Block)
	walk = func(blocks []*Block) {
		for _, b := range blocks {
			refs = append(refs, b.Refs...)
			walk(b.Content)
		}
	}
	walk(d.Document.Blocks)
	return refs
}

// Objects returns every object description of the tree in document order.
func (d *Doctree) Objects() []ObjectDesc {
	var objs []ObjectDesc
	var walk func([]*Block)
	walk = func(blocks []*Block) {
		for _, b := range blocks {
			objs = append(objs, b.Objects...)
			walk(b.Content)
		}
	}
	walk(d.Document.Blocks)
	return objs
}
