package docs

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/jcdickinson/phpdomain/internal/php"
)

// Walker drives the php domain over a document: it keeps the scope stack
// in step with the directives, registers every declaration and records
// the references made in prose together with their ambient state.
type Walker struct {
	dom           *php.Domain
	primaryDomain string
	logger        *slog.Logger
}

// NewWalker creates a walker. Directives and roles written without a domain
// belong to php when primaryDomain is "php".
func NewWalker(dom *php.Domain, primaryDomain string, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{dom: dom, primaryDomain: primaryDomain, logger: logger}
}

type walk struct {
	docname string
	log     *slog.Logger
	dom     *php.Domain
	domain  string
	scope   php.ScopeStack
	tables  *php.Tables
}

// Walk reads the declarations and references of doc into a Doctree. The
// document's blocks are annotated in place.
func (w *Walker) Walk(doc *Document) *Doctree {
	log := w.logger.With("doc", doc.DocName)
	st := &walk{
		docname: doc.DocName,
		log:     log,
		dom:     w.dom.WithLogger(w.logger),
		domain:  w.primaryDomain,
		tables:  php.NewTables(),
	}
	st.blocks(doc.Blocks)
	return &Doctree{Document: doc, Tables: st.tables}
}

func (st *walk) blocks(blocks []*Block) {
	for _, b := range blocks {
		switch b.Type {
		case DirectiveBlock:
			st.directive(b)
		default:
			st.roles(b)
		}
	}
}

// phpName returns the php-local part of a directive or role name, or false
// when it belongs to another domain.
func (st *walk) phpName(domain, name string) (string, bool) {
	if domain == "" {
		if d, rest, ok := strings.Cut(name, ":"); ok {
			domain, name = d, rest
		}
	}
	if domain == "" {
		domain = st.domain
	}
	return name, domain == "php"
}

func (st *walk) roles(b *Block) {
	for _, span := range b.Roles {
		role, ok := st.phpName(span.Domain, span.Role)
		if !ok {
			continue
		}
		if _, known := php.RoleKind(role); !known && span.Domain == "" {
			// A standard role such as :ref: under the php default domain.
			continue
		}
		ref, err := php.ParseReference(role, span.Text)
		if err != nil {
			st.log.Warn("unknown php role", "role", role, "line", b.Line)
			continue
		}
		b.Refs = append(b.Refs, PendingRef{Line: b.Line, Span: span, Ref: ref, State: st.scope.State()})
	}
}

func (st *walk) directive(b *Block) {
	if b.Name == "default-domain" {
		if len(b.Args) > 0 {
			st.domain = strings.TrimSpace(b.Args[0])
		}
		return
	}

	name, ok := st.phpName("", b.Name)
	if !ok {
		st.blocks(b.Content)
		return
	}

	switch name {
	case "namespace", "module":
		st.namespace(b)
		return
	case "currentnamespace", "currentmodule":
		ns := ""
		if len(b.Args) > 0 && b.Args[0] != "None" {
			ns = strings.TrimPrefix(strings.TrimSpace(b.Args[0]), php.NS)
		}
		st.scope.SetNamespace(ns)
		return
	}

	kind, ok := php.ParseKind(name)
	if !ok && !strings.Contains(b.Name, ":") {
		// A standard directive such as note under the php default domain.
		st.blocks(b.Content)
		return
	}
	if !ok {
		st.log.Warn("unknown php directive", "directive", b.Name, "line", b.Line)
		st.blocks(b.Content)
		return
	}
	st.describe(b, kind)
}

func directiveOptions(opts map[string]string) php.DirectiveOptions {
	_, noindex := opts["noindex"]
	_, noindexentry := opts["noindexentry"]
	_, nocontentsentry := opts["nocontentsentry"]
	ns, ok := opts["namespace"]
	if !ok {
		ns = opts["module"]
	}
	return php.DirectiveOptions{
		Namespace:       strings.TrimSpace(ns),
		NoIndex:         noindex,
		NoIndexEntry:    noindexentry,
		NoContentsEntry: nocontentsentry,
	}
}

func (st *walk) namespace(b *Block) {
	if len(b.Args) == 0 {
		st.log.Warn("namespace directive without a name", "line", b.Line)
		return
	}
	d, err := st.dom.ParseSignature(php.KindNamespace, b.Args[0], st.scope.State(), php.DirectiveOptions{})
	if err != nil {
		st.log.Warn("invalid namespace", "error", err, "line", b.Line)
		return
	}
	st.scope.SetNamespace(d.Name)

	opts := directiveOptions(b.Options)
	if !opts.NoIndex {
		_, deprecated := b.Options["deprecated"]
		st.tables.RegisterNamespace(d.Name, php.Namespace{
			DocName:    st.docname,
			Synopsis:   b.Options["synopsis"],
			Deprecated: deprecated,
		})
	}
	b.Objects = append(b.Objects, ObjectDesc{
		Line:      b.Line,
		Decl:      d,
		IndexText: st.dom.IndexText(d),
		NoIndex:   opts.NoIndex,
	})
}

// describe handles an object description directive: each signature line is
// parsed and registered, then the content is walked inside the class body
// when the first declaration is class-like.
func (st *walk) describe(b *Block, kind php.Kind) {
	opts := directiveOptions(b.Options)
	state := st.scope.State()

	for i, sig := range b.Args {
		line := b.Line + i
		d, err := st.dom.ParseSignature(kind, sig, state, opts)
		if err != nil {
			code := php.InvalidSignature
			var perr *php.Error
			if errors.As(err, &perr) {
				code = perr.Code
			}
			st.log.Warn("could not parse signature", "signature", sig, "code", code, "line", line)
			continue
		}

		desc := ObjectDesc{
			Line:    line,
			Decl:    d,
			Nodes:   st.dom.Render(d),
			TocName: st.dom.TocEntryName(d, opts),
			NoIndex: opts.NoIndex,
		}
		if !opts.NoIndex {
			st.dom.Register(st.tables, d.Name, st.docname, d.Kind, line)
			if !opts.NoIndexEntry {
				desc.IndexText = st.dom.IndexText(d)
			}
		}
		b.Objects = append(b.Objects, desc)
	}

	if kind.ClassLike() && len(b.Objects) > 0 {
		st.scope.EnterClass(b.Objects[0].Decl.Name)
		st.blocks(b.Content)
		st.scope.LeaveClass()
		return
	}
	st.blocks(b.Content)
}
