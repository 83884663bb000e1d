package php

import "strings"

// NodeType is the role of one piece of a rendered signature.
type NodeType string

const (
	NodeAnnotation NodeType = "annotation"
	NodeAddName    NodeType = "addname"
	NodeName       NodeType = "name"
	NodeParams     NodeType = "parameterlist"
	NodeReturns    NodeType = "returns"
)

// SigNode is one ordered piece of a rendered signature.
type SigNode struct {
	Type   NodeType `json:"type"`
	Text   string   `json:"text,omitempty"`
	Params []*Param `json:"params,omitempty"`
}

// Render lays the declaration out as the ordered pieces a writer would emit:
// annotations, the display prefix, the name, parameters and the return or
// backing type.
func (dom *Domain) Render(d *Declaration) []SigNode {
	h := handlers[d.Kind]
	prefix := h.SignaturePrefix(d)

	var nodes []SigNode
	if d.Visibility != "" {
		nodes = append(nodes, SigNode{Type: NodeAnnotation, Text: d.Visibility + " "})
	}
	if d.Modifier != "" && !strings.Contains(prefix, "static") {
		nodes = append(nodes, SigNode{Type: NodeAnnotation, Text: d.Modifier + " "})
	}
	if prefix != "" {
		nodes = append(nodes, SigNode{Type: NodeAnnotation, Text: prefix})
	}
	if d.Prefix != "" {
		nodes = append(nodes, SigNode{Type: NodeAddName, Text: d.Prefix})
	}
	nodes = append(nodes, SigNode{Type: NodeName, Text: d.ShortName})
	if d.HasArglist {
		nodes = append(nodes, SigNode{Type: NodeParams, Params: d.Params.Params})
	}
	if ret := d.ReturnType; ret != "" {
		nodes = append(nodes, SigNode{Type: NodeReturns, Text: ret})
	} else if d.Annotation != "" {
		nodes = append(nodes, SigNode{Type: NodeReturns, Text: d.Annotation})
	}
	return nodes
}

// Text joins rendered nodes into a single line, e.g.
// "public static App\Widget::make($a[, $b]): self".
func Text(nodes []SigNode) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case NodeParams:
			b.WriteString("(")
			writeParams(&b, n.Params)
			b.WriteString(")")
		case NodeReturns:
			b.WriteString(": ")
			b.WriteString(n.Text)
		default:
			b.WriteString(n.Text)
		}
	}
	return b.String()
}

// IndexText returns the general index entry for d, or "" when d has none.
func (dom *Domain) IndexText(d *Declaration) string {
	return handlers[d.Kind].IndexText(d, dom.opts)
}

// TocEntryName is the name shown for d in a table of contents.
func (dom *Domain) TocEntryName(d *Declaration, opts DirectiveOptions) string {
	if opts.NoContentsEntry {
		return ""
	}
	var name string
	switch dom.opts.TocShowParents {
	case "hide":
		name = d.ShortName
	case "all":
		name = d.Name
		if d.Member() {
			name = d.Owner + "::" + d.ShortName
		}
	default:
		name = d.ShortName
		if d.Member() {
			_, owner := splitPath(d.Owner)
			name = owner + d.Kind.Separator() + d.ShortName
		}
	}
	if d.Kind.Callable() {
		name += parens(dom.opts)
	}
	return name
}
