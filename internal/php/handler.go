package php

import (
	"fmt"
	"strings"
)

// Handler holds the kind-specific rules for one declaration kind.
type Handler interface {
	// SignaturePrefix is the annotation rendered before the name, such as
	// "class " or "property ".
	SignaturePrefix(d *Declaration) string
	// NeedsArglist reports whether an empty parameter list is rendered when
	// the signature has none.
	NeedsArglist() bool
	// IndexText is the general index entry for the declaration.
	IndexText(d *Declaration, opts Options) string

	canonicalize(d *Declaration, m sigMatch, st AmbientState, opts Options) error
}

var handlers = map[Kind]Handler{
	KindGlobal:       globalHandler{},
	KindNamespace:    namespaceHandler{},
	KindFunction:     namespaceLevel{KindFunction},
	KindConst:        constHandler{},
	KindClass:        classLike{KindClass},
	KindInterface:    classLike{KindInterface},
	KindTrait:        classLike{KindTrait},
	KindEnum:         classLike{KindEnum},
	KindException:    classLike{KindException},
	KindMethod:       classMember{KindMethod},
	KindStaticMethod: classMember{KindStaticMethod},
	KindAttr:         classMember{KindAttr},
	KindCase:         classMember{KindCase},
}

// HandlerFor returns the handler for a declarable kind.
func HandlerFor(k Kind) (Handler, bool) {
	h, ok := handlers[k]
	return h, ok
}

func parens(opts Options) string {
	if opts.AddFunctionParentheses {
		return "()"
	}
	return ""
}

func unexpectedOwner(d *Declaration, m sigMatch) error {
	return newError(InvalidSignature, d.Raw, "unexpected owner %q for a %s", strings.TrimSuffix(m.owner, "::"), d.Kind.Label())
}

// globalHandler covers global variables. They are never namespaced.
type globalHandler struct{}

func (globalHandler) SignaturePrefix(*Declaration) string { return "" }
func (globalHandler) NeedsArglist() bool                  { return false }

func (globalHandler) IndexText(d *Declaration, _ Options) string {
	return d.Name + " (global variable)"
}

func (globalHandler) canonicalize(d *Declaration, m sigMatch, _ AmbientState, _ Options) error {
	if m.owner != "" {
		return unexpectedOwner(d, m)
	}
	name := strings.TrimPrefix(strings.TrimPrefix(m.name, "$"), NS)
	if strings.Contains(name, NS) {
		return newError(InvalidSignature, d.Raw, "a global variable cannot be namespaced")
	}
	d.ShortName = name
	d.Name = "$" + name
	d.Prefix = "$"
	return nil
}

// namespaceHandler covers namespace declarations, which are always absolute.
type namespaceHandler struct{}

func (namespaceHandler) SignaturePrefix(*Declaration) string { return "namespace " }
func (namespaceHandler) NeedsArglist() bool                  { return false }

func (namespaceHandler) IndexText(d *Declaration, _ Options) string {
	return d.Name + " (namespace)"
}

func (namespaceHandler) canonicalize(d *Declaration, m sigMatch, _ AmbientState, _ Options) error {
	if m.owner != "" {
		return unexpectedOwner(d, m)
	}
	if strings.HasPrefix(m.name, "$") {
		return newError(InvalidSignature, d.Raw, "a namespace name cannot start with $")
	}
	d.Name = strings.TrimPrefix(m.name, NS)
	d.Namespace, d.ShortName = splitPath(d.Name)
	d.FullyQualified = true
	if d.Namespace != "" {
		d.Prefix = d.Namespace + NS
	}
	return nil
}

// namespaceLevel covers functions and free constants.
type namespaceLevel struct{ kind Kind }

func (h namespaceLevel) SignaturePrefix(*Declaration) string {
	if h.kind == KindConst {
		return "constant "
	}
	return ""
}

func (h namespaceLevel) NeedsArglist() bool { return h.kind == KindFunction }

func (h namespaceLevel) IndexText(d *Declaration, opts Options) string {
	switch h.kind {
	case KindFunction:
		if d.Namespace == "" {
			return fmt.Sprintf("%s%s (global function)", d.ShortName, parens(opts))
		}
		return fmt.Sprintf("%s%s (function in %s)", d.ShortName, parens(opts), d.Namespace)
	case KindConst:
		if d.Namespace == "" {
			return d.ShortName + " (global constant)"
		}
		return fmt.Sprintf("%s (constant in %s)", d.ShortName, d.Namespace)
	}
	return ""
}

func (h namespaceLevel) canonicalize(d *Declaration, m sigMatch, st AmbientState, opts Options) error {
	if m.owner != "" {
		return unexpectedOwner(d, m)
	}
	name := strings.TrimPrefix(m.name, "$")
	if strings.HasPrefix(name, NS) {
		d.FullyQualified = true
		d.Name = name[1:]
	} else {
		d.Name = qualify(st.Namespace, name)
	}
	d.Namespace, d.ShortName = splitPath(d.Name)
	if !st.InClassBody && opts.AddModuleNames && d.Namespace != "" {
		d.Prefix = d.Namespace + NS
	}
	return nil
}

// classLike covers classes, interfaces, traits, enums and exceptions.
type classLike struct{ kind Kind }

func (h classLike) SignaturePrefix(*Declaration) string { return string(h.kind) + " " }
func (classLike) NeedsArglist() bool                    { return false }

func (h classLike) IndexText(d *Declaration, _ Options) string {
	if h.kind == KindException {
		return d.ShortName
	}
	if d.Namespace == "" {
		return fmt.Sprintf("%s (%s)", d.ShortName, h.kind)
	}
	return fmt.Sprintf("%s (%s in %s)", d.ShortName, h.kind, d.Namespace)
}

func (h classLike) canonicalize(d *Declaration, m sigMatch, st AmbientState, opts Options) error {
	return namespaceLevel{h.kind}.canonicalize(d, m, st, opts)
}

// classMember covers methods, properties, enum cases and class constants.
type classMember struct{ kind Kind }

func (h classMember) SignaturePrefix(*Declaration) string {
	switch h.kind {
	case KindAttr:
		return "property "
	case KindStaticMethod:
		return "static "
	case KindCase:
		return "case "
	case KindConst:
		return "constant "
	}
	return ""
}

func (h classMember) NeedsArglist() bool {
	return h.kind == KindMethod || h.kind == KindStaticMethod
}

func (h classMember) IndexText(d *Declaration, opts Options) string {
	owner := d.Owner
	if !opts.AddModuleNames {
		_, owner = splitPath(owner)
	}
	switch h.kind {
	case KindMethod, KindStaticMethod:
		return fmt.Sprintf("%s%s (%s method)", d.ShortName, parens(opts), owner)
	case KindAttr:
		return fmt.Sprintf("%s (%s property)", d.ShortName, owner)
	case KindCase:
		return fmt.Sprintf("%s (%s enum case)", d.ShortName, owner)
	case KindConst:
		_, short := splitPath(d.Owner)
		return fmt.Sprintf("%s::%s (class constant)", short, d.ShortName)
	}
	return ""
}

func (h classMember) canonicalize(d *Declaration, m sigMatch, st AmbientState, opts Options) error {
	name := strings.TrimPrefix(m.name, "$")
	if strings.Contains(name, NS) {
		return newError(InvalidSignature, d.Raw, "member name %q must not be qualified", name)
	}

	owner := strings.TrimSuffix(m.owner, "::")
	switch {
	case owner == "":
		if st.EnclosingType == "" {
			return newError(MissingEnclosingType, d.Raw, "%s requires an enclosing type", h.kind.Label())
		}
		d.Owner = st.EnclosingType
	case strings.HasPrefix(owner, NS):
		d.Owner = owner[1:]
		d.FullyQualified = true
	default:
		d.Owner = qualify(st.Namespace, owner)
	}

	sep := h.kind.Separator()
	d.ShortName = name
	d.Name = d.Owner + sep + name
	d.Namespace, _ = splitPath(d.Owner)
	if !st.InClassBody {
		shown := d.Owner
		if !opts.AddModuleNames {
			_, shown = splitPath(d.Owner)
		}
		d.Prefix = shown + sep
	}
	return nil
}

// constHandler decides per declaration whether a constant is a class
// constant or a free one.
type constHandler struct{}

func (constHandler) member(m sigMatch, st AmbientState) bool {
	return m.owner != "" || st.EnclosingType != "" && !strings.HasPrefix(m.name, NS)
}

func (constHandler) SignaturePrefix(*Declaration) string { return "constant " }
func (constHandler) NeedsArglist() bool                  { return false }

func (constHandler) IndexText(d *Declaration, opts Options) string {
	if d.Member() {
		return classMember{KindConst}.IndexText(d, opts)
	}
	return namespaceLevel{KindConst}.IndexText(d, opts)
}

func (h constHandler) canonicalize(d *Declaration, m sigMatch, st AmbientState, opts Options) error {
	if h.member(m, st) {
		return classMember{KindConst}.canonicalize(d, m, st, opts)
	}
	return namespaceLevel{KindConst}.canonicalize(d, m, st, opts)
}
