package php

import (
	"regexp"
	"strings"
)

// ident is a PHP label: it never starts with a digit.
const ident = `[\p{L}_][\p{L}\p{N}_]*`

var sigRe = regexp.MustCompile(
	`^(public |protected |private )?` + // visibility
		`(final |abstract |static )?` + // modifier
		`((?:\\?` + ident + `)+::)?` + // owning type
		`(\$?(?:\\?` + ident + `)+)\s*` + // name
		`(?:\((.*)\)(?:\s*->\s*(.*))?)?` + // arguments and return annotation
		`(?:\s*:\s*(.*))?$`, // backing type, case value or return type
)

type sigMatch struct {
	visibility string
	modifier   string
	owner      string
	name       string
	arglist    string
	hasArglist bool
	retann     string
	annotation string
}

func matchSignature(sig string) (sigMatch, bool) {
	idx := sigRe.FindStringSubmatchIndex(sig)
	if idx == nil {
		return sigMatch{}, false
	}
	group := func(i int) string {
		if idx[2*i] < 0 {
			return ""
		}
		return sig[idx[2*i]:idx[2*i+1]]
	}
	return sigMatch{
		visibility: strings.TrimSpace(group(1)),
		modifier:   strings.TrimSpace(group(2)),
		owner:      group(3),
		name:       group(4),
		arglist:    group(5),
		hasArglist: idx[10] >= 0,
		retann:     strings.TrimSpace(group(6)),
		annotation: strings.TrimSpace(group(7)),
	}, true
}

// Declaration is a parsed signature.
type Declaration struct {
	Kind       Kind    `json:"kind"`
	Raw        string  `json:"raw"`
	Visibility string  `json:"visibility,omitempty"`
	Modifier   string  `json:"modifier,omitempty"`
	Owner      string  `json:"owner,omitempty"`
	ShortName  string  `json:"short_name"`
	Params     ArgList `json:"params"`
	HasArglist bool    `json:"has_arglist,omitempty"`
	ReturnType string  `json:"return_type,omitempty"`
	// Annotation is the enum backing type or the case value.
	Annotation string `json:"annotation,omitempty"`

	// Name is the canonical name, without a leading NS.
	Name string `json:"name"`
	// Namespace is the namespace the entity lives in.
	Namespace string `json:"namespace,omitempty"`
	// Prefix is the display text rendered before ShortName.
	Prefix         string `json:"prefix,omitempty"`
	FullyQualified bool   `json:"fully_qualified,omitempty"`
}

// Member reports whether the declaration belongs to an owning type.
func (d *Declaration) Member() bool {
	return d.Owner != ""
}

// ParseSignature parses one signature line declared with kind under the
// ambient state st. Failures are *Error values with code InvalidSignature
// or MissingEnclosingType; they only affect this declaration.
func (dom *Domain) ParseSignature(kind Kind, sig string, st AmbientState, opts DirectiveOptions) (*Declaration, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, newError(InvalidSignature, sig, "unknown declaration kind %q", kind)
	}

	sig = strings.TrimSpace(sig)
	m, ok := matchSignature(sig)
	if !ok {
		return nil, newError(InvalidSignature, sig, "signature does not match the %s grammar", kind)
	}
	if kind != KindGlobal && opts.Namespace != "" {
		st.Namespace = strings.TrimPrefix(opts.Namespace, NS)
	}

	d := &Declaration{
		Kind:       kind,
		Raw:        sig,
		Visibility: m.visibility,
		Modifier:   m.modifier,
		ReturnType: m.retann,
		Annotation: m.annotation,
	}
	if err := h.canonicalize(d, m, st, dom.opts); err != nil {
		return nil, err
	}

	if m.hasArglist && m.arglist != "" {
		d.Params = SplitArgs(m.arglist)
	}
	d.HasArglist = m.hasArglist || h.NeedsArglist()
	if kind.Callable() && d.ReturnType == "" {
		d.ReturnType, d.Annotation = d.Annotation, ""
	}
	return d, nil
}

// qualify joins a namespace and a name.
func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + NS + name
}

// splitPath splits a canonical namespace-level name into its namespace and
// short name.
func splitPath(name string) (string, string) {
	i := strings.LastIndex(name, NS)
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
