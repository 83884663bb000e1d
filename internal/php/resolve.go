package php

import (
	"fmt"
	"log/slog"
	"strings"
)

// reserved are PHP's built-in type names and pseudo-types. They are never
// reported when unresolved.
var reserved = map[string]bool{
	"array": true, "bool": true, "boolean": true, "callable": true,
	"false": true, "float": true, "int": true, "integer": true,
	"iterable": true, "mixed": true, "never": true, "null": true,
	"object": true, "parent": true, "resource": true, "self": true,
	"static": true, "string": true, "true": true, "void": true,
}

// IsReserved reports whether name is a reserved PHP type keyword.
func IsReserved(name string) bool {
	return reserved[strings.ToLower(strings.TrimPrefix(name, NS))]
}

// Query is a reference to resolve together with the ambient state at the
// point of reference.
type Query struct {
	Target        string `json:"target"`
	Kind          Kind   `json:"kind"`
	Namespace     string `json:"namespace,omitempty"`
	EnclosingType string `json:"enclosing_type,omitempty"`
	// SearchOrder 1 tries the most specific scope first.
	SearchOrder int `json:"search_order,omitempty"`

	DocName string `json:"docname,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewQuery builds a query for target under st.
func NewQuery(kind Kind, target string, st AmbientState) Query {
	return Query{Target: target, Kind: kind, Namespace: st.Namespace, EnclosingType: st.EnclosingType}
}

// Resolution is the outcome of a successful lookup.
type Resolution struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	DocName string `json:"docname"`
	Anchor  string `json:"anchor"`
	// Title is set for namespaces: the synopsis, marked when deprecated.
	Title string `json:"title,omitempty"`
	// Outcome is FallbackApplied when the match needed a global fallback.
	Outcome Outcome `json:"outcome"`
}

// Resolve finds the object a reference points at. On failure the error is
// an *Error with code UnresolvedReference (logged at info, or warning when
// nitpicky) or UnresolvedReservedKeyword (never logged).
func (dom *Domain) Resolve(t *Tables, q Query) (Resolution, error) {
	if res, ok := dom.lookup(t, q); ok {
		return res, nil
	}
	return Resolution{}, dom.notFound(q)
}

// ResolveAny tries every role in turn and returns the first match together
// with the role for the kind of object found.
func (dom *Domain) ResolveAny(t *Tables, q Query) (string, Resolution, error) {
	for _, role := range roleOrder {
		q.Kind = roles[role]
		if res, ok := dom.lookup(t, q); ok {
			return res.Kind.Role(), res, nil
		}
	}
	q.Kind = KindAny
	return "", Resolution{}, dom.notFound(q)
}

func (dom *Domain) refLogger(q Query) *slog.Logger {
	if q.DocName == "" {
		return dom.logger
	}
	return dom.logger.With("doc", q.DocName, "line", q.Line)
}

func (dom *Domain) lookup(t *Tables, q Query) (Resolution, bool) {
	target := strings.TrimSuffix(strings.TrimSpace(q.Target), "()")
	if target == "" {
		return Resolution{}, false
	}

	switch q.Kind {
	case KindNamespace:
		return lookupNamespace(t, target)
	case KindAny:
		if res, ok := lookupNamespace(t, target); ok {
			return res, true
		}
	case KindGlobal:
		q.Namespace, q.EnclosingType = "", ""
	}

	name, obj, outcome, ok := dom.findObject(t, q, target)
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Name: name, Kind: obj.Kind, DocName: obj.DocName, Anchor: name, Outcome: outcome}, true
}

func lookupNamespace(t *Tables, target string) (Resolution, bool) {
	ns := strings.TrimPrefix(target, NS)
	entry, ok := t.Namespaces[ns]
	if !ok {
		return Resolution{}, false
	}
	title := entry.Synopsis
	if entry.Deprecated {
		title += " (deprecated)"
	}
	return Resolution{
		Name:    ns,
		Kind:    KindNamespace,
		DocName: entry.DocName,
		Anchor:  NamespaceAnchor(ns),
		Title:   title,
	}, true
}

func (dom *Domain) findObject(t *Tables, q Query, target string) (string, Object, Outcome, bool) {
	log := dom.refLogger(q)

	if strings.HasPrefix(target, NS) {
		abs := target[1:]
		if obj, ok := t.Objects[abs]; ok {
			return abs, obj, OK, true
		}
		return dom.globalFallback(t, abs, log)
	}

	if q.Kind == KindGlobal {
		for _, cand := range []string{target, "$" + strings.TrimPrefix(target, "$")} {
			if obj, ok := t.Objects[cand]; ok {
				return cand, obj, OK, true
			}
		}
		return "", Object{}, OK, false
	}

	if strings.Contains(target, NS) {
		abs := qualify(q.Namespace, target)
		if obj, ok := t.Objects[abs]; ok {
			return abs, obj, OK, true
		}
		if obj, ok := t.Objects[target]; ok {
			log.Info(fmt.Sprintf("Target %s not found - did you mean to write %s?", abs, suggest(q.Namespace, target)))
			return target, obj, FallbackApplied, true
		}
		return dom.globalFallback(t, abs, log)
	}

	for _, cand := range candidates(q, target) {
		obj, ok := t.Objects[cand]
		if !ok {
			continue
		}
		if cand == target && q.Namespace != "" && !q.globalLookupAllowed(obj, target) {
			if _, shadowed := t.Objects[qualify(q.Namespace, target)]; !shadowed {
				log.Info(fmt.Sprintf("Target %s not found - did you mean to write %s?", qualify(q.Namespace, target), NS+target))
			}
		}
		return cand, obj, OK, true
	}
	return "", Object{}, OK, false
}

// globalLookupAllowed reports whether PHP itself would fall back from the
// current namespace to the global entry: only for unqualified functions and
// constants.
func (q Query) globalLookupAllowed(obj Object, target string) bool {
	return (obj.Kind == KindFunction || obj.Kind == KindConst) && !strings.Contains(target, "::")
}

func suggest(ns, target string) string {
	if ns != "" && strings.HasPrefix(target, ns+NS) {
		return target[len(ns)+1:]
	}
	return NS + target
}

// globalFallback resolves a qualified name whose last segment is a global
// function or constant, the way PHP falls back for unqualified built-ins.
func (dom *Domain) globalFallback(t *Tables, abs string, log *slog.Logger) (string, Object, Outcome, bool) {
	if strings.Contains(abs, "::") {
		return "", Object{}, OK, false
	}
	_, bare := splitPath(abs)
	if bare == abs {
		return "", Object{}, OK, false
	}
	obj, ok := t.Objects[bare]
	if !ok || obj.Kind != KindFunction && obj.Kind != KindConst {
		return "", Object{}, OK, false
	}
	log.Info(fmt.Sprintf("Target %s not found - did you mean to write %s?", abs, NS+bare))
	return bare, obj, FallbackApplied, true
}

// candidates lists the canonical names tried for an unqualified target, in
// order.
func candidates(q Query, target string) []string {
	ns, cls := q.Namespace, q.EnclosingType
	var inType, inNSType []string
	if cls != "" {
		inType = []string{cls + "::" + target, cls + "::$" + target}
		if ns != "" {
			inNSType = []string{ns + NS + cls + "::" + target, ns + NS + cls + "::$" + target}
		}
	}
	var inNS []string
	if ns != "" {
		inNS = []string{ns + NS + target}
	}

	var out []string
	if q.SearchOrder == 1 {
		out = append(out, inNSType...)
		out = append(out, inType...)
		out = append(out, inNS...)
		out = append(out, target)
	} else {
		out = append(out, target)
		out = append(out, inType...)
		out = append(out, inNS...)
		out = append(out, inNSType...)
	}
	if q.Kind.Callable() {
		out = append(out, "object::"+target)
	}
	return out
}

func (dom *Domain) notFound(q Query) error {
	target := strings.TrimSuffix(strings.TrimSpace(q.Target), "()")
	if IsReserved(target) {
		return newError(UnresolvedReservedKeyword, target, "reserved keyword")
	}
	log := dom.refLogger(q)
	msg := fmt.Sprintf("Target %s not found", target)
	if dom.opts.Nitpicky {
		log.Warn(msg, "code", UnresolvedReference, "kind", q.Kind)
	} else {
		log.Info(msg, "code", UnresolvedReference, "kind", q.Kind)
	}
	return newError(UnresolvedReference, target, "reference target not found")
}
