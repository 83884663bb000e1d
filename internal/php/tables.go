package php

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Object is a Symbol Table entry.
type Object struct {
	DocName string `json:"docname"`
	Kind    Kind   `json:"kind"`
}

// Namespace is a Namespace Table entry.
type Namespace struct {
	DocName    string `json:"docname"`
	Synopsis   string `json:"synopsis,omitempty"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

// Tables are the domain data of one build: every declared object and
// namespace keyed by canonical name. Tables are not safe for concurrent
// mutation; parallel readers each fill their own and Merge afterwards.
type Tables struct {
	Objects    map[string]Object    `json:"objects"`
	Namespaces map[string]Namespace `json:"namespaces"`
}

// NewTables returns empty tables.
func NewTables() *Tables {
	return &Tables{
		Objects:    make(map[string]Object),
		Namespaces: make(map[string]Namespace),
	}
}

// Register stores name -> (doc, kind). When name was already declared by a
// different document the entry is overwritten and the previous document is
// returned with Warned.
func (t *Tables) Register(name, doc string, kind Kind) (Outcome, string) {
	prev, exists := t.Objects[name]
	t.Objects[name] = Object{DocName: doc, Kind: kind}
	if exists && prev.DocName != doc {
		return Warned, prev.DocName
	}
	return OK, ""
}

// RegisterNamespace stores a namespace entry, replacing any previous one.
func (t *Tables) RegisterNamespace(path string, ns Namespace) {
	t.Namespaces[strings.TrimPrefix(path, NS)] = ns
}

// Lookup returns the object registered under a canonical name.
func (t *Tables) Lookup(name string) (Object, bool) {
	obj, ok := t.Objects[name]
	return obj, ok
}

// ClearDocument removes every entry contributed by doc.
func (t *Tables) ClearDocument(doc string) {
	maps.DeleteFunc(t.Objects, func(_ string, o Object) bool { return o.DocName == doc })
	maps.DeleteFunc(t.Namespaces, func(_ string, n Namespace) bool { return n.DocName == doc })
}

// Merge copies into t every entry of other whose document is in docs.
func (t *Tables) Merge(docs []string, other *Tables) {
	if other == nil {
		return
	}
	want := make(map[string]bool, len(docs))
	for _, d := range docs {
		want[d] = true
	}
	for name, o := range other.Objects {
		if want[o.DocName] {
			t.Objects[name] = o
		}
	}
	for name, n := range other.Namespaces {
		if want[n.DocName] {
			t.Namespaces[name] = n
		}
	}
}

// Clone returns a deep copy.
func (t *Tables) Clone() *Tables {
	return &Tables{
		Objects:    maps.Clone(t.Objects),
		Namespaces: maps.Clone(t.Namespaces),
	}
}

// Documents returns the sorted set of documents that contributed entries.
func (t *Tables) Documents() []string {
	seen := make(map[string]bool)
	for _, o := range t.Objects {
		seen[o.DocName] = true
	}
	for _, n := range t.Namespaces {
		seen[n.DocName] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Entry is one object of the inventory.
type Entry struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	DocName  string `json:"docname"`
	Anchor   string `json:"anchor"`
	Priority int    `json:"priority"`
}

// Entries lists namespaces (priority 0) followed by objects (priority 1),
// each group sorted by name.
func (t *Tables) Entries() []Entry {
	entries := make([]Entry, 0, len(t.Namespaces)+len(t.Objects))
	for _, name := range slices.Sorted(maps.Keys(t.Namespaces)) {
		entries = append(entries, Entry{
			Name:     name,
			Kind:     KindNamespace,
			DocName:  t.Namespaces[name].DocName,
			Anchor:   NamespaceAnchor(name),
			Priority: 0,
		})
	}
	for _, name := range slices.Sorted(maps.Keys(t.Objects)) {
		o := t.Objects[name]
		entries = append(entries, Entry{Name: name, Kind: o.Kind, DocName: o.DocName, Anchor: name, Priority: 1})
	}
	return entries
}

// NamespaceAnchor is the target id of a namespace declaration.
func NamespaceAnchor(ns string) string {
	return "namespace-" + ns
}

// Register records name -> (doc, kind) in t, logging a warning that names
// both documents when the name was already declared elsewhere.
func (dom *Domain) Register(t *Tables, name, doc string, kind Kind, line int) Outcome {
	outcome, prev := t.Register(name, doc, kind)
	if outcome == Warned {
		dom.logger.Warn(fmt.Sprintf("duplicate object description of %s, other instance in %s", name, prev),
			"code", DuplicateDeclaration, "doc", doc, "line", line)
	}
	return outcome
}
