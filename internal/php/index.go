package php

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// IndexEntry is one line of the namespace index. Subtype is 0 for a plain
// entry, 1 for an entry with sub-namespaces below it and 2 for a
// sub-namespace.
type IndexEntry struct {
	Name      string `json:"name"`
	Subtype   int    `json:"subtype"`
	DocName   string `json:"docname,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
	Qualifier string `json:"qualifier,omitempty"`
	Synopsis  string `json:"synopsis,omitempty"`
}

// IndexGroup holds the entries that share a first letter.
type IndexGroup struct {
	Letter  string       `json:"letter"`
	Entries []IndexEntry `json:"entries"`
}

// NamespaceIndex is the generated namespace index. Collapse suggests that
// sub-namespaces start folded.
type NamespaceIndex struct {
	Groups   []IndexGroup `json:"groups"`
	Collapse bool         `json:"collapse"`
}

// BuildNamespaceIndex lays out the namespaces of t. Prefixes listed in
// commonPrefixes are ignored when grouping. When docs is non-empty only
// namespaces declared in those documents are listed.
func BuildNamespaceIndex(t *Tables, commonPrefixes []string, docs []string) NamespaceIndex {
	ignores := slices.Clone(commonPrefixes)
	slices.SortStableFunc(ignores, func(a, b string) int { return cmp.Compare(len(b), len(a)) })

	names := slices.Collect(maps.Keys(t.Namespaces))
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a), strings.ToLower(b)), cmp.Compare(a, b))
	})

	content := make(map[string][]IndexEntry)
	prev := ""
	toplevels := 0
	for _, name := range names {
		entry := t.Namespaces[name]
		if len(docs) > 0 && !slices.Contains(docs, entry.DocName) {
			continue
		}

		ns, stripped := name, ""
		for _, ignore := range ignores {
			if strings.HasPrefix(ns, ignore) {
				ns, stripped = ns[len(ignore):], ignore
				break
			}
		}
		if ns == "" {
			ns, stripped = stripped, ""
		}

		r, _ := utf8.DecodeRuneInString(ns)
		letter := strings.ToLower(string(r))
		entries := content[letter]

		subtype := 0
		pkg, _, _ := strings.Cut(ns, NS)
		if pkg != ns {
			switch {
			case prev == pkg && len(entries) > 0:
				entries[len(entries)-1].Subtype = 1
			case !strings.HasPrefix(prev, pkg):
				entries = append(entries, IndexEntry{Name: stripped + pkg, Subtype: 1})
			}
			subtype = 2
		} else {
			toplevels++
		}

		var qualifier string
		if entry.Deprecated {
			qualifier = "Deprecated"
		}
		content[letter] = append(entries, IndexEntry{
			Name:      stripped + ns,
			Subtype:   subtype,
			DocName:   entry.DocName,
			Anchor:    NamespaceAnchor(stripped + ns),
			Qualifier: qualifier,
			Synopsis:  entry.Synopsis,
		})
		prev = ns
	}

	idx := NamespaceIndex{Collapse: len(names)-toplevels < toplevels}
	for _, letter := range slices.Sorted(maps.Keys(content)) {
		idx.Groups = append(idx.Groups, IndexGroup{Letter: letter, Entries: content[letter]})
	}
	return idx
}
