package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexTables() *Tables {
	t := NewTables()
	t.RegisterNamespace("App", Namespace{DocName: "app", Synopsis: "Application"})
	t.RegisterNamespace(`App\Http`, Namespace{DocName: "http"})
	t.RegisterNamespace("Legacy", Namespace{DocName: "legacy", Deprecated: true})
	t.RegisterNamespace(`Zed\Util`, Namespace{DocName: "zed"})
	return t
}

func TestBuildNamespaceIndex(t *testing.T) {
	t.Parallel()
	idx := BuildNamespaceIndex(indexTables(), nil, nil)

	require.Len(t, idx.Groups, 3)
	assert.False(t, idx.Collapse)

	a := idx.Groups[0]
	assert.Equal(t, "a", a.Letter)
	assert.Equal(t, []IndexEntry{
		{Name: "App", Subtype: 1, DocName: "app", Anchor: "namespace-App", Synopsis: "Application"},
		{Name: `App\Http`, Subtype: 2, DocName: "http", Anchor: `namespace-App\Http`},
	}, a.Entries)

	l := idx.Groups[1]
	assert.Equal(t, "l", l.Letter)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, "Deprecated", l.Entries[0].Qualifier)
	assert.Equal(t, 0, l.Entries[0].Subtype)

	z := idx.Groups[2]
	assert.Equal(t, "z", z.Letter)
	assert.Equal(t, []IndexEntry{
		{Name: "Zed", Subtype: 1},
		{Name: `Zed\Util`, Subtype: 2, DocName: "zed", Anchor: `namespace-Zed\Util`},
	}, z.Entries)
}

func TestBuildNamespaceIndex_CommonPrefix(t *testing.T) {
	t.Parallel()
	idx := BuildNamespaceIndex(indexTables(), []string{`App\`}, nil)

	letters := make([]string, 0, len(idx.Groups))
	for _, g := range idx.Groups {
		letters = append(letters, g.Letter)
	}
	assert.Equal(t, []string{"a", "h", "l", "z"}, letters)

	h := idx.Groups[1]
	require.Len(t, h.Entries, 1)
	assert.Equal(t, `App\Http`, h.Entries[0].Name)
	assert.Equal(t, 0, h.Entries[0].Subtype)
}

func TestBuildNamespaceIndex_Collapse(t *testing.T) {
	t.Parallel()
	tables := NewTables()
	tables.RegisterNamespace("A", Namespace{DocName: "a"})
	tables.RegisterNamespace("B", Namespace{DocName: "b"})
	assert.True(t, BuildNamespaceIndex(tables, nil, nil).Collapse)
}

func TestBuildNamespaceIndex_FiltersDocuments(t *testing.T) {
	t.Parallel()
	idx := BuildNamespaceIndex(indexTables(), nil, []string{"legacy"})
	require.Len(t, idx.Groups, 1)
	assert.Equal(t, "Legacy", idx.Groups[0].Entries[0].Name)
}
