package build

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/db"
)

const widgetRST = `Widgets
=======

.. php:namespace:: App
   :synopsis: Application code

.. php:class:: Widget

   A widget.

   .. php:method:: render($mode)

      Renders via :php:meth:` + "`renderAll`" + `.

   .. php:method:: renderAll()

See :php:func:` + "`helper`" + `.
`

const guideMD = "# Guide\n\nUse [the widget](php:class:App\\\\Widget) and {php:meth}`App\\Widget::render`.\n"

type project struct {
	root string
	logs *bytes.Buffer
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	p := &project{root: t.TempDir(), logs: &bytes.Buffer{}}
	for name, content := range files {
		p.write(t, name, content)
	}
	return p
}

func (p *project) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (p *project) build(t *testing.T, force bool) *Result {
	t.Helper()
	cfg, err := config.Load(p.root)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(p.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	res, err := New(cfg, logger).Build(context.Background(), Options{Force: force})
	require.NoError(t, err)
	return res
}

func (p *project) output(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.root, "_build", filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_ResolvesAcrossDocuments(t *testing.T) {
	p := newProject(t, map[string]string{"api/widget.rst": widgetRST, "guide.md": guideMD})
	res := p.build(t, false)

	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 2, res.Read)
	assert.Equal(t, 3, res.Objects)
	assert.Equal(t, 1, res.Namespaces)
	assert.Equal(t, 4, res.Refs)
	assert.Equal(t, 1, res.Unresolved, "helper is not declared")
	assert.Zero(t, res.Warnings)

	guide := p.output(t, "guide.md")
	assert.Contains(t, guide, "[the widget](api/widget.md#app-widget)")
	assert.Contains(t, guide, "[`App\\Widget::render`](api/widget.md#app-widget-render)")

	widget := p.output(t, "api/widget.md")
	assert.Contains(t, widget, `"App\\Widget::render": "phpdoc://App%5CWidget::render"`)
	assert.Contains(t, widget, `<a id="app-widget-render"></a>`)
	assert.Contains(t, widget, "[`renderAll`](#app-widget-renderall)")
	assert.Contains(t, widget, "`helper`")
	assert.Contains(t, widget, "# Widgets")

	index := p.output(t, "namespaces.md")
	assert.Contains(t, index, "[`App`](api/widget.md#namespace-app): Application code")

	database, err := db.New(filepath.Join(p.root, "_build", "objects.db"))
	require.NoError(t, err)
	defer database.Close()
	obj, err := database.GetObject(`App\Widget::render`)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "api/widget", obj.DocName)
	assert.Contains(t, obj.Signature, "render($mode)")
	unresolved, err := database.UnresolvedRefs()
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "helper", unresolved[0].Target)
}

func TestBuild_Incremental(t *testing.T) {
	p := newProject(t, map[string]string{"api/widget.rst": widgetRST, "guide.md": guideMD})
	first := p.build(t, false)

	second := p.build(t, false)
	assert.Zero(t, second.Read)
	assert.Zero(t, second.Cached)
	assert.Equal(t, first.Env.Tables, second.Env.Tables)

	p.write(t, "guide.md", guideMD+"\n.. and one more line\n")
	third := p.build(t, false)
	assert.Equal(t, 1, third.Read)

	clean := p.build(t, true)
	assert.Equal(t, 2, clean.Documents)
	assert.Equal(t, clean.Env.Tables, third.Env.Tables)
}

func TestBuild_IncrementalDuplicatesMatchCleanBuild(t *testing.T) {
	p := newProject(t, map[string]string{
		"a.rst": ".. php:class:: Shared\n",
		"b.rst": ".. php:class:: Shared\n",
	})
	first := p.build(t, false)
	assert.Equal(t, int64(1), first.Warnings)
	assert.Equal(t, "b", first.Env.Tables.Objects["Shared"].DocName)

	// Re-reading the first declaration keeps the later document the winner.
	p.write(t, "a.rst", ".. php:class:: Shared\n\nEdited.\n")
	edited := p.build(t, false)
	assert.Equal(t, 1, edited.Read)
	assert.Equal(t, int64(1), edited.Warnings)
	assert.Equal(t, "b", edited.Env.Tables.Objects["Shared"].DocName)

	// Dropping the winner hands the name back to the untouched document.
	p.write(t, "b.rst", "Nothing here.\n")
	dropped := p.build(t, false)
	assert.Equal(t, 1, dropped.Read)
	assert.Zero(t, dropped.Warnings)
	assert.Equal(t, "a", dropped.Env.Tables.Objects["Shared"].DocName)

	database, err := db.New(filepath.Join(p.root, "_build", "objects.db"))
	require.NoError(t, err)
	obj, err := database.GetObject("Shared")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "a", obj.DocName)
	require.NoError(t, database.Close())

	clean := p.build(t, true)
	assert.Equal(t, clean.Env.Tables, dropped.Env.Tables)
}

func TestBuild_UnchangedDuplicatesStayQuiet(t *testing.T) {
	p := newProject(t, map[string]string{
		"a.rst": ".. php:class:: Shared\n",
		"b.rst": ".. php:class:: Shared\n",
		"c.rst": ".. php:class:: Other\n",
	})
	p.build(t, false)

	p.write(t, "c.rst", ".. php:class:: Other\n\nEdited.\n")
	res := p.build(t, false)
	assert.Equal(t, 1, res.Read)
	assert.Zero(t, res.Warnings)
	assert.Equal(t, "b", res.Env.Tables.Objects["Shared"].DocName)
}

func TestBuild_RevertedSourceComesFromCache(t *testing.T) {
	p := newProject(t, map[string]string{"api/widget.rst": widgetRST})
	p.build(t, false)

	p.write(t, "api/widget.rst", widgetRST+"\nMore.\n")
	assert.Equal(t, 1, p.build(t, false).Read)

	p.write(t, "api/widget.rst", widgetRST)
	res := p.build(t, false)
	assert.Zero(t, res.Read)
	assert.Equal(t, 1, res.Cached)
}

func TestBuild_DuplicateDeclarationWarns(t *testing.T) {
	p := newProject(t, map[string]string{
		"api/widget.rst": widgetRST,
		"zz.rst":         ".. php:class:: App\\Widget\n",
	})
	res := p.build(t, false)

	assert.Equal(t, int64(1), res.Warnings)
	assert.Equal(t, "zz", res.Env.Tables.Objects[`App\Widget`].DocName)
	assert.Contains(t, p.logs.String(), "duplicate object description of App\\\\Widget")
}

func TestBuild_RemovedDocument(t *testing.T) {
	p := newProject(t, map[string]string{"api/widget.rst": widgetRST, "guide.md": guideMD})
	p.build(t, false)

	require.NoError(t, os.Remove(filepath.Join(p.root, "api", "widget.rst")))
	res := p.build(t, false)

	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, res.Env.Tables.Objects)
	assert.Empty(t, res.Env.Tables.Namespaces)
	assert.Equal(t, 2, res.Unresolved)
	_, err := os.Stat(filepath.Join(p.root, "_build", "api", "widget.md"))
	assert.True(t, os.IsNotExist(err), "output of removed document survived")
	_, err = os.Stat(filepath.Join(p.root, "_build", "namespaces.md"))
	assert.True(t, os.IsNotExist(err), "empty namespace index survived")
}

func TestBuild_SettingsChangeRebuilds(t *testing.T) {
	p := newProject(t, map[string]string{"api/widget.rst": widgetRST})
	p.build(t, false)

	p.write(t, "phpdomain.toml", "add_module_names = false\n")
	res := p.build(t, false)
	assert.Equal(t, 1, res.Read)
}
