package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetRST = `Widgets
=======

.. php:namespace:: App
   :synopsis: Application code

.. php:class:: Widget

   A widget. See :php:meth:` + "`render`" + `.

   .. php:method:: render($mode[, $strict])
                   renderAll()
      :noindexentry:

      Renders it.

.. comment that is skipped
   with a second line

Example::

   :php:class:` + "`NotAReference`" + `

Back to :php:func:` + "`helper`" + `.
`

func TestParseRST(t *testing.T) {
	t.Parallel()
	doc := ParseRST("api/widget", []byte(widgetRST))

	assert.Equal(t, "Widgets", doc.Title)
	require.Len(t, doc.Blocks, 5)

	assert.Equal(t, HeadingBlock, doc.Blocks[0].Type)
	assert.Equal(t, 1, doc.Blocks[0].Level)

	ns := doc.Blocks[1]
	assert.Equal(t, DirectiveBlock, ns.Type)
	assert.Equal(t, "php:namespace", ns.Name)
	assert.Equal(t, []string{"App"}, ns.Args)
	assert.Equal(t, map[string]string{"synopsis": "Application code"}, ns.Options)
	assert.Equal(t, 4, ns.Line)

	class := doc.Blocks[2]
	assert.Equal(t, "php:class", class.Name)
	assert.Equal(t, 7, class.Line)
	require.Len(t, class.Content, 2)
	assert.Equal(t, "A widget. See :php:meth:`render`.", class.Content[0].Text)
	assert.Equal(t, []RoleSpan{{Raw: ":php:meth:`render`", Domain: "php", Role: "meth", Text: "render"}}, class.Content[0].Roles)
	assert.Equal(t, 9, class.Content[0].Line)

	method := class.Content[1]
	assert.Equal(t, "php:method", method.Name)
	assert.Equal(t, []string{"render($mode[, $strict])", "renderAll()"}, method.Args)
	assert.Equal(t, map[string]string{"noindexentry": ""}, method.Options)
	assert.Equal(t, 11, method.Line)
	require.Len(t, method.Content, 1)
	assert.Equal(t, "Renders it.", method.Content[0].Text)
	assert.Equal(t, 15, method.Content[0].Line)

	assert.Equal(t, "Example:", doc.Blocks[3].Text)
	assert.Equal(t, "Back to :php:func:`helper`.", doc.Blocks[4].Text)
	assert.Len(t, doc.Blocks[4].Roles, 1)
	assert.Equal(t, 24, doc.Blocks[4].Line)
}

func TestParseRST_Headings(t *testing.T) {
	t.Parallel()
	src := "=====\nTitle\n=====\n\nSection\n-------\n\nSub\n~~~\n\nOther\n-----\n"
	doc := ParseRST("index", []byte(src))
	require.Len(t, doc.Blocks, 4)
	assert.Equal(t, "Title", doc.Title)

	levels := []int{}
	for _, b := range doc.Blocks {
		levels = append(levels, b.Level)
	}
	assert.Equal(t, []int{1, 2, 3, 2}, levels)
}

func TestScanRoles(t *testing.T) {
	t.Parallel()
	spans := ScanRoles("Use :meth:`~App\\\\Widget::render` or :php:class:`the widget <App\\Widget>`.")
	require.Len(t, spans, 2)
	assert.Equal(t, RoleSpan{Raw: ":meth:`~App\\\\Widget::render`", Role: "meth", Text: `~App\Widget::render`}, spans[0])
	assert.Equal(t, "php", spans[1].Domain)
	assert.Equal(t, `the widget <App\Widget>`, spans[1].Text)
}
