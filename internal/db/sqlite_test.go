package db

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "out", "objects.db"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func widgetDoc() DocumentData {
	return DocumentData{
		Document: Document{DocName: "api/widget", Path: "api/widget.rst", Format: "rst", Title: "Widgets", ContentHash: "h1"},
		Objects: []Object{
			{Name: `App\Widget`, Kind: "class", Anchor: `App\Widget`, Signature: `class App\Widget`, IndexText: "Widget (class in App)", Line: 7},
			{Name: `App\Widget::render`, Kind: "method", Anchor: `App\Widget::render`, Signature: "render($mode)", Line: 11},
		},
		Namespaces: []Namespace{{Name: "App", Synopsis: "Application code"}},
		Refs: []Ref{
			{Line: 20, Role: "meth", Target: "render", Resolved: `App\Widget::render`},
			{Line: 24, Role: "func", Target: "helper"},
		},
	}
}

func TestSync_InsertAndQuery(t *testing.T) {
	db := testDB(t)
	if err := db.Sync(nil, []DocumentData{widgetDoc()}); err != nil {
		t.Fatal(err)
	}

	obj, err := db.GetObject(`App\Widget::render`)
	if err != nil {
		t.Fatal(err)
	}
	if obj == nil {
		t.Fatal("object not found")
	}
	if obj.DocName != "api/widget" || obj.Line != 11 || obj.Kind != "method" {
		t.Errorf("unexpected object %+v", obj)
	}

	missing, err := db.GetObject("Nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing object, got %+v", missing)
	}

	nss, err := db.ListNamespaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(nss) != 1 || nss[0].DocName != "api/widget" || nss[0].Synopsis != "Application code" {
		t.Errorf("namespaces = %+v", nss)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Documents: 1, Objects: 2, Namespaces: 1, Refs: 2, Unresolved: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestSync_ReplacesDocument(t *testing.T) {
	db := testDB(t)
	if err := db.Sync(nil, []DocumentData{widgetDoc()}); err != nil {
		t.Fatal(err)
	}

	edited := widgetDoc()
	edited.Document.ContentHash = "h2"
	edited.Objects = edited.Objects[:1]
	if err := db.Sync(nil, []DocumentData{edited}); err != nil {
		t.Fatal(err)
	}

	objs, err := db.ListObjects(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || objs[0].Name != `App\Widget` {
		t.Errorf("objects after edit = %+v", objs)
	}

	docs, err := db.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ContentHash != "h2" {
		t.Errorf("documents = %+v", docs)
	}
}

func TestSync_RemovedAndTakenOver(t *testing.T) {
	db := testDB(t)
	other := DocumentData{
		Document: Document{DocName: "other", Path: "other.md", Format: "md", ContentHash: "h3"},
		Objects:  []Object{{Name: `App\Widget`, Kind: "class", Anchor: `App\Widget`}},
	}
	if err := db.Sync(nil, []DocumentData{widgetDoc(), other}); err != nil {
		t.Fatal(err)
	}

	obj, err := db.GetObject(`App\Widget`)
	if err != nil {
		t.Fatal(err)
	}
	if obj.DocName != "other" {
		t.Errorf("last registration should win, got %s", obj.DocName)
	}

	if err := db.Sync([]string{"api/widget"}, nil); err != nil {
		t.Fatal(err)
	}
	objs, err := db.ListObjects(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || objs[0].DocName != "other" {
		t.Errorf("objects after removal = %+v", objs)
	}
	nss, err := db.ListNamespaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(nss) != 0 {
		t.Errorf("namespaces of removed document survived: %+v", nss)
	}
}

func TestListObjects_Filters(t *testing.T) {
	db := testDB(t)
	if err := db.Sync(nil, []DocumentData{widgetDoc()}); err != nil {
		t.Fatal(err)
	}

	t.Run("kind", func(t *testing.T) {
		objs, err := db.ListObjects([]string{"method"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(objs) != 1 || objs[0].Name != `App\Widget::render` {
			t.Errorf("got %+v", objs)
		}
	})

	t.Run("document", func(t *testing.T) {
		objs, err := db.ListObjects(nil, []string{"elsewhere"})
		if err != nil {
			t.Fatal(err)
		}
		if len(objs) != 0 {
			t.Errorf("got %+v", objs)
		}
	})
}

func TestMatchObjects(t *testing.T) {
	db := testDB(t)
	if err := db.Sync(nil, []DocumentData{widgetDoc()}); err != nil {
		t.Fatal(err)
	}

	objs, err := db.MatchObjects("RENDER", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 {
		t.Errorf("case-insensitive match failed: %+v", objs)
	}

	objs, err = db.MatchObjects("_", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 0 {
		t.Errorf("underscore must match literally: %+v", objs)
	}
}

func TestRefs(t *testing.T) {
	db := testDB(t)
	if err := db.Sync(nil, []DocumentData{widgetDoc()}); err != nil {
		t.Fatal(err)
	}

	unresolved, err := db.UnresolvedRefs()
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 1 || unresolved[0].Target != "helper" {
		t.Errorf("unresolved = %+v", unresolved)
	}

	if err := db.SetRefs("api/widget", []Ref{{Line: 24, Role: "func", Target: "helper", Resolved: "helper"}}); err != nil {
		t.Fatal(err)
	}
	to, err := db.RefsTo("helper")
	if err != nil {
		t.Fatal(err)
	}
	if len(to) != 1 || to[0].Line != 24 {
		t.Errorf("refs to helper = %+v", to)
	}
	unresolved, err = db.UnresolvedRefs()
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 0 {
		t.Errorf("unresolved after SetRefs = %+v", unresolved)
	}
}
