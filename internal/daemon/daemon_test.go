package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

const widgetRST = `Widgets
=======

.. php:namespace:: App
   :synopsis: Application code

.. php:class:: Widget

   .. php:method:: render($mode)

   .. php:attr:: $name

.. php:function:: helper()

Uses :php:class:` + "`Widget`" + `.
`

func newService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.rst"), []byte(widgetRST), 0644))

	cfg, err := config.Load(root)
	require.NoError(t, err)
	svc := NewService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { svc.Close() })
	return svc
}

// startServer serves svc on a socket in a short temp dir and returns a
// client for it.
func startServer(t *testing.T, svc *Service) *Client {
	t.Helper()
	dir, err := os.MkdirTemp("", "phpd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	srv := NewServer(svc, filepath.Join(dir, "d.sock"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv.exit = func() {}
	go srv.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	client := NewClient(srv.socketPath)
	require.Eventually(t, client.IsAvailable, 5*time.Second, 20*time.Millisecond)
	return client
}

func TestService_ResolveBuildsOnDemand(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	resp, err := svc.Resolve(ctx, rpc.ResolveRequest{Role: "meth", Target: "render", Namespace: "App", EnclosingType: `App\Widget`})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, `App\Widget::render`, resp.Name)
	assert.Equal(t, "widget", resp.DocName)
	assert.Equal(t, "phpdoc://App%5CWidget::render", resp.URI)

	resp, err = svc.Resolve(ctx, rpc.ResolveRequest{Target: `App\Widget::$name`})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, "attr", resp.Role)

	resp, err = svc.Resolve(ctx, rpc.ResolveRequest{Role: "class", Target: "Missing"})
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.NotEmpty(t, resp.Message)
}

func TestService_Parse(t *testing.T) {
	svc := newService(t)

	resp := svc.Parse(rpc.ParseRequest{Kind: "method", Signature: "render($mode)", Namespace: "App", EnclosingType: `App\Widget`, InClassBody: true})
	require.Empty(t, resp.Error)
	assert.Equal(t, `App\Widget::render`, resp.Declaration.Name)
	assert.NotEmpty(t, resp.Text)

	resp = svc.Parse(rpc.ParseRequest{Kind: "method", Signature: "render()"})
	assert.Equal(t, "MISSING_ENCLOSING_TYPE", resp.Code)

	resp = svc.Parse(rpc.ParseRequest{Kind: "function", Signature: "foo() trailing"})
	assert.Equal(t, "INVALID_SIGNATURE", resp.Code)

	resp = svc.Parse(rpc.ParseRequest{Kind: "widget", Signature: "x"})
	assert.Equal(t, "INVALID_SIGNATURE", resp.Code)
}

func TestService_ConcurrentBuildsShareWork(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	results := make(chan *rpc.BuildResult, 4)
	for range 4 {
		go func() {
			res, err := svc.Build(ctx, false, nil)
			assert.NoError(t, err)
			results <- res
		}()
	}
	for range 4 {
		res := <-results
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Documents)
	}
}

func TestService_BuildOutlivesCancelledCaller(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var msgs []string
	_, err := svc.Build(ctx, false, func(msg string) {
		msgs = append(msgs, msg)
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	seen := len(msgs)
	require.NotZero(t, seen)

	require.Eventually(t, func() bool {
		svc.mu.RLock()
		defer svc.mu.RUnlock()
		return svc.env != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, msgs, seen, "no progress after the caller returned")

	res, err := svc.Build(context.Background(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
}

func TestService_CloseStopsQueries(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.Close())

	_, err := svc.Search(context.Background(), rpc.SearchRequest{Query: "Widget"})
	assert.ErrorIs(t, err, errClosed)

	svc = newService(t)
	_, err = svc.Search(context.Background(), rpc.SearchRequest{Query: "Widget"})
	require.NoError(t, err)
	require.NoError(t, svc.Close())
	_, err = svc.Search(context.Background(), rpc.SearchRequest{Query: "Widget"})
	assert.Error(t, err)
}

func TestService_CloseDuringQueries(t *testing.T) {
	svc := newService(t)
	_, err := svc.Build(context.Background(), false, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 20 {
			svc.Search(context.Background(), rpc.SearchRequest{Query: "Widget"})
		}
	}()
	assert.NoError(t, svc.Close())
	<-done
}

func TestServer_Endpoints(t *testing.T) {
	svc := newService(t)
	client := startServer(t, svc)
	ctx := context.Background()

	var progress []string
	res, err := client.Build(ctx, rpc.BuildRequest{}, func(msg string) { progress = append(progress, msg) })
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 4, res.Objects)
	assert.NotEmpty(t, progress)

	resolved, err := client.Resolve(ctx, rpc.ResolveRequest{Role: "func", Target: `App\helper`})
	require.NoError(t, err)
	assert.True(t, resolved.Found)

	parsed, err := client.Parse(ctx, rpc.ParseRequest{Kind: "class", Signature: "Widget", Namespace: "App"})
	require.NoError(t, err)
	assert.Equal(t, `App\Widget`, parsed.Declaration.Name)

	found, err := client.Search(ctx, rpc.SearchRequest{Query: "render"})
	require.NoError(t, err)
	require.NotEmpty(t, found.Results)
	assert.Equal(t, `App\Widget::render`, found.Results[0].Name)

	objs, err := client.Objects(ctx, rpc.ObjectsRequest{Kinds: []string{"class"}})
	require.NoError(t, err)
	require.Len(t, objs.Objects, 1)
	assert.Equal(t, `App\Widget`, objs.Objects[0].Name)

	obj, err := client.Object(ctx, `\App\Widget`)
	require.NoError(t, err)
	require.NotNil(t, obj.Object)
	require.Len(t, obj.References, 1)
	assert.Equal(t, "Widget", obj.References[0].Target)

	_, err = client.Object(ctx, `App\Nope`)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 404, serr.Code)

	ns, err := client.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, ns.Index.Groups, 1)
	assert.Equal(t, "App", ns.Index.Groups[0].Entries[0].Name)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Built)
	assert.Equal(t, 4, status.Objects)
	assert.Equal(t, svc.Config().Root, status.Root)

	cleared, err := client.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Removed)

	res, err = client.Build(ctx, rpc.BuildRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Read)
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	svc := newService(t)
	svc.cfg.Watch.DebounceMs = 20
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builds := make(chan *rpc.BuildResult, 8)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(res *rpc.BuildResult, err error) {
			assert.NoError(t, err)
			builds <- res
		})
	}()
	require.Eventually(t, func() bool { return svc.Status().Watching }, 5*time.Second, 10*time.Millisecond)

	root := svc.Config().Root
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.rst"), []byte(".. php:class:: App\\Extra\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0644))

	select {
	case res := <-builds:
		assert.Equal(t, 2, res.Documents)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	require.NoError(t, <-done)
}
