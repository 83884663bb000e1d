package extract

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/phpdomain/internal/docs"
	"github.com/jcdickinson/phpdomain/internal/logging"
	dom "github.com/jcdickinson/phpdomain/internal/php"
)

const clientPHP = `<?php

namespace App\Http;

/**
 * Sends requests.
 *
 * @see https://example.com
 */
final class Client implements ClientInterface
{
    public const TIMEOUT = 30;
    private const SECRET = 'x';

    protected ?string $baseUri = null;

    /** Sends a request. */
    public function send(Request $request, array $options = []): Response
    {
        return new Response();
    }

    public static function create(
        string $baseUri,
    ): self {
        return new self();
    }

    private function hidden() {}
}

interface ClientInterface
{
    public function send(Request $request, array $options = []): Response;
}

enum Method: string
{
    case Get = 'GET';
    case Post = 'POST';
}

function helper(int $n): int
{
    return $n;
}
`

func extractClient(t *testing.T, opts Options) *File {
	t.Helper()
	f, err := New(opts).Source(context.Background(), "src/Http/Client.php", []byte(clientPHP))
	require.NoError(t, err)
	return f
}

func TestSource_Declarations(t *testing.T) {
	f := extractClient(t, Options{})

	require.Len(t, f.Namespaces, 1)
	ns := f.Namespaces[0]
	assert.Equal(t, `App\Http`, ns.Name)
	require.Len(t, ns.Decls, 4)

	client := ns.Decls[0]
	assert.Equal(t, dom.KindClass, client.Kind)
	assert.Equal(t, "final Client", client.Signature)
	assert.Equal(t, "Sends requests.", client.Summary)
	assert.Equal(t, 10, client.Line)

	var sigs []string
	for _, m := range client.Members {
		sigs = append(sigs, string(m.Kind)+" "+m.Signature)
	}
	assert.Equal(t, []string{
		"const public TIMEOUT",
		"attr protected $baseUri: ?string",
		"method public send(Request $request, array $options = []): Response",
		"method public static create(string $baseUri): self",
	}, sigs)
	assert.Equal(t, "Sends a request.", client.Members[2].Summary)

	assert.Equal(t, dom.KindInterface, ns.Decls[1].Kind)
	assert.Len(t, ns.Decls[1].Members, 1)

	enum := ns.Decls[2]
	assert.Equal(t, "Method: string", enum.Signature)
	require.Len(t, enum.Members, 2)
	assert.Equal(t, "Get: 'GET'", enum.Members[0].Signature)

	assert.Equal(t, dom.KindFunction, ns.Decls[3].Kind)
	assert.Equal(t, "helper(int $n): int", ns.Decls[3].Signature)
}

func TestSource_Private(t *testing.T) {
	f := extractClient(t, Options{Private: true})
	client := f.Namespaces[0].Decls[0]
	assert.Len(t, client.Members, 6)
}

func TestSource_BracedNamespaces(t *testing.T) {
	src := `<?php
namespace One { class A {} }
namespace Two { function b() {} }
namespace { const VERSION = '1'; }
`
	f, err := New(Options{}).Source(context.Background(), "multi.php", []byte(src))
	require.NoError(t, err)
	require.Len(t, f.Namespaces, 3)
	assert.Equal(t, "One", f.Namespaces[0].Name)
	assert.Equal(t, "Two", f.Namespaces[1].Name)
	assert.Equal(t, "", f.Namespaces[2].Name)
	assert.Equal(t, "VERSION", f.Namespaces[2].Decls[0].Signature)

	rst := f.RST()
	assert.Contains(t, rst, ".. php:currentnamespace:: Two\n")
	assert.Contains(t, rst, ".. php:currentnamespace:: None\n\n.. php:const:: VERSION\n")
}

func TestSource_NoDeclarations(t *testing.T) {
	f, err := New(Options{}).Source(context.Background(), "index.php", []byte("<?php\necho 'hi';\n"))
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

// Stubs must read back without warnings and declare what was scanned.
func TestRST_RoundTrip(t *testing.T) {
	f := extractClient(t, Options{})
	rst := f.RST()
	assert.Contains(t, rst, "   .. php:method:: public send(Request $request, array $options = []): Response\n\n      Sends a request.\n")

	counter := logging.NewCounter(slog.NewTextHandler(io.Discard, nil))
	log := slog.New(counter)
	walker := docs.NewWalker(dom.New(dom.DefaultOptions(), log), "php", log)
	tree := walker.Walk(docs.ParseRST("api/client", []byte(rst)))

	assert.Zero(t, counter.Warnings())
	for _, name := range []string{
		`App\Http\Client`,
		`App\Http\Client::TIMEOUT`,
		`App\Http\Client::$baseUri`,
		`App\Http\Client::send`,
		`App\Http\Client::create`,
		`App\Http\ClientInterface::send`,
		`App\Http\Method::Get`,
		`App\Http\helper`,
	} {
		assert.Contains(t, tree.Tables.Objects, name)
	}
	assert.Empty(t, tree.Tables.Namespaces)
}

func TestTree_WritesStubs(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "Http")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Client.php"), []byte(clientPHP), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bootstrap.php"), []byte("<?php\nrequire 'x.php';\n"), 0644))

	files, err := New(Options{}).Tree(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/Http/Client.php", files[0].Path)

	out := t.TempDir()
	require.NoError(t, WriteTree(out, files))
	data, err := os.ReadFile(filepath.Join(out, "src", "Http", "Client.rst"))
	require.NoError(t, err)
	assert.Equal(t, files[0].RST(), string(data))
}
