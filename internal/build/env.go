package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/jcdickinson/phpdomain/internal/discover"
	"github.com/jcdickinson/phpdomain/internal/php"
)

// envVersion changes whenever the saved layout or the doctree shape does.
const envVersion = 1

// DocState is what the environment remembers about one source.
type DocState struct {
	Path   string          `json:"path"`
	Format discover.Format `json:"format"`
	Title  string          `json:"title,omitempty"`
	// Hash is the content hash of the source, Key the store key of its
	// doctree.
	Hash string `json:"hash"`
	Key  string `json:"key"`
}

// Environment is the persisted state of the last build: the merged tables
// and enough per-document data to decide what needs re-reading.
type Environment struct {
	Version       int                 `json:"version"`
	Options       php.Options         `json:"options"`
	PrimaryDomain string              `json:"primary_domain"`
	Docs          map[string]DocState `json:"docs"`
	Tables        *php.Tables         `json:"tables"`
}

func newEnvironment(opts php.Options, primary string) *Environment {
	return &Environment{
		Version:       envVersion,
		Options:       opts,
		PrimaryDomain: primary,
		Docs:          make(map[string]DocState),
		Tables:        php.NewTables(),
	}
}

// compatible reports whether env was produced with the same settings, so
// its documents may be reused.
func (env *Environment) compatible(opts php.Options, primary string) bool {
	if env.Version != envVersion || env.PrimaryDomain != primary || env.Tables == nil {
		return false
	}
	a, errA := json.Marshal(env.Options)
	b, errB := json.Marshal(opts)
	return errA == nil && errB == nil && string(a) == string(b)
}

// SaveEnvironment compresses and writes env to path.
func SaveEnvironment(path string, env *Environment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating environment file: %w", err)
	}
	defer f.Close()

	w, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		w.Close()
		return fmt.Errorf("writing environment: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing environment file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadEnvironment reads an environment written by SaveEnvironment.
func LoadEnvironment(path string) (*Environment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening environment file: %w", err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	var env Environment
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}
	if env.Docs == nil {
		env.Docs = make(map[string]DocState)
	}
	return &env, nil
}
