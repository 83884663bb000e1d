package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/jcdickinson/phpdomain/internal/config"
)

// Dir returns the CAS directory path.
func Dir() string {
	return config.CASDir()
}

// path returns the sharded file path for a key: cas/<first2>/<rest>.json.zst
func path(key string) string {
	return filepath.Join(Dir(), key[:2], key[2:]+".json.zst")
}

// Key hashes the parts into a store key. Parts are separated so that
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Encode serializes v as zstd-compressed JSON.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte, v any) error {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	return nil
}

// Has reports whether an entry exists for key.
func Has(key string) bool {
	_, err := os.Stat(path(key))
	return err == nil
}

// Write stores v under key. If the entry already exists, this is a no-op.
func Write(key string, v any) error {
	p := path(key)
	if _, err := os.Stat(p); err == nil {
		return nil
	}

	data, err := Encode(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating CAS directory: %w", err)
	}

	// Renamed into place so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing CAS file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing CAS file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing CAS file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing CAS file: %w", err)
	}
	return nil
}

// Read loads the entry stored under key into v. A missing entry yields an
// error matching os.ErrNotExist.
func Read(key string, v any) error {
	data, err := os.ReadFile(path(key))
	if err != nil {
		return fmt.Errorf("reading CAS file %s: %w", key, err)
	}
	if err := Decode(data, v); err != nil {
		return fmt.Errorf("CAS file %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func Clear() (int, error) {
	n := 0
	err := filepath.WalkDir(Dir(), func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".zst" {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning CAS: %w", err)
	}
	if err := os.RemoveAll(Dir()); err != nil {
		return 0, fmt.Errorf("removing CAS: %w", err)
	}
	return n, nil
}
