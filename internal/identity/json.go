package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/optix-bridge/optix-bridge/internal/errors"
)

const identityFilePermissions = 0o644

// JSONFile stores references as a flat JSON object of name → embedding, keeping key order.
type JSONFile struct {
	path string
}

// NewJSONFile returns a repository backed by path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the file path.
func (f *JSONFile) Path() string {
	return f.path
}

// LoadAll reads the mapping in file order.
func (f *JSONFile) LoadAll(_ context.Context) ([]Reference, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read identity file: %w", err)).
			Component("identity").
			Category(errors.CategoryFileIO).
			Context("path", f.path).
			Build()
	}

	refs, err := decodeOrdered(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to parse identity file %s: %w", f.path, err)).
			Component("identity").
			Category(errors.CategoryFileParsing).
			Context("path", f.path).
			Build()
	}
	return refs, nil
}

// decodeOrdered walks the top-level object token by token so the result keeps file order.
func decodeOrdered(r io.Reader) ([]Reference, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var refs []Reference
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected identity name, got %v", tok)
		}

		var embedding []float32
		if err := dec.Decode(&embedding); err != nil {
			return nil, fmt.Errorf("identity %q: %w", name, err)
		}
		if len(embedding) == 0 {
			return nil, fmt.Errorf("identity %q: empty embedding", name)
		}
		refs = append(refs, Reference{Name: name, Embedding: embedding})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after identity object")
	}

	return refs, nil
}

// SaveAll writes the mapping to a temporary file and renames it over the target.
func (f *JSONFile) SaveAll(_ context.Context, refs []Reference) error {
	data, err := encodeOrdered(refs)
	if err != nil {
		return errors.New(fmt.Errorf("failed to encode identities: %w", err)).
			Component("identity").
			Category(errors.CategoryFileParsing).
			Build()
	}

	if err := writeFileAtomic(f.path, data); err != nil {
		return errors.New(err).
			Component("identity").
			Category(errors.CategoryFileIO).
			Context("path", f.path).
			Build()
	}
	return nil
}

func encodeOrdered(refs []Reference) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ref := range refs {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(ref.Name)
		if err != nil {
			return nil, err
		}
		vec, err := json.Marshal(ref.Embedding)
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", ref.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(vec)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".identities-*.json")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Chmod(identityFilePermissions); err != nil {
		tempFile.Close()
		return fmt.Errorf("error setting file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}
