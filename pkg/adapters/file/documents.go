package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
)

// Documents implements ports.DocumentStore on the filesystem.
// A document lives at <BasePath>/<folder>/<name>.<ext>. JSON and YAML files are
// both readable; Save writes the configured format.
type Documents struct {
	BasePath string
	format   codec.Format
	mu       sync.Mutex
	now      func() time.Time
}

// DocumentsOption configures a Documents store.
type DocumentsOption func(*Documents)

// WithFormat selects the format written by Save. The default is JSON.
func WithFormat(f codec.Format) DocumentsOption {
	return func(d *Documents) {
		d.format = f
	}
}

// NewDocuments creates a document store rooted at basePath.
// If basePath is empty, it defaults to ".triage/workflows".
func NewDocuments(basePath string, opts ...DocumentsOption) *Documents {
	if basePath == "" {
		basePath = filepath.Join(".triage", "workflows")
	}
	d := &Documents{BasePath: basePath, format: codec.FormatJSON, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var extensions = map[codec.Format][]string{
	codec.FormatJSON: {".json"},
	codec.FormatYAML: {".yaml", ".yml"},
}

// Save writes doc atomically, replacing any file of another format for the same key.
func (d *Documents) Save(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc.Metadata.Name == "" {
		return nil, fmt.Errorf("document name cannot be empty")
	}
	dir, err := d.dir(doc.Metadata.Folder, doc.Metadata.Name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cp := doc.Clone()
	now := d.now().UTC()
	prev, path, err := d.read(dir, cp.Metadata.Name)
	if err != nil {
		return nil, err
	}
	switch {
	case prev != nil && !prev.Metadata.CreatedAt.IsZero():
		cp.Metadata.CreatedAt = prev.Metadata.CreatedAt
	case cp.Metadata.CreatedAt.IsZero():
		cp.Metadata.CreatedAt = now
	}
	cp.Metadata.UpdatedAt = now

	data, err := codec.Encode(cp, d.format)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(dir, cp.Metadata.Name+extensions[d.format][0])
	if err := writeAtomic(dest, data); err != nil {
		return nil, err
	}
	if path != "" && path != dest {
		_ = os.Remove(path)
	}
	return cp, nil
}

// Load returns (nil, nil) when no file exists for the key.
// A file that exists but does not decode is reported as an error.
func (d *Documents) Load(ctx context.Context, name, folder string) (*domain.Document, error) {
	dir, err := d.dir(folder, name)
	if err != nil {
		return nil, err
	}
	doc, _, err := d.read(dir, name)
	return doc, err
}

// Delete removes every file stored for the key.
func (d *Documents) Delete(ctx context.Context, name, folder string) error {
	dir, err := d.dir(folder, name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, exts := range extensions {
		for _, ext := range exts {
			if err := os.Remove(filepath.Join(dir, name+ext)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete document: %w", err)
			}
		}
	}
	return nil
}

// List returns the metadata of the documents directly inside folder, sorted by name.
func (d *Documents) List(ctx context.Context, folder string) ([]domain.DocumentMetadata, error) {
	dir, err := d.dir(folder, "")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.DocumentMetadata{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	seen := make(map[string]bool)
	out := []domain.DocumentMetadata{}
	for _, e := range entries {
		name, ok := documentName(e)
		if !ok || seen[name] {
			continue
		}
		doc, _, err := d.read(dir, name)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			seen[name] = true
			out = append(out, doc.Metadata)
		}
	}
	slices.SortFunc(out, func(a, b domain.DocumentMetadata) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// read finds the file for name, preferring the configured format.
func (d *Documents) read(dir, name string) (*domain.Document, string, error) {
	order := []codec.Format{codec.FormatJSON, codec.FormatYAML}
	if d.format == codec.FormatYAML {
		order[0], order[1] = order[1], order[0]
	}

	for _, f := range order {
		for _, ext := range extensions[f] {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, "", fmt.Errorf("failed to read document: %w", err)
			}
			doc, err := codec.Decode(data, f)
			if err != nil {
				return nil, "", fmt.Errorf("document %s: %w", path, err)
			}
			// The file name is authoritative for the key.
			doc.Metadata.Name = name
			doc.Metadata.Folder = d.folderOf(dir)
			return doc, path, nil
		}
	}
	return nil, "", nil
}

func (d *Documents) dir(folder, name string) (string, error) {
	if name != "" && (strings.ContainsAny(name, `/\`) || name == "." || name == "..") {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	if folder != "" && !filepath.IsLocal(filepath.FromSlash(folder)) {
		return "", fmt.Errorf("invalid folder %q", folder)
	}
	return filepath.Join(d.BasePath, filepath.FromSlash(folder)), nil
}

func (d *Documents) folderOf(dir string) string {
	rel, err := filepath.Rel(d.BasePath, dir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func documentName(e os.DirEntry) (string, bool) {
	if e.IsDir() || strings.HasPrefix(e.Name(), "tmp-") {
		return "", false
	}
	ext := filepath.Ext(e.Name())
	for _, exts := range extensions {
		if slices.Contains(exts, ext) {
			return strings.TrimSuffix(e.Name(), ext), true
		}
	}
	return "", false
}
