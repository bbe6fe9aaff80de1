package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// Documents implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Documents struct {
	data map[domain.DocumentKey]*domain.Document
	mu   sync.RWMutex
	now  func() time.Time
}

// NewDocuments creates an empty document store, optionally seeded with docs.
func NewDocuments(seed ...*domain.Document) *Documents {
	d := &Documents{
		data: make(map[domain.DocumentKey]*domain.Document),
		now:  time.Now,
	}
	for _, doc := range seed {
		d.data[doc.Metadata.Key()] = doc.Clone()
	}
	return d
}

// Save stores a copy of doc and stamps its timestamps.
func (d *Documents) Save(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	cp := doc.Clone()
	key := cp.Metadata.Key()

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	if prev, ok := d.data[key]; ok && !prev.Metadata.CreatedAt.IsZero() {
		cp.Metadata.CreatedAt = prev.Metadata.CreatedAt
	} else if cp.Metadata.CreatedAt.IsZero() {
		cp.Metadata.CreatedAt = now
	}
	cp.Metadata.UpdatedAt = now
	d.data[key] = cp
	return cp.Clone(), nil
}

// Load returns (nil, nil) when the document does not exist.
func (d *Documents) Load(ctx context.Context, name, folder string) (*domain.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data[domain.DocumentKey{Name: name, Folder: folder}].Clone(), nil
}

// Delete removes a document.
func (d *Documents) Delete(ctx context.Context, name, folder string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, domain.DocumentKey{Name: name, Folder: folder})
	return nil
}

// List returns the metadata of the documents in folder, sorted by name.
func (d *Documents) List(ctx context.Context, folder string) ([]domain.DocumentMetadata, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []domain.DocumentMetadata{}
	for key, doc := range d.data {
		if key.Folder == folder {
			out = append(out, doc.Metadata)
		}
	}
	slices.SortFunc(out, func(a, b domain.DocumentMetadata) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
