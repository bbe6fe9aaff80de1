package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Documents implements ports.DocumentStore using one Redis hash per folder.
// Each field is a document name and each value its JSON encoding.
type Documents struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

// NewDocuments creates a document store from an existing client.
func NewDocuments(client *backend.Client, prefix string) *Documents {
	if prefix == "" {
		prefix = "triage:"
	}
	return &Documents{client: client, prefix: prefix, now: time.Now}
}

func (d *Documents) folderKey(folder string) string {
	return d.prefix + "workflows:" + folder
}

// Save writes doc, keeping CreatedAt of a previous version.
// Concurrent writers to the same key race; the last write wins.
func (d *Documents) Save(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc.Metadata.Name == "" {
		return nil, fmt.Errorf("document name cannot be empty")
	}
	cp := doc.Clone()
	now := d.now().UTC()

	prev, err := d.Load(ctx, cp.Metadata.Name, cp.Metadata.Folder)
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

	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := d.client.HSet(ctx, d.folderKey(cp.Metadata.Folder), cp.Metadata.Name, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
	}
	return cp, nil
}

// Load returns (nil, nil) when the document does not exist.
func (d *Documents) Load(ctx context.Context, name, folder string) (*domain.Document, error) {
	val, err := d.client.HGet(ctx, d.folderKey(folder), name).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, &domain.MalformedDocumentError{Reason: "stored document", Err: err}
	}
	return &doc, nil
}

// Delete removes a document.
func (d *Documents) Delete(ctx context.Context, name, folder string) error {
	return d.client.HDel(ctx, d.folderKey(folder), name).Err()
}

// List returns the metadata of the documents in folder, sorted by name.
func (d *Documents) List(ctx context.Context, folder string) ([]domain.DocumentMetadata, error) {
	all, err := d.client.HGetAll(ctx, d.folderKey(folder)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	out := make([]domain.DocumentMetadata, 0, len(all))
	for name, raw := range all {
		var head struct {
			Metadata domain.DocumentMetadata `json:"metadata"`
		}
		if err := json.Unmarshal([]byte(raw), &head); err != nil {
			return nil, &domain.MalformedDocumentError{Reason: "stored document " + name, Err: err}
		}
		out = append(out, head.Metadata)
	}
	slices.SortFunc(out, func(a, b domain.DocumentMetadata) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
