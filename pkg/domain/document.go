package domain

import (
	"path"
	"time"
)

// DocumentMetadata identifies and describes a persisted workflow.
type DocumentMetadata struct {
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	Version   int       `json:"version,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsActive  bool      `json:"isActive"`
}

// Key returns the storage key of the document.
func (m DocumentMetadata) Key() DocumentKey {
	return DocumentKey{Name: m.Name, Folder: m.Folder}
}

// DocumentKey is the (name, folder) identity used by stores.
type DocumentKey struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// String renders the key as a slash separated path.
func (k DocumentKey) String() string {
	if k.Folder == "" {
		return k.Name
	}
	return path.Join(k.Folder, k.Name)
}

// Document is the serialized form of a workflow graph.
type Document struct {
	Metadata    DocumentMetadata `json:"metadata"`
	Nodes       []Node           `json:"nodes"`
	Edges       []Edge           `json:"edges"`
	NodeCounter int              `json:"nodeCounter"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Metadata:    d.Metadata,
		Nodes:       make([]Node, len(d.Nodes)),
		Edges:       make([]Edge, len(d.Edges)),
		NodeCounter: d.NodeCounter,
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, d.Edges)
	return out
}
