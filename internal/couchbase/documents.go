package couchbase

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
)

// ErrDocumentNotFound is returned by GetDocument for a missing key.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentManager handles document CRUD operations on the default collection
type DocumentManager struct {
	collection *gocb.Collection
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(bucket *gocb.Bucket) *DocumentManager {
	return &DocumentManager{
		collection: bucket.DefaultCollection(),
	}
}

// UpsertDocument stores or updates a document in Couchbase
func (dm *DocumentManager) UpsertDocument(ctx context.Context, docID string, data interface{}) error {
	_, err := dm.collection.Upsert(docID, data, &gocb.UpsertOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", docID, err)
	}
	return nil
}

// GetDocument retrieves a document and decodes it into result
func (dm *DocumentManager) GetDocument(ctx context.Context, docID string, result interface{}) error {
	doc, err := dm.collection.Get(docID, &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return fmt.Errorf("%s: %w", docID, ErrDocumentNotFound)
		}
		return fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	if err := doc.Content(result); err != nil {
		return fmt.Errorf("failed to parse document content: %w", err)
	}
	return nil
}

// DeleteDocument removes a document from Couchbase
func (dm *DocumentManager) DeleteDocument(ctx context.Context, docID string) error {
	_, err := dm.collection.Remove(docID, &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	return nil
}
