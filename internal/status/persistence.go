// Package status provides engine state tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_persistence.go -package=mocks -source=persistence.go Persistence

// Persistence defines the interface for sync state persistence
type Persistence interface {
	// Save saves the status document to persistent storage
	Save(ctx context.Context, doc *Document) error

	// Load loads the status document from persistent storage.
	// Returns an idle document if the file doesn't exist (first run).
	Load(ctx context.Context) (*Document, error)
}

// filePersistence implements Persistence using the local filesystem
type filePersistence struct {
	path string
}

// NewFilePersistence creates a new file-based status persistence.
// path is the full path of the status file; parent directories are
// created on first save.
func NewFilePersistence(path string) Persistence {
	return &filePersistence{
		path: path,
	}
}

// Save writes the document to the status file via a temp file rename
func (f *filePersistence) Save(_ context.Context, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status document: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, f.path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// Load reads the document from the status file.
// A document persisted mid-sync belongs to a process that died before
// finishing, so a loaded syncing state is reported as an error state.
func (f *filePersistence) Load(_ context.Context) (*Document, error) {
	// #nosec G304 -- path comes from trusted configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - this is OK for first run
			return &Document{State: StateIdle}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status document: %w", err)
	}

	if doc.State == StateSyncing {
		doc.State = StateError
		doc.LastError = "process exited while establishing subscriptions"
	}

	return &doc, nil
}
