// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/almanac/internal/models"

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// ListDirs returns the names of the immediate sub-directories of dir.
	ListDirs(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Exists reports whether a file or folder exists at path.
	Exists(path string) bool
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
