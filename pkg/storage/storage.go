package storage

import (
	"io"
)

// FileInfo describes one file in the corpus store.
type FileInfo struct {
	Name     string // filename as referenced by the corpus catalog
	Size     int64  // size in bytes
	MimeType string
}

// Storage is where the corpus documents live. The catalog references
// files by name, so the store is keyed by filename rather than by a
// generated identifier. Implementations exist for the local filesystem
// and MinIO.
type Storage interface {
	// Put stores a file under the given name, replacing any previous
	// version.
	Put(reader io.Reader, filename string) (FileInfo, error)

	// Open returns the content of the named file.
	Open(filename string) (io.ReadCloser, error)

	// Delete removes the named file.
	Delete(filename string) error

	// List returns all files in the store.
	List() ([]FileInfo, error)

	// Exists reports whether the named file is in the store.
	Exists(filename string) (bool, error)
}
