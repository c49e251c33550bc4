package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps the corpus in a directory on the local filesystem.
type LocalStorage struct {
	basePath string
}

// LocalConfig holds local storage settings.
type LocalConfig struct {
	Path string // corpus directory
}

// NewLocalStorage creates a local corpus store rooted at cfg.Path.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Put stores a file under the given name, replacing any previous version.
func (s *LocalStorage) Put(reader io.Reader, filename string) (FileInfo, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return FileInfo{}, err
	}

	file, err := os.Create(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to write file: %v", err)
	}

	return FileInfo{
		Name:     filename,
		Size:     size,
		MimeType: getMimeType(filename),
	}, nil
}

// Open returns the content of the named file.
func (s *LocalStorage) Open(filename string) (io.ReadCloser, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s not found", filename)
		}
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return file, nil
}

// Delete removes the named file.
func (s *LocalStorage) Delete(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s not found", filename)
		}
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}

// List returns all files in the store.
func (s *LocalStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %v", err)
		}
		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			MimeType: getMimeType(entry.Name()),
		})
	}

	return files, nil
}

// Exists reports whether the named file is in the store.
func (s *LocalStorage) Exists(filename string) (bool, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolve maps a catalog filename to a path inside the corpus directory,
// rejecting names that would escape it.
func (s *LocalStorage) resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	cleaned := filepath.Clean(filename)
	if cleaned != filepath.Base(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.basePath, cleaned), nil
}

// getMimeType maps a file extension to a MIME type.
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
