package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filesystem stores each key as one file under a root directory.
// Writes are atomic using a temp file and rename pattern. Key names are
// percent-escaped to form safe filenames.
type Filesystem struct {
	root string
}

// NewFilesystem creates a filesystem adapter rooted at the given path.
// The directory will be created if it does not exist.
func NewFilesystem(root string) (*Filesystem, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	return &Filesystem{root: absRoot}, nil
}

// Root returns the root directory path.
func (fs *Filesystem) Root() string {
	return fs.root
}

// Get retrieves the value at the given key.
func (fs *Filesystem) Get(key string) (string, error) {
	data, err := os.ReadFile(fs.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// Set stores a value at the given key using an atomic write.
func (fs *Filesystem) Set(key, value string) error {
	path := fs.keyToPath(key)

	// Write to temp file first
	tmp, err := os.CreateTemp(fs.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up temp file on error
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(value); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}

	// Sync to disk
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing file: %w", err)
	}

	// Close before rename
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// Remove deletes the key.
func (fs *Filesystem) Remove(key string) error {
	err := os.Remove(fs.keyToPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// Keys returns all keys in lexical order.
func (fs *Filesystem) Keys() ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		// Skip temp files
		if strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of keys.
func (fs *Filesystem) Len() (int, error) {
	keys, err := fs.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// keyToPath converts a key to a filesystem path inside the root.
func (fs *Filesystem) keyToPath(key string) string {
	return filepath.Join(fs.root, url.PathEscape(key))
}

// Compile-time interface check
var _ Adapter = (*Filesystem)(nil)
