package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultStorageDir is the default directory, relative to the home directory,
// for file-backed credentials.
const DefaultStorageDir = ".config/sqlagent"

// FileBackend stores every entry as a JSON file in a private directory.
//
// SECURITY: the directory is created 0700 and files are written 0600.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir, creating it if needed.
// An empty dir selects ~/.config/sqlagent.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStorageDir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory holding the entry files.
func (f *FileBackend) Dir() string {
	return f.dir
}

// FileName returns the file name used for key.
func FileName(key string) string {
	return key + ".json"
}

func (f *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid credential key %q", key)
	}
	return filepath.Join(f.dir, FileName(key)), nil
}

func (f *FileBackend) Put(_ context.Context, key string, e Entry) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial entry
	tmp, err := os.CreateTemp(f.dir, FileName(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close entry file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace entry file: %w", err)
	}
	return nil
}

func (f *FileBackend) Get(_ context.Context, key string) (Entry, error) {
	path, err := f.path(key)
	if err != nil {
		return Entry{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to read entry file: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}

func (f *FileBackend) Delete(_ context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		path, err := f.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to delete entry file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (f *FileBackend) Close() error { return nil }
