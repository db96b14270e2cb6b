package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// LocalBackend stores blobs as files under baseDir/<container>/<name>. Blob ids are
// "<container>/<name>".
type LocalBackend struct {
	baseDir string
}

// NewLocalBackend ensures the base directory exists and returns a handle.
func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if baseDir == "" {
		baseDir = "./reports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir}, nil
}

// List returns the blobs of a container, newest first.
func (b *LocalBackend) List(ctx context.Context, query BlobQuery) ([]BlobRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSegment(query.Container); err != nil {
		return nil, fmt.Errorf("list blobs: container %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(b.baseDir, query.Container))
	if errors.Is(err, fs.ErrNotExist) {
		return []BlobRef{}, nil
	}
	if err != nil {
		return nil, classifyFS("list blobs", err)
	}

	refs := make([]BlobRef, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !query.matches(name) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, classifyFS("list blobs", err)
		}
		refs = append(refs, BlobRef{
			ID:        query.Container + "/" + name,
			Name:      name,
			UpdatedAt: info.ModTime().UTC(),
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].UpdatedAt.Equal(refs[j].UpdatedAt) {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
	return refs, nil
}

// Create writes a new blob and fails with ErrBlobExists if the name is taken.
func (b *LocalBackend) Create(ctx context.Context, name, container string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkSegment(container); err != nil {
		return "", fmt.Errorf("create blob: container %w", err)
	}
	if err := checkSegment(name); err != nil {
		return "", fmt.Errorf("create blob: name %w", err)
	}

	dir := filepath.Join(b.baseDir, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", classifyFS("create blob", err)
	}

	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", ErrBlobExists
	}
	if err != nil {
		return "", classifyFS("create blob", err)
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", classifyFS("write blob", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", classifyFS("close blob", err)
	}

	return container + "/" + name, nil
}

// Update replaces the content of an existing blob atomically.
func (b *LocalBackend) Update(ctx context.Context, id string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.resolve(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return classifyFS("update blob", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return classifyFS("update blob", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return classifyFS("update blob", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return classifyFS("update blob", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return classifyFS("update blob", err)
	}
	return nil
}

// GetContent reads a blob.
func (b *LocalBackend) GetContent(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, classifyFS("read blob", err)
	}
	return data, nil
}

// Path exposes the file backing a blob id.
func (b *LocalBackend) Path(id string) (string, error) {
	return b.resolve(id)
}

func (b *LocalBackend) resolve(id string) (string, error) {
	container, name, ok := strings.Cut(id, "/")
	if !ok || checkSegment(container) != nil || checkSegment(name) != nil {
		return "", fmt.Errorf("invalid blob id %q", id)
	}
	return filepath.Join(b.baseDir, container, name), nil
}

func checkSegment(segment string) error {
	if segment == "" || segment == "." || segment == ".." {
		return fmt.Errorf("%q is not a valid path segment", segment)
	}
	if strings.ContainsAny(segment, `/\`) || strings.ContainsRune(segment, 0) {
		return fmt.Errorf("%q must not contain path separators", segment)
	}
	return nil
}

// classifyFS marks interrupted or busy filesystem calls as transient; everything else is fatal.
func classifyFS(op string, err error) error {
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EBUSY) {
		return Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
