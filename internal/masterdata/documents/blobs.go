package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MemoryBlobs keeps blobs in memory. Used by tests and the dev server.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string][]byte)}
}

func (b *MemoryBlobs) Put(_ context.Context, key string, r io.Reader, _ string) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return n, err
	}
	b.mu.Lock()
	b.blobs[key] = buf.Bytes()
	b.mu.Unlock()
	return n, nil
}

func (b *MemoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.blobs, key)
	b.mu.Unlock()
	return nil
}

// Bytes returns the stored blob and whether it exists.
func (b *MemoryBlobs) Bytes(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	return data, ok
}

// FileBlobs writes blobs below a root directory.
type FileBlobs struct {
	root string
}

func NewFileBlobs(root string) *FileBlobs {
	return &FileBlobs{root: root}
}

func (b *FileBlobs) path(key string) (string, error) {
	p := filepath.Join(b.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, filepath.Clean(b.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob key %q escapes root", key)
	}
	return p, nil
}

func (b *FileBlobs) Put(_ context.Context, key string, r io.Reader, _ string) (int64, error) {
	p, err := b.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return n, fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		_ = os.Remove(f.Name())
		return n, fmt.Errorf("commit blob: %w", err)
	}
	return n, nil
}

func (b *FileBlobs) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
