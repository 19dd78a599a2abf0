package remote

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and the devstack. It hashes
// content with MD5 so its ETags line up with local fingerprints, same as a
// real bucket.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]*memObject
}

type memObject struct {
	data         []byte
	etag         string
	lastModified time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]*memObject)}
}

// Seed inserts an object directly, bypassing Put. Test helper.
func (m *MemStore) Seed(path string, data []byte, lastModified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = &memObject{
		data:         append([]byte(nil), data...),
		etag:         fmt.Sprintf("%x", md5.Sum(data)),
		lastModified: lastModified,
	}
}

func (m *MemStore) List(ctx context.Context) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.objects))
	for path := range m.objects {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	entries := make([]*Entry, 0, len(paths))
	for _, path := range paths {
		obj := m.objects[path]
		entries = append(entries, &Entry{
			Path:         path,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.lastModified,
		})
	}
	return entries, nil
}

func (m *MemStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemStore) Put(ctx context.Context, path string, body io.Reader, size int64) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", path, ErrWriteFailed)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("put %s: size mismatch: %w", path, ErrWriteFailed)
	}

	now := time.Now().UTC()
	m.mu.Lock()
	m.objects[path] = &memObject{
		data:         data,
		etag:         fmt.Sprintf("%x", md5.Sum(data)),
		lastModified: now,
	}
	obj := m.objects[path]
	m.mu.Unlock()

	return &Entry{
		Path:         path,
		Size:         int64(len(data)),
		ETag:         obj.etag,
		LastModified: now,
	}, nil
}

func (m *MemStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}

func (m *MemStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

// Len returns the number of stored objects. Test helper.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Store = (*MemStore)(nil)
