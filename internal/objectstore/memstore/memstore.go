// Package memstore is an in-memory objectstore.Bucket for tests and dry runs.
package memstore

import (
	"context"
	"sync"

	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
)

// Bucket keeps objects in a map.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]Object
	uploads int
	failing map[string]error
}

// Object is one stored object.
type Object struct {
	Data        []byte
	ContentType string
}

// New creates an empty bucket.
func New() *Bucket {
	return &Bucket{objects: make(map[string]Object), failing: make(map[string]error)}
}

// Put stores an object directly, bypassing the upload counter.
func (b *Bucket) Put(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = Object{Data: data, ContentType: objectstore.ContentTypeJPEG}
}

// FailUploads makes uploads to path return err.
func (b *Bucket) FailUploads(path string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[path] = err
}

// Get returns the object at path.
func (b *Bucket) Get(path string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[path]
	return o, ok
}

// Uploads returns how many uploads succeeded.
func (b *Bucket) Uploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploads
}

// Exists implements objectstore.Bucket.
func (b *Bucket) Exists(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok, nil
}

// Upload implements objectstore.Bucket.
func (b *Bucket) Upload(_ context.Context, path string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing[path]; err != nil {
		return err
	}
	if _, ok := b.objects[path]; ok {
		return objectstore.ErrExists
	}
	b.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	b.uploads++
	return nil
}

// PublicURL implements objectstore.Bucket.
func (b *Bucket) PublicURL(path string) string {
	return "memory://images/" + path
}
