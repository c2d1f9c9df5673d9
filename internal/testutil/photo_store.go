package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"fourwcycle/internal/storage"
)

// ErrStoreFailure is returned by PhotoStoreStub when a failure is injected.
var ErrStoreFailure = errors.New("injected store failure")

// PhotoStoreStub is an in-memory photo store with failure injection.
type PhotoStoreStub struct {
	mu       sync.Mutex
	files    map[string][]byte
	modTimes map[string]time.Time

	// FailSaveAfter makes Save fail once this many files have been stored; negative disables.
	FailSaveAfter int
	// FailRemove makes Remove fail for the named files.
	FailRemove map[string]bool
}

// NewPhotoStoreStub creates an empty store stub.
func NewPhotoStoreStub() *PhotoStoreStub {
	return &PhotoStoreStub{
		files:         make(map[string][]byte),
		modTimes:      make(map[string]time.Time),
		FailSaveAfter: -1,
		FailRemove:    make(map[string]bool),
	}
}

// Save stores r under name.
func (s *PhotoStoreStub) Save(_ context.Context, name string, r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaveAfter >= 0 && len(s.files) >= s.FailSaveAfter {
		return 0, ErrStoreFailure
	}
	if _, ok := s.files[name]; ok {
		return 0, errors.New("file exists")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.files[name] = data
	s.modTimes[name] = time.Now()
	return int64(len(data)), nil
}

// Remove deletes name; missing files are not an error.
func (s *PhotoStoreStub) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove[name] {
		return ErrStoreFailure
	}
	delete(s.files, name)
	delete(s.modTimes, name)
	return nil
}

// Exists reports whether name is stored.
func (s *PhotoStoreStub) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok, nil
}

// List returns every stored file.
func (s *PhotoStoreStub) List(_ context.Context) ([]storage.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.FileInfo, 0, len(s.files))
	for name, data := range s.files {
		out = append(out, storage.FileInfo{Name: name, Size: int64(len(data)), ModTime: s.modTimes[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put stores a file directly with the given modification time.
func (s *PhotoStoreStub) Put(name string, data []byte, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = bytes.Clone(data)
	s.modTimes[name] = modTime
}

// Names returns the stored filenames in sorted order.
func (s *PhotoStoreStub) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
