package repository

import (
	"fmt"
	"sync"

	"github.com/S1riyS/tinyfs/internal/models"
)

// OpenFileEntry is one slot of the open file table. Operations on a handle
// hold the entry lock for their whole duration so that the offset is used by
// one of them at a time.
type OpenFileEntry struct {
	mu     sync.Mutex
	closed bool
	models.OpenFile
}

// Lock acquires the entry. It reports false if the handle was closed while
// the caller was waiting.
func (e *OpenFileEntry) Lock() bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	return true
}

func (e *OpenFileEntry) Unlock() { e.mu.Unlock() }

type OpenFileRepository interface {
	Add(ino int64, offset int64) (int, error)
	Get(fh int) (*OpenFileEntry, error)
	// Remove frees the slot once in-flight operations on the handle finish and
	// returns the removed entry.
	Remove(fh int) (*OpenFileEntry, error)
	Count() int
}

type openFileRepository struct {
	mu      sync.Mutex // protects entries
	entries []*OpenFileEntry
}

func NewOpenFileRepository(count int) OpenFileRepository {
	return &openFileRepository{entries: make([]*OpenFileEntry, count)}
}

func (r *openFileRepository) Add(ino int64, offset int64) (int, error) {
	const op = "repository.openFileRepository.Add"

	r.mu.Lock()
	defer r.mu.Unlock()

	for fh, entry := range r.entries {
		if entry != nil {
			continue
		}
		r.entries[fh] = &OpenFileEntry{OpenFile: models.OpenFile{Ino: ino, Offset: offset}}
		return fh, nil
	}

	return -1, fmt.Errorf("%s: %w", op, ErrNoSpace)
}

func (r *openFileRepository) Get(fh int) (*OpenFileEntry, error) {
	const op = "repository.openFileRepository.Get"

	r.mu.Lock()
	defer r.mu.Unlock()

	if fh < 0 || fh >= len(r.entries) || r.entries[fh] == nil {
		return nil, fmt.Errorf("%s: handle %d: %w", op, fh, ErrBadHandle)
	}
	return r.entries[fh], nil
}

func (r *openFileRepository) Remove(fh int) (*OpenFileEntry, error) {
	const op = "repository.openFileRepository.Remove"

	r.mu.Lock()
	if fh < 0 || fh >= len(r.entries) || r.entries[fh] == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: handle %d: %w", op, fh, ErrBadHandle)
	}
	entry := r.entries[fh]
	r.entries[fh] = nil
	r.mu.Unlock()

	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()

	return entry, nil
}

func (r *openFileRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, entry := range r.entries {
		if entry != nil {
			n++
		}
	}
	return n
}
