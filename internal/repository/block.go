package repository

import (
	"fmt"
	"sync"
)

type allocState uint8

const (
	stateFree allocState = iota
	stateTaken
)

// BlockRepository owns the raw byte storage of a volume: file contents and the
// root directory's entry table.
type BlockRepository interface {
	Alloc() (int64, error)
	Free(block int64)
	// Get returns the block's storage. The caller must hold the lock of the
	// inode owning the block.
	Get(block int64) []byte
	Size() int
	FreeCount() int
}

type blockRepository struct {
	mu    sync.Mutex // protects state and nfree
	size  int
	data  []byte
	state []allocState
	nfree int
}

func NewBlockRepository(count, size int) BlockRepository {
	return &blockRepository{
		size:  size,
		data:  make([]byte, count*size),
		state: make([]allocState, count),
		nfree: count,
	}
}

func (r *blockRepository) Alloc() (int64, error) {
	const op = "repository.blockRepository.Alloc"

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.state {
		if s == stateFree {
			r.state[i] = stateTaken
			r.nfree--
			clear(r.slice(int64(i)))
			return int64(i), nil
		}
	}

	return 0, fmt.Errorf("%s: %w", op, ErrNoSpace)
}

func (r *blockRepository) Free(block int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.check(block)
	r.state[block] = stateFree
	r.nfree++
}

func (r *blockRepository) Get(block int64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.check(block)
	return r.slice(block)
}

func (r *blockRepository) Size() int { return r.size }

func (r *blockRepository) FreeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nfree
}

// check panics unless block is a taken block. Caller must hold r.mu.
func (r *blockRepository) check(block int64) {
	if block < 0 || block >= int64(len(r.state)) {
		panic(fmt.Sprintf("block %d out of range", block))
	}
	if r.state[block] != stateTaken {
		panic(fmt.Sprintf("block %d is not allocated", block))
	}
}

func (r *blockRepository) slice(block int64) []byte {
	start := block * int64(r.size)
	return r.data[start : start+int64(r.size) : start+int64(r.size)]
}
