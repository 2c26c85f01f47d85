package repository

import (
	"fmt"
	"sync"

	"github.com/S1riyS/tinyfs/internal/models"
)

type InodeRepository interface {
	Create(nodeType models.NodeType) (int64, error)
	// Get returns the inode record for fields guarded by the namespace lock
	// (type, link count, open count, symlink target).
	Get(ino int64) *models.Inode
	// Lock and RLock return the record with the inode's content lock held.
	Lock(ino int64) (*models.Inode, func())
	RLock(ino int64) (*models.Inode, func())
	Delete(ino int64)
	Live() []int64
}

type inodeSlot struct {
	mu    sync.RWMutex // content lock: Size, DataBlock and the block bytes
	taken bool
	inode models.Inode
}

type inodeRepository struct {
	mu     sync.Mutex // protects slot state
	slots  []inodeSlot
	blocks BlockRepository
}

func NewInodeRepository(count int, blocks BlockRepository) InodeRepository {
	return &inodeRepository{
		slots:  make([]inodeSlot, count),
		blocks: blocks,
	}
}

func (r *inodeRepository) Create(nodeType models.NodeType) (int64, error) {
	const op = "repository.inodeRepository.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		slot := &r.slots[i]
		if slot.taken {
			continue
		}

		inode := models.Inode{
			Ino:       int64(i),
			Type:      nodeType,
			DataBlock: models.NoBlock,
			RefCount:  1,
		}

		// Directories own their entry table from birth.
		if nodeType == models.NodeTypeDir {
			block, err := r.blocks.Alloc()
			if err != nil {
				return 0, fmt.Errorf("%s: %w", op, err)
			}
			inode.DataBlock = block
			inode.Size = int64(r.blocks.Size())
		}

		slot.taken = true
		slot.inode = inode
		return inode.Ino, nil
	}

	return 0, fmt.Errorf("%s: %w", op, ErrNoSpace)
}

func (r *inodeRepository) Get(ino int64) *models.Inode {
	return &r.slot(ino).inode
}

func (r *inodeRepository) Lock(ino int64) (*models.Inode, func()) {
	slot := r.slot(ino)
	slot.mu.Lock()
	return &slot.inode, slot.mu.Unlock
}

func (r *inodeRepository) RLock(ino int64) (*models.Inode, func()) {
	slot := r.slot(ino)
	slot.mu.RLock()
	return &slot.inode, slot.mu.RUnlock
}

func (r *inodeRepository) Delete(ino int64) {
	if ino == models.RootIno {
		panic("root inode cannot be deleted")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.checked(ino)
	if slot.inode.DataBlock != models.NoBlock {
		r.blocks.Free(slot.inode.DataBlock)
	}
	slot.taken = false
	slot.inode = models.Inode{}
}

func (r *inodeRepository) Live() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var live []int64
	for i := range r.slots {
		if r.slots[i].taken {
			live = append(live, int64(i))
		}
	}
	return live
}

func (r *inodeRepository) slot(ino int64) *inodeSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checked(ino)
}

// checked panics unless ino addresses a taken slot. Caller must hold r.mu.
func (r *inodeRepository) checked(ino int64) *inodeSlot {
	if ino < 0 || ino >= int64(len(r.slots)) {
		panic(fmt.Sprintf("inumber %d out of range", ino))
	}
	slot := &r.slots[ino]
	if !slot.taken {
		panic(fmt.Sprintf("inode %d is free", ino))
	}
	return slot
}
