package repository

import (
	"fmt"

	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/pkg/binary"
)

// DirectoryRepository manages the entry table stored in the root directory's
// data block. All methods must be called with the namespace lock held.
type DirectoryRepository interface {
	Lookup(name string) (int64, error)
	CreateEntry(name string, ino int64) error
	DeleteEntry(name string)
	GetEntries() []models.Dirent
	Capacity() int
}

type directoryRepository struct {
	inodes InodeRepository
	blocks BlockRepository
	dirIno int64
}

// NewDirectoryRepository formats the data block of dirIno as an empty entry table.
func NewDirectoryRepository(inodes InodeRepository, blocks BlockRepository, dirIno int64) DirectoryRepository {
	r := &directoryRepository{inodes: inodes, blocks: blocks, dirIno: dirIno}
	table := r.table()
	for i := 0; i < r.Capacity(); i++ {
		binary.ClearDirent(slotAt(table, i))
	}
	return r
}

func (r *directoryRepository) Lookup(name string) (int64, error) {
	const op = "repository.directoryRepository.Lookup"

	if i := r.find(name); i >= 0 {
		_, ino := binary.DecodeDirent(slotAt(r.table(), i))
		return ino, nil
	}
	return 0, fmt.Errorf("%s: %q: %w", op, name, ErrNotFound)
}

func (r *directoryRepository) CreateEntry(name string, ino int64) error {
	const op = "repository.directoryRepository.CreateEntry"

	if r.find(name) >= 0 {
		return fmt.Errorf("%s: %q: %w", op, name, ErrExists)
	}

	table := r.table()
	for i := 0; i < r.Capacity(); i++ {
		slot := slotAt(table, i)
		if _, cur := binary.DecodeDirent(slot); cur != models.NoBlock {
			continue
		}
		if err := binary.EncodeDirent(slot, name, ino); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	return fmt.Errorf("%s: %q: %w", op, name, ErrNoSpace)
}

func (r *directoryRepository) DeleteEntry(name string) {
	i := r.find(name)
	if i < 0 {
		panic(fmt.Sprintf("directory entry %q does not exist", name))
	}
	binary.ClearDirent(slotAt(r.table(), i))
}

// GetEntries returns the live entries in slot order.
func (r *directoryRepository) GetEntries() []models.Dirent {
	table := r.table()

	var entries []models.Dirent
	for i := 0; i < r.Capacity(); i++ {
		name, ino := binary.DecodeDirent(slotAt(table, i))
		if ino == models.NoBlock {
			continue
		}
		entries = append(entries, models.Dirent{
			Name: name,
			Ino:  ino,
			Type: r.inodes.Get(ino).Type,
		})
	}
	return entries
}

func (r *directoryRepository) Capacity() int {
	return r.blocks.Size() / binary.DirentSize
}

func (r *directoryRepository) find(name string) int {
	table := r.table()
	for i := 0; i < r.Capacity(); i++ {
		cur, ino := binary.DecodeDirent(slotAt(table, i))
		if ino != models.NoBlock && cur == name {
			return i
		}
	}
	return -1
}

// table returns the directory's block. The directory's block never changes
// and its bytes are guarded by the namespace lock, so the inode lock is not taken.
func (r *directoryRepository) table() []byte {
	return r.blocks.Get(r.inodes.Get(r.dirIno).DataBlock)
}

func slotAt(table []byte, i int) []byte {
	return table[i*binary.DirentSize : (i+1)*binary.DirentSize]
}
