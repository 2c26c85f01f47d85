package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/S1riyS/tinyfs/internal/config"
	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/internal/pkg/kerrors"
	"github.com/S1riyS/tinyfs/internal/repository"
	"github.com/S1riyS/tinyfs/pkg/binary"
	"github.com/S1riyS/tinyfs/pkg/logging"
	"github.com/S1riyS/tinyfs/pkg/logging/slogext"
	"github.com/google/uuid"
)

// MaxSymlinkHops bounds symlink chasing in Open and SymLink.
const MaxSymlinkHops = 40

type FileSystemService interface {
	Token() string
	Open(ctx context.Context, path string, mode models.OpenMode) (int, error)
	Close(ctx context.Context, fh int) error
	Read(ctx context.Context, fh int, buf []byte) (int, error)
	Write(ctx context.Context, fh int, data []byte) (int, error)
	Link(ctx context.Context, target string, name string) error
	SymLink(ctx context.Context, target string, name string) error
	Unlink(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (*models.NodeMeta, error)
	ReadDir(ctx context.Context) ([]models.Dirent, error)
	CountLinks(ctx context.Context, path string) (int, error)
	CopyFrom(ctx context.Context, src io.Reader, dest string) error
	CopyFromExternal(ctx context.Context, sourcePath string, dest string) error
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	Destroy(ctx context.Context) error
}

type fileSystemService struct {
	token     string
	destroyed atomic.Bool

	// mu is the namespace lock. It guards directory membership, inode
	// creation and deletion, link counts and open counts. It is never
	// requested while an inode lock is held.
	mu sync.Mutex

	blockRepo repository.BlockRepository
	inodeRepo repository.InodeRepository
	dirRepo   repository.DirectoryRepository
	fileRepo  repository.OpenFileRepository
}

// NewFileSystemService formats a fresh volume sized by cfg. The root
// directory always takes inumber 0.
func NewFileSystemService(ctx context.Context, cfg config.FSConfig) (FileSystemService, error) {
	const op = "service.NewFileSystemService"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	blockRepo := repository.NewBlockRepository(cfg.MaxBlockCount, cfg.BlockSize)
	inodeRepo := repository.NewInodeRepository(cfg.MaxInodeCount, blockRepo)

	root, err := inodeRepo.Create(models.NodeTypeDir)
	if err != nil {
		return nil, fmt.Errorf("%s: create root: %w", op, err)
	}
	if root != models.RootIno {
		return nil, fmt.Errorf("%s: root got inumber %d", op, root)
	}

	s := &fileSystemService{
		token:     uuid.NewString(),
		blockRepo: blockRepo,
		inodeRepo: inodeRepo,
		dirRepo:   repository.NewDirectoryRepository(inodeRepo, blockRepo, root),
		fileRepo:  repository.NewOpenFileRepository(cfg.MaxOpenFilesCount),
	}

	logger.Info("Filesystem initialized",
		slog.String("token", s.token),
		slog.Int("max_inodes", cfg.MaxInodeCount),
		slog.Int("max_blocks", cfg.MaxBlockCount),
		slog.Int("max_open_files", cfg.MaxOpenFilesCount),
		slog.Int("block_size", cfg.BlockSize),
		slog.Int("dir_capacity", s.dirRepo.Capacity()),
	)

	return s, nil
}

func (s *fileSystemService) Token() string {
	return s.token
}

func (s *fileSystemService) Destroy(ctx context.Context) error {
	const op = "service.fileSystemService.Destroy"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if !s.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}

	logger.Info("Filesystem destroyed",
		slog.String("token", s.token),
		slog.Int("open_handles", s.fileRepo.Count()),
	)
	return nil
}

func (s *fileSystemService) Open(ctx context.Context, path string, mode models.OpenMode) (int, error) {
	const op = "service.fileSystemService.Open"

	ctx = logging.EnsureCallID(ctx)
	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Open", slog.String("path", path), slog.Int("mode", int(mode)))

	if s.destroyed.Load() {
		return -1, ErrDestroyed
	}

	name, err := parsePath(path)
	if err != nil {
		logger.Debug("Invalid path", slog.String("path", path))
		return -1, err
	}

	ino, err := s.resolve(name, mode, true)
	if err != nil {
		logger.Debug("Failed to resolve path", slogext.Err(err), slog.String("path", path))
		return -1, err
	}

	offset := s.prepare(ino, mode)

	fh, err := s.fileRepo.Add(ino, offset)
	if err != nil {
		s.unpin(ino)
		logger.Debug("Open file table is full", slog.String("path", path))
		return -1, fromRepository(err, path)
	}

	logger.Debug("Open successful",
		slog.String("path", path),
		slog.Int("fh", fh),
		slog.Int64("ino", ino),
		slog.Int64("offset", offset),
	)
	return fh, nil
}

func (s *fileSystemService) Close(ctx context.Context, fh int) error {
	const op = "service.fileSystemService.Close"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Close", slog.Int("fh", fh))

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	entry, err := s.fileRepo.Remove(fh)
	if err != nil {
		logger.Debug("Unknown handle", slog.Int("fh", fh))
		return fromRepository(err, fmt.Sprintf("close %d", fh))
	}

	s.unpin(entry.Ino)

	logger.Debug("Close successful", slog.Int("fh", fh), slog.Int64("ino", entry.Ino))
	return nil
}

func (s *fileSystemService) Read(ctx context.Context, fh int, buf []byte) (int, error) {
	const op = "service.fileSystemService.Read"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Read", slog.Int("fh", fh), slog.Int("len", len(buf)))

	if s.destroyed.Load() {
		return 0, ErrDestroyed
	}

	entry, err := s.lockHandle(fh)
	if err != nil {
		return 0, err
	}
	defer entry.Unlock()

	inode, unlock := s.inodeRepo.RLock(entry.Ino)
	defer unlock()

	if entry.Offset >= inode.Size {
		logger.Debug("Read at end of file", slog.Int("fh", fh), slog.Int64("offset", entry.Offset))
		return 0, nil
	}

	data := s.blockRepo.Get(inode.DataBlock)[entry.Offset:inode.Size]
	n := copy(buf, data)
	entry.Offset += int64(n)

	logger.Debug("Read successful", slog.Int("fh", fh), slog.Int("bytes", n), slog.Int64("offset", entry.Offset))
	return n, nil
}

func (s *fileSystemService) Write(ctx context.Context, fh int, data []byte) (int, error) {
	const op = "service.fileSystemService.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Write", slog.Int("fh", fh), slog.Int("len", len(data)))

	if s.destroyed.Load() {
		return 0, ErrDestroyed
	}

	entry, err := s.lockHandle(fh)
	if err != nil {
		return 0, err
	}
	defer entry.Unlock()

	if len(data) == 0 {
		return 0, nil
	}

	inode, unlock := s.inodeRepo.Lock(entry.Ino)
	defer unlock()

	room := int64(s.blockRepo.Size()) - entry.Offset
	if room <= 0 {
		logger.Debug("No room left in block", slog.Int("fh", fh), slog.Int64("offset", entry.Offset))
		return 0, newError(kerrors.EFBIG, "write to handle %d: file would exceed %d bytes", fh, s.blockRepo.Size())
	}

	if inode.DataBlock == models.NoBlock {
		block, err := s.blockRepo.Alloc()
		if err != nil {
			logger.Debug("Failed to allocate data block", slogext.Err(err), slog.Int64("ino", inode.Ino))
			return 0, fromRepository(err, fmt.Sprintf("write to handle %d", fh))
		}
		inode.DataBlock = block
	}

	n := copy(s.blockRepo.Get(inode.DataBlock)[entry.Offset:], data[:min(int64(len(data)), room)])
	entry.Offset += int64(n)
	inode.Size = max(inode.Size, entry.Offset)

	logger.Debug("Write successful",
		slog.Int("fh", fh),
		slog.Int("bytes", n),
		slog.Int64("offset", entry.Offset),
		slog.Int64("size", inode.Size),
	)
	return n, nil
}

func (s *fileSystemService) Link(ctx context.Context, target string, name string) error {
	const op = "service.fileSystemService.Link"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Link", slog.String("target", target), slog.String("name", name))

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	targetName, err := parsePath(target)
	if err != nil {
		return err
	}
	linkName, err := parsePath(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.dirRepo.Lookup(targetName)
	if err != nil {
		logger.Debug("Target not found", slog.String("target", target))
		return fromRepository(err, target)
	}

	inode := s.inodeRepo.Get(ino)
	if inode.Type == models.NodeTypeSymlink {
		logger.Debug("Cannot hard link a symlink", slog.String("target", target))
		return newError(kerrors.EPERM, "%s: cannot hard link a symlink", target)
	}

	if err := s.dirRepo.CreateEntry(linkName, ino); err != nil {
		logger.Debug("Failed to create directory entry", slogext.Err(err), slog.String("name", name))
		return fromRepository(err, name)
	}
	inode.RefCount++

	logger.Debug("Link successful",
		slog.String("name", name),
		slog.Int64("ino", ino),
		slog.Int("ref_count", inode.RefCount),
	)
	return nil
}

func (s *fileSystemService) SymLink(ctx context.Context, target string, name string) error {
	const op = "service.fileSystemService.SymLink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("SymLink", slog.String("target", target), slog.String("name", name))

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	targetName, err := parsePath(target)
	if err != nil {
		return err
	}
	linkName, err := parsePath(name)
	if err != nil {
		return err
	}

	if _, err := s.resolve(targetName, 0, false); err != nil {
		logger.Debug("Target does not resolve", slogext.Err(err), slog.String("target", target))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.createNode(linkName, models.NodeTypeSymlink, target)
	if err != nil {
		logger.Debug("Failed to create symlink", slogext.Err(err), slog.String("name", name))
		return err
	}

	logger.Debug("SymLink successful", slog.String("name", name), slog.Int64("ino", ino))
	return nil
}

func (s *fileSystemService) Unlink(ctx context.Context, path string) error {
	const op = "service.fileSystemService.Unlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Unlink", slog.String("path", path))

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	name, err := parsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.dirRepo.Lookup(name)
	if err != nil {
		logger.Debug("File not found", slog.String("path", path))
		return fromRepository(err, path)
	}

	inode := s.inodeRepo.Get(ino)
	s.dirRepo.DeleteEntry(name)

	if inode.Type == models.NodeTypeSymlink {
		s.inodeRepo.Delete(ino)
		logger.Debug("Symlink removed", slog.String("path", path), slog.Int64("ino", ino))
		return nil
	}

	inode.RefCount--
	if inode.RefCount == 0 && inode.OpenCount == 0 {
		s.inodeRepo.Delete(ino)
		logger.Debug("Inode deleted", slog.String("path", path), slog.Int64("ino", ino))
		return nil
	}

	logger.Debug("Unlink successful",
		slog.String("path", path),
		slog.Int64("ino", ino),
		slog.Int("ref_count", inode.RefCount),
		slog.Int("open_count", inode.OpenCount),
	)
	return nil
}

// resolve looks name up, chasing symlinks. With pin set, the final inode's
// open count is incremented before the namespace lock is dropped, and a
// missing file is created when mode asks for it. A symlink whose target no
// longer exists is never repaired by creation.
func (s *fileSystemService) resolve(name string, mode models.OpenMode, pin bool) (int64, error) {
	followed := false

	for hop := 0; ; hop++ {
		if hop > MaxSymlinkHops {
			return 0, newError(kerrors.ELOOP, "/%s: too many levels of symbolic links", name)
		}

		ino, target, err := s.step(name, mode, pin && !followed, pin)
		if err != nil {
			return 0, err
		}
		if target == "" {
			return ino, nil
		}

		next, err := parsePath(target)
		if err != nil {
			return 0, err
		}
		name = next
		followed = true
	}
}

// step performs one level of resolution under the namespace lock. It returns
// the symlink target if name is a symlink.
func (s *fileSystemService) step(name string, mode models.OpenMode, create bool, pin bool) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.dirRepo.Lookup(name)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound) && create && mode.Has(models.ModeCreate):
		ino, err = s.createNode(name, models.NodeTypeFile, "")
		if err != nil {
			return 0, "", err
		}
	default:
		return 0, "", fromRepository(err, "/"+name)
	}

	inode := s.inodeRepo.Get(ino)
	if inode.Type == models.NodeTypeSymlink {
		return ino, inode.Target, nil
	}
	if pin {
		inode.OpenCount++
	}
	return ino, "", nil
}

// createNode makes an inode and its directory entry, undoing the inode if
// the entry cannot be added. Caller must hold s.mu.
func (s *fileSystemService) createNode(name string, nodeType models.NodeType, target string) (int64, error) {
	ino, err := s.inodeRepo.Create(nodeType)
	if err != nil {
		return 0, fromRepository(err, "/"+name)
	}
	s.inodeRepo.Get(ino).Target = target

	if err := s.dirRepo.CreateEntry(name, ino); err != nil {
		s.inodeRepo.Delete(ino)
		return 0, fromRepository(err, "/"+name)
	}
	return ino, nil
}

// prepare applies truncation and returns the starting offset for a new handle.
func (s *fileSystemService) prepare(ino int64, mode models.OpenMode) int64 {
	inode, unlock := s.inodeRepo.Lock(ino)
	defer unlock()

	if mode.Has(models.ModeTruncate) && inode.DataBlock != models.NoBlock {
		s.blockRepo.Free(inode.DataBlock)
		inode.DataBlock = models.NoBlock
	}
	if mode.Has(models.ModeTruncate) {
		inode.Size = 0
	}
	if mode.Has(models.ModeAppend) {
		return inode.Size
	}
	return 0
}

// unpin drops one open reference and reclaims the inode if nothing else
// refers to it.
func (s *fileSystemService) unpin(ino int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inode := s.inodeRepo.Get(ino)
	inode.OpenCount--
	if inode.OpenCount < 0 {
		panic(fmt.Sprintf("inode %d open count went negative", ino))
	}
	if inode.RefCount == 0 && inode.OpenCount == 0 {
		s.inodeRepo.Delete(ino)
	}
}

func (s *fileSystemService) lockHandle(fh int) (*repository.OpenFileEntry, error) {
	entry, err := s.fileRepo.Get(fh)
	if err != nil {
		return nil, fromRepository(err, fmt.Sprintf("handle %d", fh))
	}
	if !entry.Lock() {
		return nil, newError(kerrors.EBADF, "handle %d: invalid file handle", fh)
	}
	return entry, nil
}

// parsePath validates a root-relative path and returns the entry name.
func parsePath(path string) (string, error) {
	name, ok := strings.CutPrefix(path, "/")
	switch {
	case !ok || name == "":
		return "", newError(kerrors.EINVAL, "%q: path must be /name", path)
	case strings.ContainsAny(name, "/\x00"):
		return "", newError(kerrors.EINVAL, "%q: nested paths are not supported", path)
	case len(name) > binary.DirentNameLen:
		return "", newError(kerrors.EINVAL, "%q: name longer than %d bytes", path, binary.DirentNameLen)
	}
	return name, nil
}
