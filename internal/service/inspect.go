package service

import (
	"context"
	"log/slog"

	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/pkg/logging"
)

// Stat describes the node named by path. A symlink is reported as itself.
func (s *fileSystemService) Stat(ctx context.Context, path string) (*models.NodeMeta, error) {
	const op = "service.fileSystemService.Stat"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Stat", slog.String("path", path))

	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}

	name, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.dirRepo.Lookup(name)
	if err != nil {
		logger.Debug("File not found", slog.String("path", path))
		return nil, fromRepository(err, path)
	}

	inode, unlock := s.inodeRepo.RLock(ino)
	defer unlock()

	meta := &models.NodeMeta{
		Ino:      inode.Ino,
		Type:     inode.Type,
		Size:     inode.Size,
		RefCount: inode.RefCount,
		Target:   inode.Target,
	}

	logger.Debug("Stat successful",
		slog.String("path", path),
		slog.Int64("ino", meta.Ino),
		slog.String("type", meta.Type.String()),
		slog.Int64("size", meta.Size),
	)
	return meta, nil
}

func (s *fileSystemService) ReadDir(ctx context.Context) ([]models.Dirent, error) {
	const op = "service.fileSystemService.ReadDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.dirRepo.GetEntries()
	logger.Debug("ReadDir successful", slog.Int("entries", len(entries)))
	return entries, nil
}

func (s *fileSystemService) CountLinks(ctx context.Context, path string) (int, error) {
	const op = "service.fileSystemService.CountLinks"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("CountLinks", slog.String("path", path))

	if s.destroyed.Load() {
		return 0, ErrDestroyed
	}

	name, err := parsePath(path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.dirRepo.Lookup(name)
	if err != nil {
		logger.Debug("File not found", slog.String("path", path))
		return 0, fromRepository(err, path)
	}

	count := s.inodeRepo.Get(ino).RefCount
	logger.Debug("CountLinks successful", slog.Int64("ino", ino), slog.Int("count", count))
	return count, nil
}

// Snapshot copies every live inode, the root entries and file contents. The
// namespace lock is held throughout, so the result is a consistent cut as far
// as names are concerned; each file's content is read under its own lock.
func (s *fileSystemService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	const op = "service.fileSystemService.Snapshot"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.Snapshot{
		Token:    s.token,
		RootIno:  models.RootIno,
		Entries:  s.dirRepo.GetEntries(),
		Contents: make(map[int64][]byte),
	}

	for _, ino := range s.inodeRepo.Live() {
		inode, unlock := s.inodeRepo.RLock(ino)
		snap.Inodes = append(snap.Inodes, *inode)
		if inode.Type == models.NodeTypeFile && inode.DataBlock != models.NoBlock {
			data := s.blockRepo.Get(inode.DataBlock)[:inode.Size]
			snap.Contents[ino] = append([]byte(nil), data...)
		}
		unlock()
	}

	logger.Debug("Snapshot taken",
		slog.String("token", s.token),
		slog.Int("inodes", len(snap.Inodes)),
		slog.Int("entries", len(snap.Entries)),
	)
	return snap, nil
}
