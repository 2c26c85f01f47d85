package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/internal/pkg/kerrors"
	"github.com/S1riyS/tinyfs/pkg/logging"
	"github.com/S1riyS/tinyfs/pkg/logging/slogext"
)

const copyChunkSize = 128

// CopyFrom replaces dest with everything read from src. Data is moved in
// small chunks; once the total passes one block the copy stops with a
// capacity error and dest keeps what was written so far.
func (s *fileSystemService) CopyFrom(ctx context.Context, src io.Reader, dest string) (err error) {
	const op = "service.fileSystemService.CopyFrom"

	ctx = logging.EnsureCallID(ctx)
	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("CopyFrom", slog.String("dest", dest))

	fh, err := s.Open(ctx, dest, models.ModeCreate|models.ModeTruncate)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(ctx, fh); cerr != nil && err == nil {
			err = cerr
		}
	}()

	limit := s.blockRepo.Size()
	buf := make([]byte, copyChunkSize)
	total := 0

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			total += n
			if total > limit {
				logger.Debug("Source does not fit in one block",
					slog.String("dest", dest),
					slog.Int("limit", limit),
				)
				return newError(kerrors.EFBIG, "%s: source exceeds %d bytes", dest, limit)
			}

			for chunk := buf[:n]; len(chunk) > 0; {
				w, werr := s.Write(ctx, fh, chunk)
				if werr != nil {
					return werr
				}
				chunk = chunk[w:]
			}
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			logger.Error("Failed to read source", slogext.Err(rerr), slog.String("dest", dest))
			return fmt.Errorf("%s: %w", op, rerr)
		}
	}

	logger.Debug("CopyFrom successful", slog.String("dest", dest), slog.Int("bytes", total))
	return nil
}

func (s *fileSystemService) CopyFromExternal(ctx context.Context, sourcePath string, dest string) error {
	const op = "service.fileSystemService.CopyFromExternal"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if s.destroyed.Load() {
		return ErrDestroyed
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		logger.Error("Failed to open host file", slogext.Err(err), slog.String("source", sourcePath))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	return s.CopyFrom(ctx, f, dest)
}
