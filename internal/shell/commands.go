package shell

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/pkg/binary"
)

func (s *Shell) registerCommands() {
	s.commands["create"] = command{"PATH", s.cmdCreate}
	s.commands["write"] = command{"PATH TEXT", s.cmdWrite}
	s.commands["append"] = command{"PATH TEXT", s.cmdAppend}
	s.commands["cat"] = command{"PATH", s.cmdCat}
	s.commands["truncate"] = command{"PATH", s.cmdTruncate}
	s.commands["link"] = command{"TARGET NAME", s.cmdLink}
	s.commands["symlink"] = command{"TARGET NAME", s.cmdSymLink}
	s.commands["unlink"] = command{"PATH", s.cmdUnlink}
	s.commands["ls"] = command{"", s.cmdList}
	s.commands["stat"] = command{"PATH [--raw]", s.cmdStat}
	s.commands["import"] = command{"HOST_PATH DEST", s.cmdImport}
	s.commands["export"] = command{"", s.cmdExport}
}

func (s *Shell) cmdCreate(ctx context.Context, args string) error {
	f, err := fields(args, 1)
	if err != nil {
		return err
	}
	return s.openClose(ctx, f[0], models.ModeCreate)
}

func (s *Shell) cmdTruncate(ctx context.Context, args string) error {
	f, err := fields(args, 1)
	if err != nil {
		return err
	}
	return s.openClose(ctx, f[0], models.ModeTruncate)
}

func (s *Shell) cmdWrite(ctx context.Context, args string) error {
	return s.writeText(ctx, args, models.ModeCreate|models.ModeTruncate)
}

func (s *Shell) cmdAppend(ctx context.Context, args string) error {
	return s.writeText(ctx, args, models.ModeCreate|models.ModeAppend)
}

func (s *Shell) cmdCat(ctx context.Context, args string) (err error) {
	f, err := fields(args, 1)
	if err != nil {
		return err
	}

	fh, err := s.fs.Open(ctx, f[0], 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.fs.Close(ctx, fh); cerr != nil && err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, 256)
	for {
		n, rerr := s.fs.Read(ctx, fh, buf)
		if rerr != nil {
			return rerr
		}
		if n == 0 {
			break
		}
		if _, werr := s.out.Write(buf[:n]); werr != nil {
			return werr
		}
	}
	_, err = io.WriteString(s.out, "\n")
	return err
}

func (s *Shell) cmdLink(ctx context.Context, args string) error {
	f, err := fields(args, 2)
	if err != nil {
		return err
	}
	return s.fs.Link(ctx, f[0], f[1])
}

func (s *Shell) cmdSymLink(ctx context.Context, args string) error {
	f, err := fields(args, 2)
	if err != nil {
		return err
	}
	return s.fs.SymLink(ctx, f[0], f[1])
}

func (s *Shell) cmdUnlink(ctx context.Context, args string) error {
	f, err := fields(args, 1)
	if err != nil {
		return err
	}
	return s.fs.Unlink(ctx, f[0])
}

func (s *Shell) cmdList(ctx context.Context, args string) error {
	if _, err := fields(args, 0); err != nil {
		return err
	}

	entries, err := s.fs.ReadDir(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "%s\t%d\t%s\n", e.Name, e.Ino, e.Type)
	}
	return nil
}

func (s *Shell) cmdStat(ctx context.Context, args string) error {
	f := strings.Fields(args)
	raw := len(f) == 2 && f[1] == "--raw"
	if len(f) != 1 && !raw {
		return ErrUsage
	}

	meta, err := s.fs.Stat(ctx, f[0])
	if err != nil {
		return err
	}

	if raw {
		data, err := binary.EncodeNodeMeta(meta)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, hex.EncodeToString(data))
		return err
	}

	line := fmt.Sprintf("ino=%d type=%s size=%d links=%d", meta.Ino, meta.Type, meta.Size, meta.RefCount)
	if meta.Type == models.NodeTypeSymlink {
		line += " target=" + meta.Target
	}
	_, err = fmt.Fprintln(s.out, line)
	return err
}

func (s *Shell) cmdImport(ctx context.Context, args string) error {
	f, err := fields(args, 2)
	if err != nil {
		return err
	}
	return s.fs.CopyFromExternal(ctx, f[0], f[1])
}

func (s *Shell) cmdExport(ctx context.Context, args string) error {
	if _, err := fields(args, 0); err != nil {
		return err
	}
	if s.exporter == nil {
		return fmt.Errorf("export is not configured")
	}

	snap, err := s.fs.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.exporter.Export(ctx, snap); err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "exported %s\n", snap.Token)
	return err
}

func (s *Shell) openClose(ctx context.Context, path string, mode models.OpenMode) error {
	fh, err := s.fs.Open(ctx, path, mode)
	if err != nil {
		return err
	}
	return s.fs.Close(ctx, fh)
}

// writeText writes the rest of the line to the file. A double-quoted text
// is unquoted first, so escapes like \n work.
func (s *Shell) writeText(ctx context.Context, args string, mode models.OpenMode) (err error) {
	path, text := cutField(args)
	if path == "" {
		return ErrUsage
	}
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("bad quoted text: %w", err)
		}
		text = unquoted
	}

	fh, err := s.fs.Open(ctx, path, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.fs.Close(ctx, fh); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for data := []byte(text); len(data) > 0; {
		n, werr := s.fs.Write(ctx, fh, data)
		if werr != nil {
			return werr
		}
		data = data[n:]
	}
	return nil
}
