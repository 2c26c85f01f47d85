// Package shell runs line-oriented scripts against a volume.
//
// Each line holds one command. Blank lines and lines starting with # are
// skipped. A line prefixed with ! must fail; its error is printed and the
// script goes on.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/S1riyS/tinyfs/internal/export"
	"github.com/S1riyS/tinyfs/internal/pkg/kerrors"
	"github.com/S1riyS/tinyfs/internal/service"
	"github.com/S1riyS/tinyfs/pkg/logging"
)

var ErrUsage = errors.New("usage")

type commandFunc func(ctx context.Context, args string) error

type command struct {
	usage string
	run   commandFunc
}

type Shell struct {
	fs       service.FileSystemService
	out      io.Writer
	exporter export.Exporter
	commands map[string]command
}

// NewShell binds a shell to fs. exporter may be nil, in which case the
// export command fails.
func NewShell(fs service.FileSystemService, out io.Writer, exporter export.Exporter) *Shell {
	s := &Shell{
		fs:       fs,
		out:      out,
		exporter: exporter,
		commands: make(map[string]command),
	}
	s.registerCommands()
	return s
}

// Run executes every line of r and stops at the first unexpected result.
func (s *Shell) Run(ctx context.Context, r io.Reader) error {
	const op = "shell.Shell.Run"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		expectFail := false
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			expectFail = true
			line = strings.TrimSpace(rest)
		}

		err := s.Exec(ctx, line)
		switch {
		case expectFail && err == nil:
			return fmt.Errorf("line %d: %q: wanted failure", lineNo, line)
		case expectFail:
			logger.Debug("Expected failure", slog.Int("line", lineNo), slog.String("err", err.Error()))
			fmt.Fprintf(s.out, "error: %s\n", FormatError(err))
		case err != nil:
			return fmt.Errorf("line %d: %q: %w", lineNo, line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	ctx = logging.EnsureCallID(ctx)

	name, args := cutField(line)
	cmd, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	err := cmd.run(ctx, args)
	if errors.Is(err, ErrUsage) {
		return fmt.Errorf("%w: %s %s", ErrUsage, name, cmd.usage)
	}
	return err
}

// FormatError renders err with its errno name when it carries one.
func FormatError(err error) string {
	var serviceErr *service.ServiceError
	if errors.As(err, &serviceErr) {
		return fmt.Sprintf("%s: %s", kerrors.Name(serviceErr.Code), serviceErr.Message)
	}
	return err.Error()
}

// cutField splits off the first whitespace-separated field of s.
func cutField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i+1:], " \t")
}

// fields splits args into exactly n fields.
func fields(args string, n int) ([]string, error) {
	f := strings.Fields(args)
	if len(f) != n {
		return nil, ErrUsage
	}
	return f, nil
}
