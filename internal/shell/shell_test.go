package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/S1riyS/tinyfs/internal/config"
	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/internal/service"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write refused")
}

type recordingExporter struct {
	snaps []*models.Snapshot
}

func (e *recordingExporter) Export(ctx context.Context, snap *models.Snapshot) error {
	e.snaps = append(e.snaps, snap)
	return nil
}

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer, *recordingExporter) {
	t.Helper()
	fs, err := service.NewFileSystemService(context.Background(), config.DefaultFS())
	if err != nil {
		t.Fatalf("NewFileSystemService(): unexpected err: %v", err)
	}
	var out bytes.Buffer
	exp := &recordingExporter{}
	return NewShell(fs, &out, exp), &out, exp
}

func TestRunScript(t *testing.T) {
	sh, out, _ := newTestShell(t)

	script := `
# round trip
write /a hello world
cat /a
append /a "!\n"
cat /a
link /a /b
symlink /b /s
cat /s
stat /b
stat /s
truncate /a
cat /b
unlink /a
ls
`
	if err := sh.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run(): unexpected err: %v", err)
	}

	want := strings.Join([]string{
		"hello world",
		"hello world!\n",
		"hello world!\n",
		"ino=1 type=file size=13 links=2",
		"ino=2 type=symlink size=0 links=1 target=/b",
		"",
		"b\t1\tfile",
		"s\t2\tsymlink",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("output:\nwanted `%q`\nfound  `%q`", want, out.String())
	}
}

func TestRunExpectedFailures(t *testing.T) {
	sh, out, _ := newTestShell(t)

	script := "! cat /missing\n! write bad text\n! link /nope /x\n"
	if err := sh.Run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("Run(): unexpected err: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("wanted 3 error lines; found `%q`", out.String())
	}
	for i, prefix := range []string{"error: ENOENT", "error: EINVAL", "error: ENOENT"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Fatalf("line %d: wanted prefix `%s`; found `%s`", i, prefix, lines[i])
		}
	}

	err := sh.Run(context.Background(), strings.NewReader("create /ok\n! cat /ok\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("Run(): wanted failure on line 2; found `%v`", err)
	}
}

func TestRunStopsOnError(t *testing.T) {
	sh, _, _ := newTestShell(t)

	err := sh.Run(context.Background(), strings.NewReader("create /a\n\ncat /b\ncreate /c\n"))
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("Run(): wanted ErrNotFound; found `%v`", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("Run(): wanted line number in `%v`", err)
	}
}

func TestExecUsageErrors(t *testing.T) {
	sh, _, _ := newTestShell(t)
	ctx := context.Background()

	for _, line := range []string{"link /a", "cat", "ls extra", "stat /a --bogus", "unlink"} {
		if err := sh.Exec(ctx, line); !errors.Is(err, ErrUsage) {
			t.Fatalf("Exec(%q): wanted ErrUsage; found `%v`", line, err)
		}
	}
	if err := sh.Exec(ctx, "frobnicate /a"); err == nil {
		t.Fatal("Exec(unknown): wanted error")
	}
}

func TestStatRaw(t *testing.T) {
	sh, out, _ := newTestShell(t)
	ctx := context.Background()

	if err := sh.Exec(ctx, "write /a abc"); err != nil {
		t.Fatalf("Exec(): unexpected err: %v", err)
	}
	if err := sh.Exec(ctx, "stat /a --raw"); err != nil {
		t.Fatalf("Exec(): unexpected err: %v", err)
	}
	// ino=1, type=1, size=3, ref_count=1, empty target.
	want := "0100000000000000" + "0100" + "0300000000000000" + "01000000" + "0000" + "\n"
	if out.String() != want {
		t.Fatalf("stat --raw: wanted `%s`; found `%s`", want, out.String())
	}
}

func TestImportAndExport(t *testing.T) {
	sh, out, exp := newTestShell(t)
	ctx := context.Background()

	host := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(host, []byte("imported"), 0o644); err != nil {
		t.Fatalf("WriteFile(): unexpected err: %v", err)
	}

	script := "import " + host + " /in\ncat /in\nexport\n"
	if err := sh.Run(ctx, strings.NewReader(script)); err != nil {
		t.Fatalf("Run(): unexpected err: %v", err)
	}

	if len(exp.snaps) != 1 {
		t.Fatalf("wanted 1 export; found `%d`", len(exp.snaps))
	}
	if !strings.HasPrefix(out.String(), "imported\nexported ") {
		t.Fatalf("output: found `%q`", out.String())
	}
	if len(exp.snaps[0].Entries) != 1 || exp.snaps[0].Entries[0].Name != "in" {
		t.Fatalf("snapshot entries: found `%v`", exp.snaps[0].Entries)
	}
}

func TestExportNotConfigured(t *testing.T) {
	fs, err := service.NewFileSystemService(context.Background(), config.DefaultFS())
	if err != nil {
		t.Fatalf("NewFileSystemService(): unexpected err: %v", err)
	}
	sh := NewShell(fs, &bytes.Buffer{}, nil)
	if err := sh.Exec(context.Background(), "export"); err == nil {
		t.Fatal("Exec(export): wanted error without exporter")
	}
}

func TestCatReportsOutputErrors(t *testing.T) {
	fs, err := service.NewFileSystemService(context.Background(), config.DefaultFS())
	if err != nil {
		t.Fatalf("NewFileSystemService(): unexpected err: %v", err)
	}
	ctx := context.Background()

	sh := NewShell(fs, failingWriter{}, nil)
	if err := sh.Exec(ctx, "write /a data"); err != nil {
		t.Fatalf("Exec(write): unexpected err: %v", err)
	}
	if err := sh.Exec(ctx, "cat /a"); err == nil || !strings.Contains(err.Error(), "write refused") {
		t.Fatalf("Exec(cat): wanted writer error; found `%v`", err)
	}

	// The handle was still released.
	snap, err := fs.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot(): unexpected err: %v", err)
	}
	for _, inode := range snap.Inodes {
		if inode.OpenCount != 0 {
			t.Fatalf("inode %d: wanted no open handles; found `%d`", inode.Ino, inode.OpenCount)
		}
	}
}
