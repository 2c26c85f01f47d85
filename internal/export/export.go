// Package export dumps volume snapshots into PostgreSQL for inspection.
// Nothing is ever read back.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/S1riyS/tinyfs/internal/models"
	"github.com/S1riyS/tinyfs/pkg/database/postgresql"
	"github.com/S1riyS/tinyfs/pkg/logging"
	"github.com/S1riyS/tinyfs/pkg/logging/slogext"
	"github.com/lib/pq"
)

type Exporter interface {
	// Export replaces every row previously exported for snap.Token.
	Export(ctx context.Context, snap *models.Snapshot) error
}

type exporter struct {
	db     postgresql.Client
	schema string
}

func NewExporter(db postgresql.Client, schema string) Exporter {
	return &exporter{db: db, schema: schema}
}

func (e *exporter) Export(ctx context.Context, snap *models.Snapshot) error {
	const op = "export.exporter.Export"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Export", slog.String("token", snap.Token), slog.String("schema", e.schema))

	err := postgresql.WithTransaction(ctx, e.db, func(ctx context.Context) error {
		if err := e.ensureSchema(ctx); err != nil {
			return err
		}
		if err := e.deleteVolume(ctx, snap.Token); err != nil {
			return err
		}
		if err := e.insertVolume(ctx, snap); err != nil {
			return err
		}
		if err := e.insertInodes(ctx, snap); err != nil {
			return err
		}
		if err := e.insertEntries(ctx, snap); err != nil {
			return err
		}
		return e.insertContents(ctx, snap)
	})
	if err != nil {
		logger.Error("Failed to export snapshot", slogext.Err(err), slog.String("token", snap.Token))
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("Snapshot exported",
		slog.String("token", snap.Token),
		slog.Int("inodes", len(snap.Inodes)),
		slog.Int("entries", len(snap.Entries)),
		slog.Int("files", len(snap.Contents)),
	)
	return nil
}

func (e *exporter) ensureSchema(ctx context.Context) error {
	const op = "export.exporter.ensureSchema"

	queries := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(e.schema)),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				token       TEXT PRIMARY KEY,
				root_ino    BIGINT NOT NULL,
				exported_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, e.table("filesystems")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				token      TEXT NOT NULL REFERENCES %s (token) ON DELETE CASCADE,
				ino        BIGINT NOT NULL,
				type       SMALLINT NOT NULL,
				size       BIGINT NOT NULL,
				data_block BIGINT NOT NULL,
				ref_count  INTEGER NOT NULL,
				open_count INTEGER NOT NULL,
				target     TEXT,
				PRIMARY KEY (token, ino)
			)`, e.table("inodes"), e.table("filesystems")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				token TEXT NOT NULL REFERENCES %s (token) ON DELETE CASCADE,
				name  TEXT NOT NULL,
				ino   BIGINT NOT NULL,
				PRIMARY KEY (token, name)
			)`, e.table("directory_entries"), e.table("filesystems")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				token TEXT NOT NULL REFERENCES %s (token) ON DELETE CASCADE,
				ino   BIGINT NOT NULL,
				data  BYTEA NOT NULL,
				PRIMARY KEY (token, ino)
			)`, e.table("file_contents"), e.table("filesystems")),
	}

	db := postgresql.GetDBClient(ctx, e.db)
	for _, query := range queries {
		if _, err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (e *exporter) deleteVolume(ctx context.Context, token string) error {
	const op = "export.exporter.deleteVolume"

	query := fmt.Sprintf(`DELETE FROM %s WHERE token = $1`, e.table("filesystems"))

	db := postgresql.GetDBClient(ctx, e.db)
	if _, err := db.Exec(ctx, query, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *exporter) insertVolume(ctx context.Context, snap *models.Snapshot) error {
	const op = "export.exporter.insertVolume"

	query := fmt.Sprintf(`
		INSERT INTO %s (token, root_ino)
		VALUES ($1, $2)
	`, e.table("filesystems"))

	db := postgresql.GetDBClient(ctx, e.db)
	if _, err := db.Exec(ctx, query, snap.Token, snap.RootIno); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *exporter) insertInodes(ctx context.Context, snap *models.Snapshot) error {
	const op = "export.exporter.insertInodes"

	query := fmt.Sprintf(`
		INSERT INTO %s (token, ino, type, size, data_block, ref_count, open_count, target)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, e.table("inodes"))

	db := postgresql.GetDBClient(ctx, e.db)
	for _, inode := range snap.Inodes {
		_, err := db.Exec(ctx, query,
			snap.Token,
			inode.Ino,
			int16(inode.Type),
			inode.Size,
			inode.DataBlock,
			inode.RefCount,
			inode.OpenCount,
			inode.Target,
		)
		if err != nil {
			return fmt.Errorf("%s: ino %d: %w", op, inode.Ino, err)
		}
	}
	return nil
}

func (e *exporter) insertEntries(ctx context.Context, snap *models.Snapshot) error {
	const op = "export.exporter.insertEntries"

	query := fmt.Sprintf(`
		INSERT INTO %s (token, name, ino)
		VALUES ($1, $2, $3)
	`, e.table("directory_entries"))

	db := postgresql.GetDBClient(ctx, e.db)
	for _, entry := range snap.Entries {
		if _, err := db.Exec(ctx, query, snap.Token, entry.Name, entry.Ino); err != nil {
			return fmt.Errorf("%s: %q: %w", op, entry.Name, err)
		}
	}
	return nil
}

func (e *exporter) insertContents(ctx context.Context, snap *models.Snapshot) error {
	const op = "export.exporter.insertContents"

	query := fmt.Sprintf(`
		INSERT INTO %s (token, ino, data)
		VALUES ($1, $2, $3)
	`, e.table("file_contents"))

	db := postgresql.GetDBClient(ctx, e.db)
	for _, inode := range snap.Inodes {
		data, ok := snap.Contents[inode.Ino]
		if !ok {
			continue
		}
		if _, err := db.Exec(ctx, query, snap.Token, inode.Ino, data); err != nil {
			return fmt.Errorf("%s: ino %d: %w", op, inode.Ino, err)
		}
	}
	return nil
}

func (e *exporter) table(name string) string {
	return pq.QuoteIdentifier(e.schema) + "." + name
}
