package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/S1riyS/tinyfs/internal/config"
	"github.com/S1riyS/tinyfs/internal/export"
	"github.com/S1riyS/tinyfs/internal/service"
	"github.com/S1riyS/tinyfs/internal/shell"
	"github.com/S1riyS/tinyfs/pkg/database/postgresql"
	"github.com/S1riyS/tinyfs/pkg/logging"
	"github.com/S1riyS/tinyfs/pkg/logging/slogext"
	"github.com/S1riyS/tinyfs/pkg/logging/slogpretty"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	app := &cli.App{
		Name:  "tfs",
		Usage: "in-memory single-volume file storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				EnvVars: []string{"TFS_CONFIG"},
				Usage:   "path to the YAML config; built-in defaults are used if the default path is missing",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{{
			Name:      "run",
			Usage:     "run a script against a fresh volume",
			ArgsUsage: "[SCRIPT]",
			Action:    withVolume(runScript),
		}, {
			Name:      "import",
			Usage:     "copy a host file into a fresh volume and print it",
			ArgsUsage: "HOST_PATH DEST",
			Action:    withVolume(importFile),
		}, {
			Name:      "export",
			Usage:     "run a script, then export the volume to PostgreSQL",
			ArgsUsage: "[SCRIPT]",
			Action:    withVolume(exportVolume),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tfs:", shell.FormatError(err))
		os.Exit(1)
	}
}

type volume struct {
	cfg      *config.Config
	fs       service.FileSystemService
	exporter export.Exporter
}

type volumeAction func(ctx context.Context, c *cli.Context, v *volume) error

// withVolume loads config, sets up logging and formats a fresh volume
// before calling fn.
func withVolume(fn volumeAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if level := c.String("log-level"); level != "" {
			cfg.Log.Level = level
		}

		ctx := context.Background()
		if c.Context != nil {
			ctx = c.Context
		}
		ctx = logging.MakeContextWithLogger(ctx, setupLogger(cfg.Log))
		logger := logging.GetLoggerFromContextWithOp(ctx, "main."+c.Command.Name)

		fs, err := service.NewFileSystemService(ctx, cfg.FS)
		if err != nil {
			return err
		}
		defer fs.Destroy(ctx)

		v := &volume{cfg: cfg, fs: fs}
		if cfg.Database.Enabled {
			db := postgresql.MustNewClient(ctx, cfg.Database)
			defer db.Close()
			v.exporter = export.NewExporter(db, cfg.Database.Schema)
		}

		if err := fn(ctx, c, v); err != nil {
			logger.Debug("Command failed", slogext.Err(err))
			return err
		}
		return nil
	}
}

func runScript(ctx context.Context, c *cli.Context, v *volume) error {
	script, closeScript, err := openScript(c.Args().First())
	if err != nil {
		return err
	}
	defer closeScript()

	return shell.NewShell(v.fs, os.Stdout, v.exporter).Run(ctx, script)
}

func importFile(ctx context.Context, c *cli.Context, v *volume) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
	}
	host, dest := c.Args().Get(0), c.Args().Get(1)

	if err := v.fs.CopyFromExternal(ctx, host, dest); err != nil {
		return err
	}
	return shell.NewShell(v.fs, os.Stdout, nil).Exec(ctx, "cat "+dest)
}

func exportVolume(ctx context.Context, c *cli.Context, v *volume) error {
	if v.exporter == nil {
		return fmt.Errorf("database export is disabled; set database.enabled in the config")
	}

	sh := shell.NewShell(v.fs, os.Stdout, v.exporter)
	if c.Args().Present() {
		script, closeScript, err := openScript(c.Args().First())
		if err != nil {
			return err
		}
		defer closeScript()

		if err := sh.Run(ctx, script); err != nil {
			return err
		}
	}
	return sh.Exec(ctx, "export")
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) && !c.IsSet("config") {
		return config.Default()
	}
	return config.MustLoad(path), nil
}

// openScript opens path, or stdin for "" and "-".
func openScript(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	if cfg.Pretty {
		return setupPrettySlog(cfg.SlogLevel())
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func setupPrettySlog(level slog.Level) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: level,
		},
	}

	handler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(handler)
}
