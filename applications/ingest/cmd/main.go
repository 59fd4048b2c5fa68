package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/upfile/applications/ingest/adapters/inmemory"
	"github.com/donmikel/upfile/applications/ingest/adapters/spool"
	"github.com/donmikel/upfile/applications/ingest/config"
	"github.com/donmikel/upfile/applications/ingest/domain"
	"github.com/donmikel/upfile/applications/ingest/services"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

var (
	// version is the service version from git tag.
	version = ""
)

var errRejected = errors.New("manifest has rejected uploads")

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	// It's nice to be able to see panics in Logs, hence we monitor for panics after
	// logger has been bootstrapped.
	defer monitorPanic(logger)

	if err := newRootCommand(logger).ExecuteContext(context.Background()); err != nil {
		level.Error(logger).Log("msg", "command failed", "err", err)
		return exitFailure
	}

	return exitSuccess
}

func newRootCommand(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "upfile",
		Short:         "Moves spooled uploads into storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newIngestCmd(logger),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version == "" {
				return errors.New("version not set")
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newIngestCmd(logger log.Logger) *cobra.Command {
	var (
		configPath string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Move every upload listed in the spool manifest into storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingest(cmd.Context(), configPath, strict, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the config file")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the manifest has rejected uploads")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func ingest(ctx context.Context, configPath string, strict bool, logger log.Logger) error {
	logger.Log("configPath", configPath)

	cfg, err := config.Parse(configPath)
	if err != nil {
		return fmt.Errorf("cannot parse service config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(cfg.Log.Level, level.InfoValue())))

	fs := afero.NewOsFs()
	if err = fs.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return fmt.Errorf("can't create storage dir: %w", err)
	}

	verifier := spool.NewVerifier(fs, cfg.Spool.Dir, logger, cfg.Spool.ManifestPath())

	manifest, err := spool.LoadManifest(fs, cfg.Spool.ManifestPath())
	if err != nil {
		return err
	}

	files, rejected := manifest.Files(verifier.Dir(), domain.WithFs(fs), domain.WithVerifier(verifier))
	for _, r := range rejected {
		level.Warn(logger).Log("msg", "upload rejected",
			"index", r.Index,
			"file", r.File,
			"err", r.Err,
		)
	}
	if strict && len(rejected) > 0 {
		return fmt.Errorf("%w: %d of %d", errRejected, len(rejected), len(manifest.Uploads))
	}

	storedFileStorage := inmemory.NewStoredFileStorage(logger)
	svc := services.NewService(cfg.Storage.Dir, storedFileStorage, logger,
		services.WithFs(fs),
		services.WithWorkers(cfg.Storage.Workers),
	)

	done := make(chan struct{})
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case s := <-sig:
			level.Info(logger).Log("msg", "terminating...")
			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		defer close(done)

		stored, err := svc.StoreAll(ctx, files)
		if err != nil {
			return fmt.Errorf("can't store uploads: %w", err)
		}

		var total int64
		for _, f := range stored {
			total += f.Size
		}
		level.Info(logger).Log("msg", "uploads stored",
			"stored", len(stored),
			"rejected", len(rejected),
			"total_size", humanize.Bytes(uint64(total)),
		)
		return nil
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return err
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return nil
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
