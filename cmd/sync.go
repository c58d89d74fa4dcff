package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/plexist/internal/formatter"
	"github.com/desertthunder/plexist/internal/shared"
	"github.com/desertthunder/plexist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync runs sync passes until the process is interrupted.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	lockPath := cmd.String("lock")
	if lockPath == "" {
		lockPath = filepath.Join(filepath.Dir(r.config.Database.Path), "plexist.lock")
	}
	lock, err := shared.AcquireLock(lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()
	r.logger.Debug("acquired instance lock", "path", lock.Path())

	if err := r.connect(ctx); err != nil {
		return err
	}

	db, history, err := r.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	engine := r.newEngine(history)
	opts := r.config.Options()

	r.logger.Info("starting sync loop", "mode", opts.Mode(), "interval", r.config.WaitInterval())
	if err := engine.Loop(ctx, r.providers, opts, r.config.WaitInterval(), nil); err != nil {
		return err
	}
	r.logger.Info("sync loop stopped")
	return nil
}

// Once runs a single sync pass and prints its summary.
func (r *Runner) Once(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	providers, err := r.providers(ctx)
	if err != nil {
		return err
	}

	db, history, err := r.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	quiet := cmd.Bool("quiet")
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if quiet {
				continue
			}
			switch update.Phase {
			case tasks.FetchingProviderPlaylists:
				r.writePlain("\n📥 %s\n", update.Message)
			case tasks.FetchingTracks, tasks.Reconciling:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	report := r.newEngine(history).RunPass(ctx, providers, r.config.Options(), progressCh)
	close(progressCh)
	<-done

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	if _, err := r.output.Write(formatter.PassSummaryText(report)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
