package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexist/internal/formatter"
	"github.com/desertthunder/plexist/internal/repositories"
	"github.com/desertthunder/plexist/internal/services"
	"github.com/desertthunder/plexist/internal/shared"
	"github.com/desertthunder/plexist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil are built from the resolved configuration on first use.
type Runner struct {
	config    *shared.Config
	server    services.MediaServer
	providers tasks.ProviderFactory
	logger    *log.Logger
	output    io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config    *shared.Config
	Server    services.MediaServer
	Providers tasks.ProviderFactory
	Logger    *log.Logger
	Output    io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:    opts.Config,
		server:    opts.Server,
		providers: opts.Providers,
		logger:    opts.Logger,
		output:    opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, onceCommand, historyCommand, checkCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// setup resolves the configuration snapshot and builds the media server and provider factory.
func (r *Runner) setup(cmd *cli.Command) error {
	if r.config == nil {
		config, err := shared.ResolveConfig(cmd.String("config"), cmd.String("env-file"))
		if err != nil {
			return err
		}
		r.config = config
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	} else {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	}

	if r.server == nil {
		plex, err := services.NewPlexService(r.config.Plex, r.config.RequestTimeout())
		if err != nil {
			return err
		}
		r.server = plex
	}
	if r.providers == nil {
		r.providers = providersFromConfig(r.config, r.logger)
	}
	return nil
}

// connect verifies the media server is reachable. Failure here is fatal for sync commands.
func (r *Runner) connect(ctx context.Context) error {
	r.logger.Info("connecting to media server", "server", r.server.Name(), "url", r.config.Plex.URL)
	if err := r.server.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.server.Name(), err)
	}
	return nil
}

// openHistory opens the run history database. A blank path disables history.
func (r *Runner) openHistory() (*sql.DB, *repositories.RunRepository, error) {
	if r.config.Database.Path == "" {
		return nil, nil, nil
	}

	db, err := shared.OpenDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	shared.ConfigureDatabase(db, 1, 1)
	return db, repositories.NewRunRepository(db), nil
}

func (r *Runner) newEngine(history *repositories.RunRepository) *tasks.SyncEngine {
	opts := tasks.EngineOpts{
		Workers:        r.config.Sync.Workers,
		RateLimit:      r.config.Sync.RateLimit,
		RequestTimeout: r.config.RequestTimeout(),
		Sink:           formatter.NewCSVSink(r.config.Sync.MissingDir),
		Logger:         r.logger,
	}
	if history != nil {
		opts.Recorder = history
	}
	return tasks.NewSyncEngine(r.server, r.server, opts)
}

// providersFromConfig builds a provider for every service with complete settings.
func providersFromConfig(config *shared.Config, logger *log.Logger) tasks.ProviderFactory {
	return func(ctx context.Context) ([]services.Provider, error) {
		var providers []services.Provider

		if config.SpotifyEnabled() {
			spotify, err := services.NewSpotifyService(config.Spotify)
			if err != nil {
				return nil, err
			}
			providers = append(providers, spotify)
		}

		if config.DeezerEnabled() {
			deezer, err := services.NewDeezerService(config.Deezer, config.RequestTimeout())
			if err != nil {
				return nil, err
			}
			deezer.SetLogger(logger)
			providers = append(providers, deezer)
		}

		if len(providers) == 0 {
			return nil, fmt.Errorf("%w: no spotify or deezer settings found", shared.ErrMissingConfig)
		}
		return providers, nil
	}
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
