package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/plexist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Check verifies the media server connection and lists the providers that would be synced.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Connected to %s at %s\n", r.server.Name(), r.config.Plex.URL)

	providers, err := r.providers(ctx)
	if err != nil {
		r.writePlain("✗ %v\n", err)
		return nil
	}
	for _, p := range providers {
		r.writePlain("✓ %s configured\n", p.Name())
	}
	r.writePlain("Mode: %s\n", r.config.Options().Mode())
	return nil
}

// ConfigInit writes the example configuration to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return fmt.Errorf("%w: --config", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set plex.url and plex.token (or PLEX_URL and PLEX_TOKEN)\n")
	r.writePlain("2. Add spotify or deezer settings\n")
	r.writePlain("3. Run 'plexist check' to test the connection\n")
	return nil
}
