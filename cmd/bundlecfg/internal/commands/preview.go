package commands

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/wolfeidau/bundlecfg/internal/assets"
	"github.com/wolfeidau/bundlecfg/internal/logger"
)

type PreviewCmd struct {
	ServerFlags `embed:""`
	PageFlags   `embed:""`
}

func (c *PreviewCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := loadConfig(globals, c.overrides(), log)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.OutPath()); err != nil {
		return fmt.Errorf("output directory not found, run build first: %w", err)
	}

	pipeline, err := newPipeline(assets.FromResolved(cfg), c.PageFlags)
	if err != nil {
		return err
	}

	if c.Template != "" {
		if err := pipeline.LoadMetadata(); err != nil {
			return fmt.Errorf("failed to load build metadata: %w", err)
		}
	}

	page, err := pageHandler(pipeline, c.PageFlags)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(cfg.Server.Addr(), newHandler(cfg, page, false, log))

	return listenAndServe(ctx, srv, log, func(addr net.Addr) {
		log.Info().Str("addr", addr.String()).Str("url", cfg.Server.URL()).Msg("Preview server listening")
		if cfg.Server.Open {
			if err := openBrowser(cfg.Server.URL()); err != nil {
				log.Warn().Err(err).Msg("Failed to open browser")
			}
		}
	})
}
