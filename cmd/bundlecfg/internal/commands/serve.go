package commands

import (
	"context"
	"fmt"
	"net"

	"github.com/wolfeidau/bundlecfg/internal/assets"
	"github.com/wolfeidau/bundlecfg/internal/logger"
)

type ServeCmd struct {
	ServerFlags `embed:""`
	PageFlags   `embed:""`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting dev server")

	cfg, err := loadConfig(globals, c.overrides(), log)
	if err != nil {
		return err
	}

	// development builds favour readable output
	pipelineCfg := assets.FromResolved(cfg)
	pipelineCfg.Minify = false
	pipelineCfg.SourceMap = true

	pipeline, err := newPipeline(pipelineCfg, c.PageFlags)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := pipeline.Watch(watchCtx); err != nil {
		return fmt.Errorf("failed to watch assets: %w", err)
	}

	page, err := pageHandler(pipeline, c.PageFlags)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(cfg.Server.Addr(), newHandler(cfg, page, true, log))

	return listenAndServe(ctx, srv, log, func(addr net.Addr) {
		log.Info().Str("addr", addr.String()).Str("url", cfg.Server.URL()).Msg("Dev server listening")
		if cfg.Server.Open {
			if err := openBrowser(cfg.Server.URL()); err != nil {
				log.Warn().Err(err).Msg("Failed to open browser")
			}
		}
	})
}
