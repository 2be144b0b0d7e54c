package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/bundlecfg/internal/assets"
	"github.com/wolfeidau/bundlecfg/internal/config"
	"github.com/wolfeidau/bundlecfg/internal/logger"
)

type BuildCmd struct {
	OutDir      string `help:"Output directory, relative to the root."`
	EmptyOutDir bool   `help:"Remove the output directory before building when it is inside the root." default:"true" negatable:""`
	Sourcemap   bool   `help:"Emit linked source maps regardless of the configuration."`
}

func (c *BuildCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := loadConfig(globals, config.Overrides{OutDir: c.OutDir}, log)
	if err != nil {
		return err
	}

	if c.EmptyOutDir {
		if err := emptyOutDir(cfg); err != nil {
			return err
		}
	}

	pipelineCfg := assets.FromResolved(cfg)
	if c.Sourcemap {
		pipelineCfg.SourceMap = true
	}

	if err := assets.New(pipelineCfg).Build(); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	log.Info().Str("out_dir", cfg.OutPath()).Str("assets_dir", cfg.AssetsPath()).Msg("Build complete")
	return nil
}

// emptyOutDir removes the output directory, refusing to touch anything outside the root.
func emptyOutDir(cfg *config.Config) error {
	rel, err := filepath.Rel(cfg.Root, cfg.OutPath())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if err := os.RemoveAll(cfg.OutPath()); err != nil {
		return fmt.Errorf("failed to empty output directory: %w", err)
	}
	return nil
}
