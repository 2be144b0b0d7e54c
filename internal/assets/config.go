package assets

import (
	"path/filepath"

	"github.com/wolfeidau/bundlecfg/internal/config"
)

type Config struct {
	// Project root, used as esbuild's working directory
	Root string
	// Entry point paths or glob patterns relative to Root (e.g., "src/main.ts")
	EntryPoints []string
	// Output directory for built files
	OutputDir string
	// Subdirectory of OutputDir for emitted scripts, chunks and static assets
	AssetsDir string
	// Path to metafile
	MetafilePath string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
	// Import prefix aliases with absolute targets
	Aliases []config.Alias
	// Reports whether a file is loaded as a static asset
	IsAsset func(path string) bool
	// Named groups of modules split into their own entry outputs
	ChunkGroups []config.ChunkGroup
	// Plugin descriptors, mapped onto esbuild plugins by name
	Plugins []config.PluginDescriptor
}

// DefaultConfig returns the pipeline configuration for a project with no configuration file
func DefaultConfig(root string) Config {
	return Config{
		Root:         root,
		EntryPoints:  []string{config.DefaultEntry},
		OutputDir:    filepath.Join(root, config.DefaultOutDir),
		AssetsDir:    config.DefaultAssetsDir,
		MetafilePath: filepath.Join(root, config.DefaultOutDir, ".bundlecfg", "meta.json"),
		Minify:       true,
		SourceMap:    false,
		IsAsset:      func(string) bool { return false },
	}
}

// FromResolved maps a resolved configuration onto the pipeline settings
func FromResolved(cfg *config.Config) Config {
	return Config{
		Root:         cfg.Root,
		EntryPoints:  cfg.Build.EntryPoints,
		OutputDir:    cfg.OutPath(),
		AssetsDir:    cfg.Build.AssetsDir,
		MetafilePath: filepath.Join(cfg.OutPath(), ".bundlecfg", "meta.json"),
		Minify:       cfg.Build.Minify,
		SourceMap:    cfg.Build.Sourcemap,
		Aliases:      cfg.Aliases,
		IsAsset:      cfg.IsAsset,
		ChunkGroups:  cfg.Build.ChunkGroups,
		Plugins:      cfg.Plugins,
	}
}
