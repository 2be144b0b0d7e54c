package commands

import (
	"encoding/json"
	"fmt"

	"github.com/wolfeidau/bundlecfg/internal/logger"
	"gopkg.in/yaml.v3"
)

type ResolveCmd struct {
	ServerFlags `embed:""`

	Format  string `help:"Output format." default:"yaml" enum:"yaml,json"`
	OutDir  string `help:"Output directory, relative to the root."`
	Alias   string `help:"Print only the resolved path of this alias key."`
	ChunkOf string `help:"Print only the chunk group this module specifier is assigned to." name:"chunk-of"`
}

func (c *ResolveCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	overrides := c.overrides()
	overrides.OutDir = c.OutDir

	cfg, err := loadConfig(globals, overrides, log)
	if err != nil {
		return err
	}

	if c.Alias != "" {
		path, ok := cfg.AliasPath(c.Alias)
		if !ok {
			return fmt.Errorf("alias %q is not configured", c.Alias)
		}
		_, err := fmt.Fprintln(globals.Stdout, path)
		return err
	}

	if c.ChunkOf != "" {
		group, ok := cfg.ChunkFor(c.ChunkOf)
		if !ok {
			return fmt.Errorf("module %q is not assigned to a chunk group", c.ChunkOf)
		}
		_, err := fmt.Fprintln(globals.Stdout, group)
		return err
	}

	switch c.Format {
	case "json":
		enc := json.NewEncoder(globals.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(globals.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
}
