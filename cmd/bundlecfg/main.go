package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/bundlecfg/cmd/bundlecfg/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug mode." env:"BUNDLECFG_DEBUG"`
		Config  string           `help:"Path to the configuration file (default: bundle.config.{yaml,yml,json} in the root)." short:"c" type:"path" env:"BUNDLECFG_CONFIG"`
		Root    string           `help:"Project root that relative paths resolve against (default: the configuration file directory)." type:"path" env:"BUNDLECFG_ROOT"`
		Version kong.VersionFlag `help:"Print version and exit."`

		Resolve commands.ResolveCmd `cmd:"" help:"Print the resolved configuration."`
		Build   commands.BuildCmd   `cmd:"" help:"Build for production."`
		Serve   commands.ServeCmd   `cmd:"" help:"Start the development server with rebuild on change."`
		Preview commands.PreviewCmd `cmd:"" help:"Serve the production build."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("bundlecfg"),
		kong.Description("Resolve front-end build configuration and drive esbuild with it."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigFile: cli.Config,
		Root:       cli.Root,
		Stdout:     os.Stdout,
	})
	cmd.FatalIfErrorf(err)
}
