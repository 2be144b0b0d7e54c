package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	DefaultHost      = "localhost"
	DefaultPort      = 5173
	DefaultOutDir    = "dist"
	DefaultAssetsDir = "assets"
	DefaultEntry     = "src/main.ts"
)

// DefaultAssetPatterns are the file types always treated as static assets.
var DefaultAssetPatterns = []string{
	// images
	"**/*.apng", "**/*.bmp", "**/*.png", "**/*.jpg", "**/*.jpeg", "**/*.jfif",
	"**/*.pjpeg", "**/*.pjp", "**/*.gif", "**/*.svg", "**/*.ico", "**/*.webp",
	"**/*.avif", "**/*.cur", "**/*.jxl",
	// media
	"**/*.mp4", "**/*.webm", "**/*.ogg", "**/*.mp3", "**/*.wav", "**/*.flac",
	"**/*.aac", "**/*.opus", "**/*.mov", "**/*.m4a", "**/*.vtt",
	// fonts
	"**/*.woff", "**/*.woff2", "**/*.eot", "**/*.ttf", "**/*.otf",
	// other
	"**/*.webmanifest", "**/*.pdf", "**/*.txt",
}

// Config is the resolved configuration handed to the bundler and servers.
// It is built by Resolve and must be treated as read-only afterwards.
type Config struct {
	Root          string             `json:"root" yaml:"root"`
	Plugins       []PluginDescriptor `json:"plugins" yaml:"plugins"`
	Aliases       []Alias            `json:"alias" yaml:"alias"`
	AssetPatterns []string           `json:"assetsInclude" yaml:"assetsInclude"`
	Server        ServerOptions      `json:"server" yaml:"server"`
	Build         BuildOptions       `json:"build" yaml:"build"`
}

// Alias maps a symbolic import prefix to an absolute path.
type Alias struct {
	Key  string `json:"key" yaml:"key"`
	Path string `json:"path" yaml:"path"`
}

type ServerOptions struct {
	Host string   `json:"host" yaml:"host"`
	Port int      `json:"port" yaml:"port"`
	Open bool     `json:"open" yaml:"open"`
	CORS []string `json:"cors" yaml:"cors"`
}

type BuildOptions struct {
	OutDir      string       `json:"outDir" yaml:"outDir"`
	AssetsDir   string       `json:"assetsDir" yaml:"assetsDir"`
	EntryPoints []string     `json:"entryPoints" yaml:"entryPoints"`
	Minify      bool         `json:"minify" yaml:"minify"`
	Sourcemap   bool         `json:"sourcemap" yaml:"sourcemap"`
	ChunkGroups []ChunkGroup `json:"manualChunks" yaml:"manualChunks"`
}

// ChunkGroup is a named set of module specifiers emitted together.
type ChunkGroup struct {
	Name    string   `json:"name" yaml:"name"`
	Modules []string `json:"modules" yaml:"modules"`
}

// Addr returns the dev server listen address.
func (s ServerOptions) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the address a browser should open. Wildcard hosts are shown as localhost.
func (s ServerOptions) URL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = DefaultHost
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port)) + "/"
}

// AliasPath returns the resolved path for an alias key.
func (c *Config) AliasPath(key string) (string, bool) {
	for _, a := range c.Aliases {
		if a.Key == key {
			return a.Path, true
		}
	}
	return "", false
}

// ChunkFor returns the chunk group a module specifier is assigned to.
func (c *Config) ChunkFor(module string) (string, bool) {
	for _, g := range c.Build.ChunkGroups {
		for _, m := range g.Modules {
			if m == module {
				return g.Name, true
			}
		}
	}
	return "", false
}

// IsAsset reports whether path, absolute or relative to Root, matches an asset pattern.
func (c *Config) IsAsset(path string) bool {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(c.Root, path)
		if err != nil {
			return false
		}
		path = rel
	}
	path = filepath.ToSlash(path)
	if strings.HasPrefix(path, "../") {
		return false
	}

	for _, pattern := range c.AssetPatterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// OutPath returns the absolute output directory.
func (c *Config) OutPath() string {
	if filepath.IsAbs(c.Build.OutDir) {
		return c.Build.OutDir
	}
	return filepath.Join(c.Root, c.Build.OutDir)
}

// AssetsPath returns the absolute directory emitted assets are written to.
func (c *Config) AssetsPath() string {
	return filepath.Join(c.OutPath(), c.Build.AssetsDir)
}
