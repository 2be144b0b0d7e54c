package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// StatFunc reports file information for a path, as os.Stat does.
type StatFunc func(name string) (fs.FileInfo, error)

// Resolve validates raw and resolves it against baseDir on the local filesystem.
func Resolve(raw RawConfig, baseDir string) (*Config, error) {
	return ResolveWith(raw, baseDir, os.Stat)
}

// ResolveWith is Resolve with the base directory check delegated to stat.
// It performs no other filesystem access.
func ResolveWith(raw RawConfig, baseDir string, stat StatFunc) (*Config, error) {
	root, err := resolveRoot(baseDir, stat)
	if err != nil {
		return nil, err
	}

	aliases, err := resolveAliases(raw.Resolve.Alias, root)
	if err != nil {
		return nil, err
	}

	patterns, err := mergeAssetPatterns(raw.AssetsInclude)
	if err != nil {
		return nil, err
	}

	server, err := resolveServer(raw.Server)
	if err != nil {
		return nil, err
	}

	build, err := resolveBuild(raw.Build, root)
	if err != nil {
		return nil, err
	}

	plugins := make([]PluginDescriptor, 0, len(raw.Plugins))
	for i, p := range raw.Plugins {
		if p.Name == "" {
			return nil, schemaErrorf("plugins[%d]: name is required", i)
		}
		plugins = append(plugins, p.clone())
	}

	return &Config{
		Root:          root,
		Plugins:       plugins,
		Aliases:       aliases,
		AssetPatterns: patterns,
		Server:        server,
		Build:         build,
	}, nil
}

func resolveRoot(baseDir string, stat StatFunc) (string, error) {
	if baseDir == "" {
		return "", pathErrorf("base directory is required")
	}

	root, err := filepath.Abs(baseDir)
	if err != nil {
		return "", pathErrorf("base directory %q: %v", baseDir, err)
	}

	info, err := stat(root)
	if err != nil {
		return "", pathErrorf("base directory %q: %v", root, err)
	}
	if !info.IsDir() {
		return "", pathErrorf("base directory %q is not a directory", root)
	}

	return root, nil
}

func resolveAliases(entries AliasList, root string) ([]Alias, error) {
	aliases := make([]Alias, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if entry.Key == "" {
			return nil, schemaErrorf("alias key must not be empty")
		}
		if entry.Target == "" {
			return nil, schemaErrorf("alias %q: target path is required", entry.Key)
		}
		if seen[entry.Key] {
			return nil, schemaErrorf("alias %q declared more than once", entry.Key)
		}
		seen[entry.Key] = true

		path, err := joinWithinRoot(root, entry.Target)
		if err != nil {
			return nil, pathErrorf("alias %q: %v", entry.Key, err)
		}
		aliases = append(aliases, Alias{Key: entry.Key, Path: path})
	}

	return aliases, nil
}

// joinWithinRoot joins base and target and cleans the result, failing when
// the ".." segments of target climb above the filesystem root. An absolute
// target ignores base and is walked from the filesystem root.
func joinWithinRoot(base, target string) (string, error) {
	if filepath.IsAbs(target) {
		if err := checkDepth(0, withoutVolume(target), target); err != nil {
			return "", err
		}
		return filepath.Clean(target), nil
	}

	depth := 0
	for _, seg := range strings.Split(withoutVolume(base), "/") {
		if seg != "" {
			depth++
		}
	}

	if err := checkDepth(depth, target, target); err != nil {
		return "", err
	}

	return filepath.Join(base, target), nil
}

// checkDepth walks the segments of p starting depth levels below the
// filesystem root.
func checkDepth(depth int, p, original string) error {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return fmt.Errorf("path %q escapes the filesystem root", original)
			}
		default:
			depth++
		}
	}
	return nil
}

func withoutVolume(p string) string {
	return filepath.ToSlash(strings.TrimPrefix(p, filepath.VolumeName(p)))
}

func mergeAssetPatterns(user []string) ([]string, error) {
	patterns := slices.Clone(DefaultAssetPatterns)
	seen := make(map[string]bool, len(patterns)+len(user))
	for _, p := range patterns {
		seen[p] = true
	}

	for _, p := range user {
		if p == "" {
			return nil, schemaErrorf("assetsInclude: empty pattern")
		}
		if !doublestar.ValidatePattern(p) {
			return nil, schemaErrorf("assetsInclude: malformed glob %q", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, p)
	}

	return patterns, nil
}

func resolveServer(raw *RawServer) (ServerOptions, error) {
	server := ServerOptions{
		Host: DefaultHost,
		Port: DefaultPort,
		CORS: []string{"*"},
	}
	if raw == nil {
		return server, nil
	}

	if raw.Host != nil {
		if *raw.Host == "" {
			return ServerOptions{}, schemaErrorf("server.host must not be empty")
		}
		server.Host = *raw.Host
	}
	if raw.Port != nil {
		if *raw.Port < 0 || *raw.Port > 65535 {
			return ServerOptions{}, schemaErrorf("server.port %d out of range 0-65535", *raw.Port)
		}
		server.Port = *raw.Port
	}
	if raw.Open != nil {
		server.Open = *raw.Open
	}
	if len(raw.CORS) > 0 {
		server.CORS = slices.Clone(raw.CORS)
	}

	return server, nil
}

func resolveBuild(raw RawBuild, root string) (BuildOptions, error) {
	build := BuildOptions{
		OutDir:      cond(raw.OutDir != "", raw.OutDir, DefaultOutDir),
		AssetsDir:   cond(raw.AssetsDir != "", raw.AssetsDir, DefaultAssetsDir),
		EntryPoints: []string{DefaultEntry},
		Minify:      true,
	}

	outPath, err := joinWithinRoot(root, build.OutDir)
	if err != nil {
		return BuildOptions{}, pathErrorf("build.outDir: %v", err)
	}
	if filepath.Clean(outPath) == root {
		return BuildOptions{}, pathErrorf("build.outDir must not be the project root")
	}

	if filepath.IsAbs(build.AssetsDir) {
		return BuildOptions{}, pathErrorf("build.assetsDir %q must be relative to build.outDir", build.AssetsDir)
	}
	if assets := filepath.Clean(build.AssetsDir); assets == ".." || strings.HasPrefix(assets, ".."+string(filepath.Separator)) {
		return BuildOptions{}, pathErrorf("build.assetsDir %q escapes build.outDir", build.AssetsDir)
	}

	if len(raw.EntryPoints) > 0 {
		for i, entry := range raw.EntryPoints {
			if entry == "" {
				return BuildOptions{}, schemaErrorf("build.entryPoints[%d] must not be empty", i)
			}
		}
		build.EntryPoints = slices.Clone(raw.EntryPoints)
	}
	if raw.Minify != nil {
		build.Minify = *raw.Minify
	}
	if raw.Sourcemap != nil {
		build.Sourcemap = *raw.Sourcemap
	}

	groups, err := assignChunks(raw.ManualChunks)
	if err != nil {
		return BuildOptions{}, err
	}
	build.ChunkGroups = groups

	return build, nil
}

// assignChunks validates that each module specifier belongs to at most one
// group and keeps groups in declaration order.
func assignChunks(decls ChunkList) ([]ChunkGroup, error) {
	owner := make(map[string]string)
	names := make(map[string]bool, len(decls))
	groups := make([]ChunkGroup, 0, len(decls))

	for _, decl := range decls {
		if decl.Name == "" {
			return nil, schemaErrorf("build.manualChunks: chunk group name must not be empty")
		}
		if names[decl.Name] {
			return nil, schemaErrorf("build.manualChunks: chunk group %q declared more than once", decl.Name)
		}
		names[decl.Name] = true

		modules := make([]string, 0, len(decl.Modules))
		for _, m := range decl.Modules {
			if m == "" {
				return nil, schemaErrorf("build.manualChunks.%s: empty module specifier", decl.Name)
			}
			if prev, ok := owner[m]; ok {
				if prev == decl.Name {
					continue
				}
				return nil, &DuplicateChunkAssignmentError{Module: m, First: prev, Second: decl.Name}
			}
			owner[m] = decl.Name
			modules = append(modules, m)
		}

		groups = append(groups, ChunkGroup{Name: decl.Name, Modules: modules})
	}

	return groups, nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
