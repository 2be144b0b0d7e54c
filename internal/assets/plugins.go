package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/bundlecfg/internal/config"
)

const (
	chunkGroupPrefix    = "chunk-group:"
	chunkGroupNamespace = "chunk-group"
	envModule           = "virtual:env"
	envNamespace        = "virtual-env"
)

// pluginFactory builds an esbuild plugin from a descriptor's options.
type pluginFactory func(options map[string]any) (api.Plugin, error)

var knownPlugins = map[string]pluginFactory{
	"env": envPlugin,
}

// esbuildPlugins returns the plugins needed for the configuration, followed by
// the user declared plugins that have an esbuild equivalent.
func (p *Pipeline) esbuildPlugins() ([]api.Plugin, error) {
	plugins := []api.Plugin{}

	if len(p.config.Aliases) > 0 {
		plugins = append(plugins, aliasPlugin(p.config.Aliases))
	}
	if len(p.config.ChunkGroups) > 0 {
		plugins = append(plugins, chunkGroupPlugin(p.config.Root, p.config.ChunkGroups))
	}
	if p.config.IsAsset != nil {
		plugins = append(plugins, assetPlugin(p.config.IsAsset))
	}

	for _, desc := range p.config.Plugins {
		factory, ok := knownPlugins[desc.Name]
		if !ok {
			log.Warn().Str("plugin", desc.Name).Msg("No esbuild equivalent for plugin, skipping")
			continue
		}
		plugin, err := factory(desc.Options)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", desc.Name, err)
		}
		plugins = append(plugins, plugin)
	}

	return plugins, nil
}

// aliasPlugin rewrites imports that equal an alias key, or start with the key
// followed by "/", onto the alias path. The longest matching key wins.
func aliasPlugin(aliases []config.Alias) api.Plugin {
	sorted := slices.Clone(aliases)
	slices.SortStableFunc(sorted, func(a, b config.Alias) int {
		return len(b.Key) - len(a.Key)
	})

	keys := make([]string, 0, len(sorted))
	for _, a := range sorted {
		keys = append(keys, regexp.QuoteMeta(a.Key))
	}
	filter := "^(?:" + strings.Join(keys, "|") + ")(?:/|$)"

	return api.Plugin{
		Name: "alias",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				target, ok := rewriteAlias(sorted, args.Path)
				if !ok {
					return api.OnResolveResult{}, nil
				}

				result := build.Resolve(target, api.ResolveOptions{
					Importer:   args.Importer,
					ResolveDir: args.ResolveDir,
					Kind:       args.Kind,
					PluginData: args.PluginData,
				})
				if len(result.Errors) > 0 {
					return api.OnResolveResult{Errors: result.Errors}, nil
				}

				return api.OnResolveResult{
					Path:      result.Path,
					Namespace: result.Namespace,
					External:  result.External,
				}, nil
			})
		},
	}
}

// rewriteAlias expects aliases sorted longest key first.
func rewriteAlias(aliases []config.Alias, importPath string) (string, bool) {
	for _, a := range aliases {
		if importPath == a.Key {
			return a.Path, true
		}
		if rest, ok := strings.CutPrefix(importPath, a.Key+"/"); ok {
			return a.Path + "/" + rest, true
		}
	}
	return "", false
}

// assetPlugin loads files matching the asset patterns with the file loader so
// they are copied to the assets directory and imported as URLs.
func assetPlugin(isAsset func(string) bool) api.Plugin {
	return api.Plugin{
		Name: "assets",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				if !isAsset(args.Path) {
					return api.OnLoadResult{}, nil
				}

				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				contents := string(data)

				return api.OnLoadResult{
					Contents: &contents,
					Loader:   api.LoaderFile,
				}, nil
			})
		},
	}
}

// chunkGroupEntries returns one extra entry point per chunk group. The group
// name becomes [name] in EntryNames, so the output is <assetsDir>/<name>-<hash>.js.
func chunkGroupEntries(groups []config.ChunkGroup) []api.EntryPoint {
	entries := make([]api.EntryPoint, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, api.EntryPoint{
			InputPath:  chunkGroupPrefix + g.Name,
			OutputPath: g.Name,
		})
	}
	return entries
}

// chunkGroupPlugin serves the virtual chunk group entries. Each one re-exports
// its modules as namespaces so they are bundled whole into the group output.
func chunkGroupPlugin(root string, groups []config.ChunkGroup) api.Plugin {
	sources := make(map[string]string, len(groups))
	for _, g := range groups {
		sources[g.Name] = chunkGroupSource(g.Modules)
	}

	return api.Plugin{
		Name: "chunk-groups",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(chunkGroupPrefix)}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{
					Path:      strings.TrimPrefix(args.Path, chunkGroupPrefix),
					Namespace: chunkGroupNamespace,
				}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: chunkGroupNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				src, ok := sources[args.Path]
				if !ok {
					return api.OnLoadResult{}, fmt.Errorf("unknown chunk group %q", args.Path)
				}
				return api.OnLoadResult{
					Contents:   &src,
					ResolveDir: root,
					Loader:     api.LoaderJS,
				}, nil
			})
		},
	}
}

func chunkGroupSource(modules []string) string {
	var b strings.Builder
	for i, m := range modules {
		spec, _ := json.Marshal(m)
		fmt.Fprintf(&b, "export * as m%d from %s;\n", i, spec)
	}
	return b.String()
}

// envPlugin exposes environment variables with the configured prefix
// (default "APP_") as the JSON module "virtual:env".
func envPlugin(options map[string]any) (api.Plugin, error) {
	prefix := "APP_"
	if v, ok := options["prefix"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return api.Plugin{}, fmt.Errorf("option prefix must be a non-empty string")
		}
		prefix = s
	}

	return api.Plugin{
		Name: "env",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(envModule) + "$"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: envModule, Namespace: envNamespace}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: envNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				data, err := json.Marshal(prefixedEnv(prefix, os.Environ()))
				if err != nil {
					return api.OnLoadResult{}, err
				}
				contents := string(data)
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJSON}, nil
			})
		},
	}, nil
}

func prefixedEnv(prefix string, environ []string) map[string]string {
	env := map[string]string{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, prefix) {
			env[key] = value
		}
	}
	return env
}
