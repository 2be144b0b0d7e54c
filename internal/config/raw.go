package config

import (
	"maps"

	"gopkg.in/yaml.v3"
)

// RawConfig is the declarative configuration as written by the user, before
// defaults are applied and paths are resolved.
type RawConfig struct {
	Plugins       []PluginDescriptor `yaml:"plugins"`
	Resolve       RawResolve         `yaml:"resolve"`
	AssetsInclude []string           `yaml:"assetsInclude"`
	Server        *RawServer         `yaml:"server"`
	Build         RawBuild           `yaml:"build"`
}

type RawResolve struct {
	Alias AliasList `yaml:"alias"`
}

// RawServer uses pointers so an omitted field can be told apart from a zero value.
type RawServer struct {
	Host *string  `yaml:"host"`
	Port *int     `yaml:"port"`
	Open *bool    `yaml:"open"`
	CORS []string `yaml:"cors"`
}

type RawBuild struct {
	OutDir       string    `yaml:"outDir"`
	AssetsDir    string    `yaml:"assetsDir"`
	EntryPoints  []string  `yaml:"entryPoints"`
	Minify       *bool     `yaml:"minify"`
	Sourcemap    *bool     `yaml:"sourcemap"`
	ManualChunks ChunkList `yaml:"manualChunks"`
}

// AliasEntry is one declared alias, target still relative to the base directory.
type AliasEntry struct {
	Key    string
	Target string
}

// AliasList keeps aliases in declaration order.
type AliasList []AliasEntry

func (l *AliasList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return schemaErrorf("line %d: resolve.alias must be a mapping", value.Line)
	}

	seen := make(map[string]bool, len(value.Content)/2)
	out := make(AliasList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var key, target string
		if err := value.Content[i].Decode(&key); err != nil {
			return schemaErrorf("line %d: alias key: %v", value.Content[i].Line, err)
		}
		if err := value.Content[i+1].Decode(&target); err != nil {
			return schemaErrorf("line %d: alias %q must be a string path", value.Content[i+1].Line, key)
		}
		if seen[key] {
			return schemaErrorf("line %d: alias %q declared more than once", value.Content[i].Line, key)
		}
		seen[key] = true
		out = append(out, AliasEntry{Key: key, Target: target})
	}

	*l = out
	return nil
}

// ChunkDecl is one declared chunk group.
type ChunkDecl struct {
	Name    string
	Modules []string
}

// ChunkList keeps chunk groups in declaration order.
type ChunkList []ChunkDecl

func (l *ChunkList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return schemaErrorf("line %d: build.manualChunks must be a mapping", value.Line)
	}

	seen := make(map[string]bool, len(value.Content)/2)
	out := make(ChunkList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name string
		var modules []string
		if err := value.Content[i].Decode(&name); err != nil {
			return schemaErrorf("line %d: chunk name: %v", value.Content[i].Line, err)
		}
		if err := value.Content[i+1].Decode(&modules); err != nil {
			return schemaErrorf("line %d: chunk %q must be a list of module specifiers", value.Content[i+1].Line, name)
		}
		if seen[name] {
			return schemaErrorf("line %d: chunk group %q declared more than once", value.Content[i].Line, name)
		}
		seen[name] = true
		out = append(out, ChunkDecl{Name: name, Modules: modules})
	}

	*l = out
	return nil
}

// PluginDescriptor names a bundler plugin. The configuration layer never
// interprets Options; they are handed to the bundler as declared.
type PluginDescriptor struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// UnmarshalYAML accepts either a bare plugin name or a {name, options} mapping.
func (p *PluginDescriptor) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return schemaErrorf("line %d: plugin: %v", value.Line, err)
		}
		*p = PluginDescriptor{Name: name}
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			if key := value.Content[i].Value; key != "name" && key != "options" {
				return schemaErrorf("line %d: plugin: unknown field %q", value.Content[i].Line, key)
			}
		}
		var raw struct {
			Name    string         `yaml:"name"`
			Options map[string]any `yaml:"options"`
		}
		if err := value.Decode(&raw); err != nil {
			return schemaErrorf("line %d: plugin: %v", value.Line, err)
		}
		*p = PluginDescriptor{Name: raw.Name, Options: raw.Options}
	default:
		return schemaErrorf("line %d: plugin must be a name or a mapping", value.Line)
	}

	if p.Name == "" {
		return schemaErrorf("line %d: plugin name is required", value.Line)
	}
	return nil
}

func (p PluginDescriptor) clone() PluginDescriptor {
	return PluginDescriptor{Name: p.Name, Options: maps.Clone(p.Options)}
}
