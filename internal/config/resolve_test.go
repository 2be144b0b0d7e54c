package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func mapFSStat(fsys fstest.MapFS) StatFunc {
	return func(name string) (fs.FileInfo, error) {
		name = strings.TrimPrefix(filepath.ToSlash(name), "/")
		if name == "" {
			name = "."
		}
		return fs.Stat(fsys, name)
	}
}

func projectStat() StatFunc {
	return mapFSStat(fstest.MapFS{
		"project/src/main.ts": &fstest.MapFile{Data: []byte("export {}")},
		"project/README.md":   &fstest.MapFile{Data: []byte("readme")},
	})
}

func ptr[T any](v T) *T {
	return &v
}

func TestResolve_aliasJoinedWithBaseDir(t *testing.T) {
	raw := RawConfig{
		Resolve: RawResolve{Alias: AliasList{{Key: "@", Target: "src"}}},
	}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, []Alias{{Key: "@", Path: "/project/src"}}, cfg.Aliases)

	path, ok := cfg.AliasPath("@")
	require.True(t, ok)
	require.Equal(t, "/project/src", path)
}

func TestResolve_aliases(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name     string
		target   string
		expected string
		errType  error
	}{
		{
			name:     "plain directory",
			target:   "src",
			expected: filepath.Join(base, "src"),
		},
		{
			name:     "dot segments collapsed",
			target:   "./src/../assets/./models",
			expected: filepath.Join(base, "assets", "models"),
		},
		{
			name:     "parent directory",
			target:   "../shared",
			expected: filepath.Join(filepath.Dir(base), "shared"),
		},
		{
			name:     "absolute target kept",
			target:   "/opt/lib/../shared",
			expected: "/opt/shared",
		},
		{
			name:    "escapes filesystem root",
			target:  strings.Repeat("../", 64) + "etc",
			errType: ErrInvalidPath,
		},
		{
			name:    "absolute target escapes filesystem root",
			target:  "/../../etc",
			errType: ErrInvalidPath,
		},
		{
			name:     "absolute target climbs back down",
			target:   "/opt/../etc",
			expected: "/etc",
		},
		{
			name:    "empty target",
			target:  "",
			errType: ErrSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawConfig{Resolve: RawResolve{Alias: AliasList{{Key: "@", Target: tt.target}}}}

			cfg, err := Resolve(raw, base)
			if tt.errType != nil {
				require.ErrorIs(t, err, tt.errType)
				require.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.Len(t, cfg.Aliases, 1)
			require.True(t, filepath.IsAbs(cfg.Aliases[0].Path))
			require.Equal(t, tt.expected, cfg.Aliases[0].Path)
		})
	}
}

func TestResolve_aliasOrderKept(t *testing.T) {
	raw := RawConfig{Resolve: RawResolve{Alias: AliasList{
		{Key: "assets", Target: "assets"},
		{Key: "@", Target: "src"},
		{Key: "~lib", Target: "lib"},
	}}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)

	keys := make([]string, 0, len(cfg.Aliases))
	for _, a := range cfg.Aliases {
		keys = append(keys, a.Key)
	}
	require.Equal(t, []string{"assets", "@", "~lib"}, keys)
}

func TestResolve_aliasValidation(t *testing.T) {
	tests := []struct {
		name    string
		aliases AliasList
	}{
		{name: "empty key", aliases: AliasList{{Key: "", Target: "src"}}},
		{name: "duplicate key", aliases: AliasList{{Key: "@", Target: "src"}, {Key: "@", Target: "lib"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveWith(RawConfig{Resolve: RawResolve{Alias: tt.aliases}}, "/project", projectStat())
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestResolve_baseDir(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Resolve(RawConfig{}, filepath.Join(t.TempDir(), "missing"))
		require.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

		_, err := Resolve(RawConfig{}, file)
		require.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Resolve(RawConfig{}, "")
		require.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("root recorded absolute", func(t *testing.T) {
		cfg, err := ResolveWith(RawConfig{}, "/project/", projectStat())
		require.NoError(t, err)
		require.Equal(t, "/project", cfg.Root)
	})
}

func TestResolve_assetPatternsMerged(t *testing.T) {
	raw := RawConfig{AssetsInclude: []string{"**/*.gltf", "**/*.glb", "**/*.jpg", "**/*.png", "**/*.gltf"}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)

	require.Equal(t, DefaultAssetPatterns, cfg.AssetPatterns[:len(DefaultAssetPatterns)])
	require.Equal(t, []string{"**/*.gltf", "**/*.glb"}, cfg.AssetPatterns[len(DefaultAssetPatterns):])

	require.True(t, cfg.IsAsset("models/robot.gltf"))
	require.True(t, cfg.IsAsset("/project/models/robot.glb"))
	require.True(t, cfg.IsAsset("logo.png"))
	require.False(t, cfg.IsAsset("models/robot.GLTF"))
	require.False(t, cfg.IsAsset("src/main.ts"))
	require.False(t, cfg.IsAsset("/elsewhere/robot.gltf"))
}

func TestResolve_assetPatternValidation(t *testing.T) {
	for _, pattern := range []string{"", "**/*.[gl"} {
		_, err := ResolveWith(RawConfig{AssetsInclude: []string{pattern}}, "/project", projectStat())
		require.ErrorIs(t, err, ErrSchema, "pattern %q", pattern)
	}
}

func TestResolve_serverDefaults(t *testing.T) {
	cfg, err := ResolveWith(RawConfig{}, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, ServerOptions{Host: "localhost", Port: DefaultPort, Open: false, CORS: []string{"*"}}, cfg.Server)
	require.Equal(t, "localhost:5173", cfg.Server.Addr())
}

func TestResolve_serverPartial(t *testing.T) {
	raw := RawConfig{Server: &RawServer{Port: ptr(3000)}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 3000, cfg.Server.Port)
	require.False(t, cfg.Server.Open)
}

func TestResolve_serverExplicit(t *testing.T) {
	raw := RawConfig{Server: &RawServer{Host: ptr("0.0.0.0"), Port: ptr(3000), Open: ptr(true)}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
	require.Equal(t, "http://localhost:3000/", cfg.Server.URL())
	require.True(t, cfg.Server.Open)
}

func TestResolve_serverValidation(t *testing.T) {
	tests := []struct {
		name   string
		server *RawServer
	}{
		{name: "negative port", server: &RawServer{Port: ptr(-1)}},
		{name: "port too large", server: &RawServer{Port: ptr(70000)}},
		{name: "empty host", server: &RawServer{Host: ptr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveWith(RawConfig{Server: tt.server}, "/project", projectStat())
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestResolve_buildDefaults(t *testing.T) {
	cfg, err := ResolveWith(RawConfig{}, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, "dist", cfg.Build.OutDir)
	require.Equal(t, "assets", cfg.Build.AssetsDir)
	require.Equal(t, []string{"src/main.ts"}, cfg.Build.EntryPoints)
	require.True(t, cfg.Build.Minify)
	require.False(t, cfg.Build.Sourcemap)
	require.Empty(t, cfg.Build.ChunkGroups)
	require.Equal(t, "/project/dist", cfg.OutPath())
	require.Equal(t, "/project/dist/assets", cfg.AssetsPath())
}

func TestResolve_buildPathValidation(t *testing.T) {
	tests := []struct {
		name  string
		build RawBuild
	}{
		{name: "out dir is root", build: RawBuild{OutDir: "."}},
		{name: "absolute assets dir", build: RawBuild{AssetsDir: "/tmp/assets"}},
		{name: "assets dir escapes out dir", build: RawBuild{AssetsDir: "../assets"}},
		{name: "absolute out dir escapes filesystem root", build: RawBuild{OutDir: "/../dist"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveWith(RawConfig{Build: tt.build}, "/project", projectStat())
			require.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestResolve_chunkGroups(t *testing.T) {
	raw := RawConfig{Build: RawBuild{ManualChunks: ChunkList{
		{Name: "three", Modules: []string{"three"}},
		{Name: "cannon", Modules: []string{"cannon-es"}},
		{Name: "vendor", Modules: []string{"vue", "element-plus", "vue"}},
	}}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, []ChunkGroup{
		{Name: "three", Modules: []string{"three"}},
		{Name: "cannon", Modules: []string{"cannon-es"}},
		{Name: "vendor", Modules: []string{"vue", "element-plus"}},
	}, cfg.Build.ChunkGroups)

	group, ok := cfg.ChunkFor("element-plus")
	require.True(t, ok)
	require.Equal(t, "vendor", group)

	_, ok = cfg.ChunkFor("lodash")
	require.False(t, ok)
}

func TestResolve_duplicateChunkAssignment(t *testing.T) {
	raw := RawConfig{Build: RawBuild{ManualChunks: ChunkList{
		{Name: "a", Modules: []string{"x"}},
		{Name: "b", Modules: []string{"x"}},
	}}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.Nil(t, cfg)
	require.ErrorIs(t, err, ErrDuplicateChunkAssignment)

	var dup *DuplicateChunkAssignmentError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "x", dup.Module)
	require.Equal(t, "a", dup.First)
	require.Equal(t, "b", dup.Second)
}

func TestResolve_chunkGroupValidation(t *testing.T) {
	tests := []struct {
		name   string
		chunks ChunkList
	}{
		{name: "empty name", chunks: ChunkList{{Name: "", Modules: []string{"x"}}}},
		{name: "duplicate name", chunks: ChunkList{{Name: "a", Modules: []string{"x"}}, {Name: "a", Modules: []string{"y"}}}},
		{name: "empty specifier", chunks: ChunkList{{Name: "a", Modules: []string{""}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveWith(RawConfig{Build: RawBuild{ManualChunks: tt.chunks}}, "/project", projectStat())
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestResolve_pluginsPassedThrough(t *testing.T) {
	raw := RawConfig{Plugins: []PluginDescriptor{
		{Name: "vue"},
		{Name: "env", Options: map[string]any{"prefix": "APP_"}},
	}}

	cfg, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, raw.Plugins, cfg.Plugins)

	raw.Plugins[1].Options["prefix"] = "CHANGED_"
	require.Equal(t, "APP_", cfg.Plugins[1].Options["prefix"])

	_, err = ResolveWith(RawConfig{Plugins: []PluginDescriptor{{}}}, "/project", projectStat())
	require.ErrorIs(t, err, ErrSchema)
}

func TestResolve_idempotent(t *testing.T) {
	raw := RawConfig{
		Plugins:       []PluginDescriptor{{Name: "vue"}},
		Resolve:       RawResolve{Alias: AliasList{{Key: "@", Target: "src"}, {Key: "assets", Target: "assets"}}},
		AssetsInclude: []string{"**/*.gltf", "**/*.glb"},
		Server:        &RawServer{Host: ptr("0.0.0.0"), Port: ptr(3000), Open: ptr(true)},
		Build: RawBuild{
			OutDir:       "dist",
			AssetsDir:    "assets",
			ManualChunks: ChunkList{{Name: "three", Modules: []string{"three"}}},
		},
	}

	first, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	second, err := ResolveWith(raw, "/project", projectStat())
	require.NoError(t, err)
	require.Equal(t, first, second)
}
