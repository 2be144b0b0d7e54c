package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// buildOptions translates the pipeline configuration into esbuild options
func (p *Pipeline) buildOptions() (api.BuildOptions, error) {
	entryPoints, err := p.entryPoints()
	if err != nil {
		return api.BuildOptions{}, err
	}

	plugins, err := p.esbuildPlugins()
	if err != nil {
		return api.BuildOptions{}, err
	}

	names := p.config.AssetsDir + "/[name]-[hash]"

	return api.BuildOptions{
		AbsWorkingDir:       p.config.Root,
		EntryPoints:         entryPoints,
		EntryPointsAdvanced: chunkGroupEntries(p.config.ChunkGroups),
		Bundle:              true,
		Splitting:           true,
		Write:               true,
		JSX:                 api.JSXAutomatic,
		Outdir:              p.config.OutputDir,
		EntryNames:          names,
		ChunkNames:          names,
		AssetNames:          names,
		Format:              api.FormatESModule,
		MinifyWhitespace:    p.config.Minify,
		MinifyIdentifiers:   p.config.Minify,
		MinifySyntax:        p.config.Minify,
		TreeShaking:         api.TreeShakingTrue,
		Sourcemap:           cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:            true,
		Plugins:             plugins,
		LogLevel:            api.LogLevelSilent,
	}, nil
}

// entryPoints expands the configured entry points, which may be glob patterns, relative to Root
func (p *Pipeline) entryPoints() ([]string, error) {
	entryPoints := []string{}
	for _, pattern := range p.config.EntryPoints {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.config.Root, pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		entryPoints = append(entryPoints, matches...)
	}

	if len(entryPoints) == 0 {
		return nil, errors.New("no entry points found")
	}

	return entryPoints, nil
}

// EntryPoint returns the first expanded entry point relative to Root, in the
// form the metafile records it and LoadScripts expects.
func (p *Pipeline) EntryPoint() (string, error) {
	entryPoints, err := p.entryPoints()
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(p.config.Root, entryPoints[0])
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(rel), nil
}

// Build runs esbuild with the configured settings and loads metadata
func (p *Pipeline) Build() error {
	opts, err := p.buildOptions()
	if err != nil {
		return err
	}

	log.Info().Strs("entrypoints", opts.EntryPoints).Int("chunk_groups", len(opts.EntryPointsAdvanced)).Msg("Building assets")

	result := api.Build(opts)

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Str("file", location(msg)).Msg("Build error")
		}
		return errors.New("esbuild failed with errors")
	}

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Str("file", location(msg)).Msg("Build warning")
	}

	for _, file := range result.OutputFiles {
		log.Info().Str("file", file.Path).Msg("Built file")
	}

	return p.storeMetadata(result.Metafile)
}

// Watch starts an incremental esbuild context that rebuilds on source changes
// until ctx is cancelled. Metadata is refreshed after every successful rebuild.
func (p *Pipeline) Watch(ctx context.Context) error {
	opts, err := p.buildOptions()
	if err != nil {
		return err
	}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "metadata",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					for _, msg := range result.Errors {
						log.Error().Str("error", msg.Text).Str("file", location(msg)).Msg("Rebuild error")
					}
					return api.OnEndResult{}, nil
				}

				if err := p.storeMetadata(result.Metafile); err != nil {
					log.Error().Err(err).Msg("Failed to store build metadata")
					return api.OnEndResult{}, nil
				}

				log.Info().Int("outputs", len(result.OutputFiles)).Msg("Rebuilt assets")
				return api.OnEndResult{}, nil
			})
		},
	})

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create esbuild context: %w", ctxErr)
	}

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		buildCtx.Dispose()
		return fmt.Errorf("failed to start watch: %w", err)
	}

	go func() {
		<-ctx.Done()
		buildCtx.Dispose()
		log.Debug().Msg("Stopped watching assets")
	}()

	return nil
}

// storeMetadata writes the metafile and caches its parsed form
func (p *Pipeline) storeMetadata(metafile string) error {
	if err := os.MkdirAll(filepath.Dir(p.config.MetafilePath), 0o750); err != nil {
		return err
	}

	if err := os.WriteFile(p.config.MetafilePath, []byte(metafile), 0600); err != nil {
		return err
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return err
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.mu.Unlock()

	return nil
}

// LoadMetadata reads a metafile written by an earlier build
func (p *Pipeline) LoadMetadata() error {
	data, err := os.ReadFile(p.config.MetafilePath)
	if err != nil {
		return err
	}

	var metadata BuildMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return err
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.mu.Unlock()

	return nil
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint
// and the main entrypoint file path
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", errors.New("assets not built yet, call Build() first")
	}

	scripts := []string{}
	visited := make(map[string]bool)
	var entrypoint string

	// Find the output file for this entrypoint
	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath && filepath.Ext(outputPath) == ".js" {
			entrypoint = p.publicPath(outputPath)
			scripts = append(scripts, entrypoint)
			visited[outputPath] = true
			p.addDependencies(info, &scripts, visited)
			return scripts, entrypoint, nil
		}
	}

	return nil, "", errors.New("entrypoint not found in metadata")
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if !visited[imp.Path] {
			visited[imp.Path] = true
			*scripts = append(*scripts, p.publicPath(imp.Path))

			if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
				p.addDependencies(chunkInfo, scripts, visited)
			}
		}
	}
}

// Handler returns an http.HandlerFunc that renders the given template and entrypoint with its scripts
func (p *Pipeline) Handler(templateName, title, entryPointPath string, contextFn func(ctx context.Context) any) (http.HandlerFunc, error) {
	if p.tmpl == nil {
		return nil, errors.New("template not loaded, use NewWithTemplate")
	}

	if contextFn == nil {
		contextFn = func(ctx context.Context) any {
			return nil
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		scripts, _, err := p.LoadScripts(entryPointPath)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := map[string]any{
			"Title":   title,
			"Scripts": scripts,
			"Context": contextFn(r.Context()),
		}

		if err := p.tmpl.ExecuteTemplate(w, templateName, data); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}, nil
}

func location(msg api.Message) string {
	if msg.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
