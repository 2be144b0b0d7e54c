package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/bundlecfg/internal/assets"
	"github.com/wolfeidau/bundlecfg/internal/config"
	httpmiddleware "github.com/wolfeidau/bundlecfg/internal/http"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigFile string
	Root       string
	Stdout     io.Writer
}

// ServerFlags override the server section of the configuration file.
type ServerFlags struct {
	Host string `help:"Host to bind the server to." env:"BUNDLECFG_HOST"`
	Port int    `help:"Port to bind the server to." env:"BUNDLECFG_PORT"`
	Open *bool  `help:"Open the browser when the server starts." negatable:""`
}

func (f ServerFlags) overrides() config.Overrides {
	return config.Overrides{Host: f.Host, Port: f.Port, Open: f.Open}
}

// PageFlags configure the HTML page served for application routes.
type PageFlags struct {
	Template     string `help:"HTML template rendered with the entry point scripts for application routes." type:"path"`
	TemplateName string `help:"Name of the template to execute." default:"index"`
	Title        string `help:"Page title passed to the template." default:"App"`
}

// loadConfig finds, loads and resolves the configuration. Without an explicit
// file a missing configuration is not an error and every default applies.
func loadConfig(globals *Globals, overrides config.Overrides, log zerolog.Logger) (*config.Config, error) {
	path := globals.ConfigFile
	root := globals.Root

	if path == "" {
		searchDir := root
		if searchDir == "" {
			searchDir = "."
		}
		found, err := config.FindFile(searchDir)
		switch {
		case err == nil:
			path = found
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("dir", searchDir).Msg("No configuration file found, using defaults")
		default:
			return nil, err
		}
	}

	raw := config.RawConfig{}
	if path != "" {
		var err error
		if raw, err = config.LoadFile(path); err != nil {
			return nil, err
		}
		if root == "" {
			root = filepath.Dir(path)
		}
	}
	if root == "" {
		root = "."
	}

	cfg, err := config.Resolve(overrides.Apply(raw), root)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("config", path).
		Str("root", cfg.Root).
		Int("aliases", len(cfg.Aliases)).
		Int("asset_patterns", len(cfg.AssetPatterns)).
		Int("chunk_groups", len(cfg.Build.ChunkGroups)).
		Msg("Resolved configuration")

	return cfg, nil
}

// newPipeline creates the asset pipeline, loading the page template if one is configured
func newPipeline(cfg assets.Config, page PageFlags) (*assets.Pipeline, error) {
	if page.Template == "" {
		return assets.New(cfg), nil
	}
	pipeline, err := assets.NewWithTemplate(cfg, page.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return pipeline, nil
}

// pageHandler renders the first expanded entry point through the template, or returns
// nil when no template is configured and the output directory's index.html is served as is.
func pageHandler(pipeline *assets.Pipeline, page PageFlags) (http.Handler, error) {
	if page.Template == "" {
		return nil, nil
	}
	entry, err := pipeline.EntryPoint()
	if err != nil {
		return nil, err
	}
	handler, err := pipeline.Handler(page.TemplateName, page.Title, entry, nil)
	if err != nil {
		return nil, err
	}
	return handler, nil
}

// newHandler serves the output directory with the middleware stack shared by serve and preview
func newHandler(cfg *config.Config, page http.Handler, dev bool, log zerolog.Logger) http.Handler {
	handler := httpmiddleware.StaticWithFallback(cfg.OutPath(), page)
	if dev {
		handler = httpmiddleware.NoStore()(handler)
	}
	handler = gzhttp.GzipHandler(handler)
	handler = withCORS(cfg.Server.CORS, handler)
	return httpmiddleware.RequestLogger(log)(handler)
}

// withCORS allows cross origin requests for build output from the configured origins.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return middleware.Handler(h)
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// Create HTTP server
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// listenAndServe runs srv until ctx is cancelled, then shuts it down gracefully.
// onListen is called with the bound address once the listener is open.
func listenAndServe(ctx context.Context, srv *http.Server, log zerolog.Logger, onListen func(addr net.Addr)) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	if onListen != nil {
		onListen(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
