// Package server is the site: articles, the preview demos, the asset store
// and live reload, behind chi with the security middleware in front.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/safepreview/internal/articles"
	"github.com/conneroisu/safepreview/internal/config"
	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
	"github.com/conneroisu/safepreview/internal/validation"
	"github.com/conneroisu/safepreview/internal/watcher"
	"github.com/conneroisu/safepreview/internal/websocket"
	"github.com/conneroisu/safepreview/web"
)

const (
	watchDebounce = 300 * time.Millisecond
	fetchTimeout  = 10 * time.Second
)

// Server serves the site with live reload.
type Server struct {
	config    *config.Config
	logger    logging.Logger
	sanitizer sanitizer.Sanitizer
	renderer  *fragment.Renderer
	articles  *articles.Store
	docs      fs.FS
	assets    fs.FS
	loader    fetch.Loader
	ws        *websocket.WebSocketManager
	limiter   *RateLimiter
	watcher   *watcher.FileWatcher
	handler   http.Handler

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAssets replaces the asset store.
func WithAssets(fsys fs.FS) Option {
	return func(s *Server) { s.assets = fsys }
}

// WithArticles replaces the article tree.
func WithArticles(fsys fs.FS) Option {
	return func(s *Server) { s.docs = fsys }
}

// WithLoader replaces the fragment loader.
func WithLoader(loader fetch.Loader) Option {
	return func(s *Server) { s.loader = loader }
}

// New wires the server from cfg. Content directories in cfg win over the
// embedded sample content.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "configuration is required")
	}

	s := &Server{
		config:    cfg,
		logger:    logging.NewNopLogger(),
		sanitizer: sanitizer.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")

	if s.assets == nil {
		s.assets = contentFS(cfg.Content.AssetsDir, web.Assets())
	}
	if s.docs == nil {
		s.docs = contentFS(cfg.Content.ArticlesDir, web.Articles())
	}
	s.articles = articles.NewStore(s.docs, s.sanitizer, s.logger)
	s.articles.ShowDrafts(cfg.Content.ShowDrafts)

	s.renderer = fragment.NewRenderer(s.sanitizer,
		fragment.WithLogger(s.logger),
		fragment.WithSVGMinify(cfg.Render.MinifySVG),
		fragment.WithAllowRaw(cfg.Render.AllowRaw),
	)

	if s.loader == nil {
		loader, err := newLoader(cfg.Fetch, s.assets)
		if err != nil {
			return nil, err
		}
		s.loader = loader
	}

	origins := cfg.Server.AllowedOrigins
	s.ws = websocket.NewWebSocketManager(
		websocket.OriginValidatorFunc(func(origin string) bool {
			return validation.ValidateOrigin(origin, origins) == nil
		}),
		websocket.WithLogger(s.logger),
		websocket.WithMaxConnectionsPerIP(cfg.Server.MaxWSConnectionsPerIP),
	)

	secConfig := SecurityConfigFromAppConfig(cfg, s.logger)
	if secConfig.RateLimiting != nil && secConfig.RateLimiting.Enabled {
		s.limiter = NewRateLimiter(secConfig.RateLimiting, s.logger)
	}
	s.handler = s.routes(secConfig)

	return s, nil
}

func contentFS(dir string, fallback fs.FS) fs.FS {
	if dir == "" {
		return fallback
	}

	return os.DirFS(dir)
}

// newLoader resolves site paths from assets. With a base URL configured,
// absolute locators on that host are fetched over HTTP; other hosts are
// refused so a query parameter cannot make the server fetch arbitrary URLs.
func newLoader(cfg config.FetchConfig, assets fs.FS) (fetch.Loader, error) {
	routing := fetch.RoutingLoader{Local: fetch.NewFSLoader(assets, cfg.MaxBytes)}
	if cfg.BaseURL == "" {
		return routing, nil
	}

	remote, err := fetch.NewHTTPLoader(fetch.HTTPLoaderConfig{
		BaseURL:   cfg.BaseURL,
		MaxBytes:  cfg.MaxBytes,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid fetch base URL")
	}

	routing.Remote = fetch.LoaderFunc(func(ctx context.Context, locator string) (string, error) {
		u, err := url.Parse(locator)
		if err != nil || !strings.EqualFold(u.Host, base.Host) {
			return "", errors.ErrInvalidLocator(locator, fmt.Errorf("host not allowed: only %s", base.Host))
		}

		return remote.Load(ctx, locator)
	})

	return routing, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start loads the articles, starts the watcher and serves until the
// listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.articles.Reload(ctx); err != nil {
		s.logger.Warn(ctx, err, "Initial article load failed")
	}

	if s.config.Content.Watch {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Live reload disabled")
		}
	}

	listener, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return errors.NewEnhancedError("Failed to start server", err,
			errors.ServerStartError(err, s.config.Server.Port))
	}

	return s.Serve(ctx, listener)
}

// Serve serves on listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.serverMutex.Lock()
	s.httpServer = server
	s.serverMutex.Unlock()

	addr := "http://" + listener.Addr().String()
	s.logger.Info(ctx, "Serving", "url", addr, "environment", s.config.Server.Environment)

	if s.config.Server.Open {
		go s.openBrowser(ctx, addr)
	}

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *Server) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(watchDebounce, s.logger)
	if err != nil {
		return err
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.ContentFilter)
	fw.AddHandler(s.handleContentChange)

	var watched int
	for _, dir := range []string{s.config.Content.ArticlesDir, s.config.Content.AssetsDir} {
		if dir == "" {
			continue
		}
		if err := fw.AddRecursive(dir); err != nil {
			s.logger.Warn(ctx, err, "Cannot watch directory", "dir", dir)
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = fw.Stop()
		return nil
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}
	s.watcher = fw

	return nil
}

// handleContentChange reloads the articles when one changed and tells every
// open page to reload.
func (s *Server) handleContentChange(ctx context.Context, events []watcher.ChangeEvent) error {
	msg := websocket.UpdateMessage{Type: websocket.MessageAssetUpdated}
	if watcher.HasArticleChanges(events) {
		if err := s.articles.Reload(ctx); err != nil {
			s.logger.Warn(ctx, err, "Article reload failed")
		}
		msg.Type = websocket.MessageArticleUpdated
	}
	if len(events) > 0 {
		msg.Target = events[0].Path
	}

	s.logger.Debug(ctx, "Content changed", "events", len(events), "type", msg.Type)
	s.ws.BroadcastMessage(msg)

	return nil
}

func (s *Server) openBrowser(ctx context.Context, target string) {
	if err := validation.ValidateURL(target); err != nil {
		s.logger.Warn(ctx, err, "Not opening browser")
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		s.logger.Warn(ctx, nil, "Cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}

// Shutdown stops the watcher, the live-reload hub, the rate limiter and the
// HTTP server, and returns every error they reported.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down")

		var watcherErr, httpErr error
		if s.watcher != nil {
			watcherErr = s.watcher.Stop()
		}
		wsErr := s.ws.Shutdown(ctx)
		if s.limiter != nil {
			s.limiter.Stop()
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			httpErr = server.Shutdown(ctx)
		}

		s.shutdownErr = errors.CombineErrors(watcherErr, wsErr, httpErr)
	})

	return s.shutdownErr
}
