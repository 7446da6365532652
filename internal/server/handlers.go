package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/safepreview/internal/download"
	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/inspect"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
	"github.com/conneroisu/safepreview/internal/validation"
	"github.com/conneroisu/safepreview/internal/version"
	"github.com/conneroisu/safepreview/internal/video"
)

const (
	defaultPreviewLocator = "/img/safe.svg"
	defaultPDFLocator     = "/uploads/sample.pdf"
	maxFormBytes          = 1 << 20
	sniffBytes            = 512
)

func (s *Server) routes(sec *SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(sec.AllowedOrigins))
	r.Use(SecurityMiddleware(sec))
	if s.limiter != nil {
		r.Use(RateLimitMiddleware(s.limiter))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.ws.HandleWebSocket)
	r.Post(cspReportPath, CSPViolationHandler(s.logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/", s.handleIndex)
		r.Get("/articles/{slug}", s.handleArticle)

		r.Get("/demos/svg-preview", s.handleSVGPreview)
		r.Post("/demos/svg-preview", s.handleSVGPreviewInline)
		r.Get("/demos/svg-compare", s.handleSVGCompare)
		r.Get("/demos/pdf-preview", s.handlePDFPreview)
		r.Get("/demos/video", s.handleVideo)

		r.Post("/api/sanitize", s.handleAPISanitize)
		r.Get("/api/profiles", s.handleAPIProfiles)

		for _, prefix := range []string{"img", "uploads", "static", "media"} {
			r.Get("/"+prefix+"/*", s.handleAsset)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, http.StatusNotFound, "Not found",
			messageView("Not found", "There is nothing at "+r.URL.Path+"."))
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", logging.SanitizeForLog(r.URL.Path),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	p := page{Title: title, LiveReload: s.config.Content.Watch, Body: body}
	if err := p.Component().Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), errors.WrapInternal(err, errors.ErrCodeInternalError, "page render failed"),
			"Failed to render page", "path", logging.SanitizeForLog(r.URL.Path))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "", indexView(s.articles.List(), s.articles.Tags()))
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.Get(chi.URLParam(r, "slug"))
	if err != nil {
		s.renderPage(w, r, http.StatusNotFound, "Not found", messageView("Not found", "No such article."))
		return
	}

	s.renderPage(w, r, http.StatusOK, article.Title, articleView(article, s.renderer))
}

// renderOptions reads mode and profile from the query, falling back to the
// configured defaults. Unknown values are rejected rather than guessed.
func (s *Server) renderOptions(r *http.Request) (fragment.Mode, sanitizer.Profile, error) {
	mode := s.config.Mode()
	if v := r.FormValue("mode"); v != "" {
		m, err := fragment.ParseMode(v)
		if err != nil {
			return mode, "", err
		}
		mode = m
	}

	profile := s.config.Profile()
	if v := r.FormValue("profile"); v != "" {
		p, err := sanitizer.ParseProfile(v)
		if err != nil {
			return mode, "", err
		}
		profile = p
	}

	return mode, profile, nil
}

// loadFragment fetches locator through a Source owned by this request.
// Failures yield an empty fragment that keeps the locator.
func (s *Server) loadFragment(ctx context.Context, locator string) (fragment.Fragment, bool) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	src := fetch.NewSource(s.loader, s.logger)
	defer src.Close()

	f, err := src.Load(ctx, locator)
	if err != nil {
		s.logger.Warn(ctx, err, "Fragment load failed",
			"locator", logging.SanitizeForLog(locator),
			"details", errors.GetErrorContext(err))
		return fragment.Fragment{Locator: locator}, false
	}

	return f, !f.IsEmpty()
}

func (s *Server) handleSVGPreview(w http.ResponseWriter, r *http.Request) {
	mode, profile, err := s.renderOptions(r)
	if err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", err.Error()))
		return
	}

	locator := r.URL.Query().Get("src")
	if locator == "" {
		locator = defaultPreviewLocator
	}
	if err := validation.ValidateLocator(locator); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", "Invalid source locator."))
		return
	}

	f, ok := s.loadFragment(r.Context(), locator)
	m := previewModel{
		Locator: locator,
		Mode:    mode,
		Profile: profile,
		Failed:  !ok,
	}
	if ok && download.DispositionFor(download.Classify(locator, contentHead(f.Content))) == download.DownloadOnly {
		link := download.Link{FileURL: locator, FileName: download.FileName(locator)}
		m.Fragment = link.Component()
		m.DownloadOnly = true
	} else {
		m.Fragment = s.renderer.Component(f, mode, profile)
		m.Report = inspect.Inspect(f.Content)
	}

	s.renderPage(w, r, http.StatusOK, "SVG preview", svgPreviewView(m))
}

// contentHead is the prefix download.Classify sniffs.
func contentHead(content string) []byte {
	if len(content) > sniffBytes {
		content = content[:sniffBytes]
	}

	return []byte(content)
}

func (s *Server) handleSVGPreviewInline(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusRequestEntityTooLarge, "Bad request", messageView("Bad request", "Form too large."))
		return
	}

	mode, profile, err := s.renderOptions(r)
	if err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", err.Error()))
		return
	}

	f := fragment.Inline(r.PostFormValue("content"))
	s.renderPage(w, r, http.StatusOK, "SVG preview", svgPreviewView(previewModel{
		Inline:   true,
		Mode:     mode,
		Profile:  profile,
		Fragment: s.renderer.Component(f, mode, profile),
		Report:   inspect.Inspect(f.Content),
		Failed:   f.IsEmpty(),
	}))
}

func (s *Server) handleSVGCompare(w http.ResponseWriter, r *http.Request) {
	fixture := r.URL.Query().Get("type")
	if fixture == "" {
		fixture = "xss"
	}
	locator, ok := fixtureLocator(fixture)
	if !ok {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", "type must be safe or xss."))
		return
	}

	mode := fragment.ModeSanitized
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := fragment.ParseMode(v)
		if err != nil {
			s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", err.Error()))
			return
		}
		mode = m
	}

	f, _ := s.loadFragment(r.Context(), locator)
	s.renderPage(w, r, http.StatusOK, "Compare", svgCompareView(fixture, previewModel{
		Locator:  locator,
		Mode:     mode,
		Profile:  sanitizer.ProfileSVG,
		Fragment: s.renderer.Component(f, mode, sanitizer.ProfileSVG),
		Report:   inspect.Inspect(f.Content),
	}))
}

func (s *Server) handlePDFPreview(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("file")
	if locator == "" {
		locator = defaultPDFLocator
	}
	if err := validation.ValidateLocator(locator); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", "Invalid file locator."))
		return
	}

	link := download.Link{FileURL: locator, FileName: download.FileName(locator)}
	s.renderPage(w, r, http.StatusOK, "PDF preview", pdfPreviewView(link.Component()))
}

// handleVideo renders the widget's initial markup. Query parameters
// override the configured defaults.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	vc := s.config.Video
	q := r.URL.Query()
	if v := q.Get("src"); v != "" {
		vc.Src = v
	}
	if v := q.Get("poster"); v != "" {
		vc.Poster = v
	}
	if v := q.Get("fit"); v != "" {
		vc.Fit = v
	}
	if v := q.Get("orientation"); v != "" {
		vc.Orientation = v
	}
	for name, dst := range map[string]*bool{
		"autoplay":          &vc.Autoplay,
		"muted":             &vc.Muted,
		"loop":              &vc.Loop,
		"show_play_button":  &vc.ShowPlayButton,
		"show_skip_button":  &vc.ShowSkipButton,
		"auto_close_on_end": &vc.AutoCloseOnEnd,
		"canvas_mirroring":  &vc.CanvasMirroring,
		"allow_rotate":      &vc.AllowRotate,
	} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", name+" must be a boolean."))
				return
			}
			*dst = b
		}
	}

	cfg, err := vc.PlayerConfig()
	if err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", err.Error()))
		return
	}

	player, err := video.NewPlayer(cfg, video.NewClip(), video.WithLogger(s.logger))
	if err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "Bad request", messageView("Bad request", err.Error()))
		return
	}
	defer player.Close()

	if err := player.Mount(r.Context()); err != nil {
		s.logger.Warn(r.Context(), err, "Video mount failed")
	}

	s.renderPage(w, r, http.StatusOK, "Video", videoView(player.Component(), player.State().String()))
}

type sanitizeRequest struct {
	Content string `json:"content"`
	Profile string `json:"profile"`
	Mode    string `json:"mode"`
	Inspect bool   `json:"inspect"`
}

type sanitizeResponse struct {
	Output   string            `json:"output"`
	Mode     string            `json:"mode"`
	Profile  string            `json:"profile"`
	Rendered bool              `json:"rendered"`
	Findings []inspect.Finding `json:"findings,omitempty"`
}

func (s *Server) handleAPISanitize(w http.ResponseWriter, r *http.Request) {
	var req sanitizeRequest
	body := http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode := s.config.Mode()
	if req.Mode != "" {
		m, err := fragment.ParseMode(req.Mode)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}
	profile := s.config.Profile()
	if req.Profile != "" {
		p, err := sanitizer.ParseProfile(req.Profile)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		profile = p
	}

	out := s.renderer.String(r.Context(), fragment.Inline(req.Content), mode, profile)
	if mode == fragment.ModeRaw && !s.config.Render.AllowRaw {
		mode = fragment.ModeSanitized
	}

	resp := sanitizeResponse{
		Output:   out,
		Mode:     mode.String(),
		Profile:  string(profile),
		Rendered: out != "",
	}
	if req.Inspect {
		resp.Findings = inspect.Inspect(req.Content).Findings
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": sanitizer.Profiles(),
		"default":  string(s.config.Profile()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	clients := s.ws.GetClients()
	var oldest time.Time
	for _, c := range clients {
		if oldest.IsZero() || c.ConnectedAt.Before(oldest) {
			oldest = c.ConnectedAt
		}
	}
	wsCheck := map[string]interface{}{
		"clients":   len(clients),
		"accepting": !s.ws.IsShutdown(),
	}
	if !oldest.IsZero() {
		wsCheck["oldest_connection"] = oldest.UTC()
	}

	status, code := "healthy", http.StatusOK
	if s.ws.IsShutdown() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"articles":  map[string]interface{}{"count": len(s.articles.List())},
			"websocket": wsCheck,
			"watcher":   map[string]interface{}{"enabled": s.watcher != nil},
		},
	})
}

// handleAsset serves the asset store. Formats without a safe inline
// rendering are forced to download.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name, err := fetch.AssetName(r.URL.Path)
	if err != nil {
		if errors.IsSecurityError(err) {
			logging.LogSecurityEvent(r.Context(), s.logger, "asset_path_rejected", map[string]interface{}{
				"path": logging.SanitizeForLog(r.URL.Path),
				"ip":   clientIP(r),
			})
		}
		http.NotFound(w, r)
		return
	}

	f, err := s.assets.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := fs.ReadFile(s.assets, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		rs = bytes.NewReader(data)
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(rs, head)
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	format := download.Classify(r.URL.Path, head[:n])
	if download.DispositionFor(format) == download.DownloadOnly && !isPassiveAsset(name) {
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	}
	if format == download.FormatSVG {
		// Opening an SVG directly must not run its scripts.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}

	http.ServeContent(w, r, path.Base(name), info.ModTime(), rs)
}

// isPassiveAsset lists the site's own script and style files plus media,
// which the pages load directly.
func isPassiveAsset(name string) bool {
	if strings.HasPrefix(name, "static/") {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".mp4", ".webm", ".ogg", ".mp3":
		return true
	}

	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
