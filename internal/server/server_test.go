package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/safepreview/internal/config"
	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/watcher"
	ws "github.com/conneroisu/safepreview/internal/websocket"
	"github.com/conneroisu/safepreview/web"
)

const testOrigin = "http://localhost:8080"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			Host:           "localhost",
			AllowedOrigins: []string{testOrigin},
			Environment:    "development",
		},
		Render: config.RenderConfig{
			DefaultMode:    "sanitized",
			DefaultProfile: "svg-profile",
			AllowRaw:       true,
		},
		Fetch: config.FetchConfig{MaxBytes: fetch.DefaultMaxBytes},
		Video: config.VideoConfig{
			Src:            config.DefaultVideoSrc,
			ShowPlayButton: true,
			Fit:            "contain",
			Orientation:    "any",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()

	s, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.articles.Reload(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return s
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	return doc
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestIndexListsPublishedArticles(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	doc := document(t, rec)
	links := doc.Find("ul.articles li > a")
	assert.Equal(t, 3, links.Length())

	var hrefs []string
	links.Each(func(_ int, sel *goquery.Selection) {
		h, _ := sel.Attr("href")
		hrefs = append(hrefs, h)
	})
	assert.Contains(t, hrefs, "/articles/rendering-untrusted-svg")
	assert.NotContains(t, hrefs, "/articles/notes-on-sandboxed-iframes")
	assert.Equal(t, 0, doc.Find(`script[src="/static/livereload.js"]`).Length())
}

func TestIndexShowsDraftsWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Content.ShowDrafts = true
	s := newTestServer(t, cfg)

	doc := document(t, get(t, s, "/"))
	assert.Equal(t, 4, doc.Find("ul.articles li > a").Length())
}

func TestArticlePageIsSanitized(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/articles/rendering-untrusted-svg")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "Rendering untrusted SVG", strings.TrimSpace(doc.Find("article h1").Text()))
	assert.Equal(t, 0, doc.Find("script").Length())
	assert.NotContains(t, doc.Find("article").Text(), "this never reaches the page")
}

func TestMissingArticle(t *testing.T) {
	s := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusNotFound, get(t, s, "/articles/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/articles/notes-on-sandboxed-iframes").Code)
}

func TestLiveReloadScriptFollowsWatch(t *testing.T) {
	cfg := testConfig()
	cfg.Content.Watch = true
	s := newTestServer(t, cfg)

	doc := document(t, get(t, s, "/"))
	assert.Equal(t, 1, doc.Find(`script[src="/static/livereload.js"]`).Length())
}

func TestSVGPreview(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		target     string
		status     int
		wantScript bool
		wantSVG    bool
	}{
		{name: "default source", target: "/demos/svg-preview", status: http.StatusOK, wantSVG: true},
		{name: "sanitized xss", target: "/demos/svg-preview?src=/img/xss.svg", status: http.StatusOK, wantSVG: true},
		{name: "raw xss", target: "/demos/svg-preview?src=/img/xss.svg&mode=raw", status: http.StatusOK, wantScript: true, wantSVG: true},
		{name: "missing source", target: "/demos/svg-preview?src=/img/missing.svg", status: http.StatusOK},
		{name: "bad mode", target: "/demos/svg-preview?mode=unsafe", status: http.StatusBadRequest},
		{name: "bad profile", target: "/demos/svg-preview?profile=loose", status: http.StatusBadRequest},
		{name: "relative source", target: "/demos/svg-preview?src=img/safe.svg", status: http.StatusBadRequest},
		{name: "foreign host", target: "/demos/svg-preview?src=http://example.com/a.svg", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}

			doc := document(t, rec)
			fragment := doc.Find("div.fragment")
			require.Equal(t, 1, fragment.Length())
			assert.Equal(t, tt.wantSVG, fragment.Find("svg").Length() > 0)
			assert.Equal(t, tt.wantScript, fragment.Find("script").Length() > 0)
			if !tt.wantScript {
				assert.Equal(t, 0, fragment.Find("[onload]").Length())
			}
		})
	}
}

func TestSVGPreviewKeepsPDFDownloadOnly(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, mode := range []string{"raw", "sanitized"} {
		t.Run(mode, func(t *testing.T) {
			rec := get(t, s, "/demos/svg-preview?src=/uploads/sample.pdf&mode="+mode)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.NotContains(t, rec.Body.String(), "%PDF-")

			doc := document(t, rec)
			link := doc.Find("div.fragment a.download-preview__link")
			require.Equal(t, 1, link.Length())
			h, _ := link.Attr("href")
			assert.Equal(t, "/uploads/sample.pdf", h)
			assert.Equal(t, 0, doc.Find("iframe, embed, object").Length())
			assert.Equal(t, 0, doc.Find("section.findings").Length())
		})
	}
}

func TestSVGPreviewListsFindings(t *testing.T) {
	s := newTestServer(t, testConfig())

	doc := document(t, get(t, s, "/demos/svg-preview?src=/img/xss.svg"))
	findings := doc.Find("section.findings li")
	assert.Greater(t, findings.Length(), 0)
	assert.Contains(t, doc.Find("section.findings").Text(), "Malicious badge")

	clean := document(t, get(t, s, "/demos/svg-preview?src=/img/safe.svg"))
	assert.Contains(t, clean.Find("section.findings").Text(), "No executable constructs found.")
}

func postForm(t *testing.T, s *Server, target, body, origin string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestSVGPreviewInline(t *testing.T) {
	s := newTestServer(t, testConfig())

	body := url.Values{
		"content": {`<svg xmlns="http://www.w3.org/2000/svg"><circle r="5" onclick="alert(1)"/></svg>`},
	}.Encode()

	rec := postForm(t, s, "/demos/svg-preview", body, testOrigin)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	fragment := doc.Find("div.fragment")
	assert.Equal(t, 1, fragment.Find("circle").Length())
	assert.Equal(t, 0, fragment.Find("[onclick]").Length())
	assert.Contains(t, doc.Text(), "pasted markup")
}

func TestSVGPreviewInlineRawIsByteIdentical(t *testing.T) {
	s := newTestServer(t, testConfig())

	content := "<svg onload=\"alert(1)\"><circle/>\x01<text>\xff</text></svg>"
	body := url.Values{"content": {content}, "mode": {"raw"}}.Encode()

	rec := postForm(t, s, "/demos/svg-preview", body, testOrigin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="fragment">`+content+`</div>`)
}

func TestSVGPreviewInlineRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := postForm(t, s, "/demos/svg-preview", "content=x", "http://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postForm(t, s, "/demos/svg-preview", "content=x", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSVGCompare(t *testing.T) {
	s := newTestServer(t, testConfig())

	doc := document(t, get(t, s, "/demos/svg-compare"))
	current := doc.Find(`a[aria-current="true"]`)
	require.Equal(t, 1, current.Length())
	assert.Equal(t, "xss / sanitized", strings.TrimSpace(current.Text()))
	assert.Equal(t, 4, doc.Find(".compare-controls a").Length())

	fragment := doc.Find(`div.fragment[data-mode="sanitized"]`)
	require.Equal(t, 1, fragment.Length())
	assert.Equal(t, 0, fragment.Find("script, foreignObject, foreignobject").Length())

	raw := document(t, get(t, s, "/demos/svg-compare?type=xss&mode=raw"))
	assert.Greater(t, raw.Find(`div.fragment[data-mode="raw"] script`).Length(), 0)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/demos/svg-compare?type=other").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/demos/svg-compare?mode=loose").Code)
}

func TestPDFPreviewIsDownloadOnly(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, target := range []string{"/demos/pdf-preview", "/demos/pdf-preview?file=/uploads/sample.pdf"} {
		rec := get(t, s, target)
		require.Equal(t, http.StatusOK, rec.Code)

		doc := document(t, rec)
		link := doc.Find("a.download-preview__link")
		require.Equal(t, 1, link.Length())

		h, _ := link.Attr("href")
		assert.Equal(t, "/uploads/sample.pdf", h)
		name, ok := link.Attr("download")
		assert.True(t, ok)
		assert.Equal(t, "sample.pdf", name)
		assert.Equal(t, 0, doc.Find("iframe, embed, object").Length())
	}

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/demos/pdf-preview?file=javascript:alert(1)").Code)
}

func TestVideoPage(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/demos/video")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	player := doc.Find("div.video-player")
	require.Equal(t, 1, player.Length())
	state, _ := player.Attr("data-state")
	assert.Equal(t, "idle", state)
	assert.Equal(t, 1, player.Find("video.video-player__media").Length())
	assert.Equal(t, 1, player.Find("button.video-player__play").Length())
	assert.Equal(t, 0, player.Find("button.video-player__skip").Length())

	doc = document(t, get(t, s, "/demos/video?autoplay=true&muted=true&show_skip_button=true"))
	state, _ = doc.Find("div.video-player").Attr("data-state")
	assert.Equal(t, "playing", state)
	assert.Equal(t, 1, doc.Find("button.video-player__skip").Length())

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/demos/video?autoplay=maybe").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/demos/video?fit=stretch").Code)
}

func postJSON(t *testing.T, s *Server, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestAPISanitize(t *testing.T) {
	s := newTestServer(t, testConfig())

	xss, err := fs.ReadFile(web.Assets(), "img/xss.svg")
	require.NoError(t, err)

	rec := postJSON(t, s, "/api/sanitize", sanitizeRequest{Content: string(xss), Inspect: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sanitizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sanitized", resp.Mode)
	assert.Equal(t, "svg-profile", resp.Profile)
	assert.True(t, resp.Rendered)
	assert.NotContains(t, resp.Output, "<script")
	assert.NotContains(t, resp.Output, "onload")
	assert.NotEmpty(t, resp.Findings)
}

func TestAPISanitizeRawNeedsPermission(t *testing.T) {
	cfg := testConfig()
	cfg.Render.AllowRaw = false
	s := newTestServer(t, cfg)

	rec := postJSON(t, s, "/api/sanitize", sanitizeRequest{
		Content: `<svg><script>alert(1)</script></svg>`,
		Mode:    "raw",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sanitizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sanitized", resp.Mode)
	assert.NotContains(t, resp.Output, "<script")
}

func TestAPISanitizeRawIsByteIdentical(t *testing.T) {
	s := newTestServer(t, testConfig())

	content := "<svg onload=\"alert(1)\"><circle/>\x01</svg>"
	rec := postJSON(t, s, "/api/sanitize", sanitizeRequest{Content: content, Mode: "raw", Inspect: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sanitizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "raw", resp.Mode)
	assert.Equal(t, content, resp.Output)
	assert.NotEmpty(t, resp.Findings)
}

func TestAPISanitizeRejectsBadInput(t *testing.T) {
	s := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusBadRequest,
		postJSON(t, s, "/api/sanitize", sanitizeRequest{Content: "<b>x</b>", Profile: "loose"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		postJSON(t, s, "/api/sanitize", sanitizeRequest{Content: "<b>x</b>", Mode: "unsafe"}).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sanitize", strings.NewReader("{"))
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIProfiles(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/api/profiles")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
		Default string `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Profiles, 3)
	assert.Equal(t, "svg-profile", resp.Default)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])

	checks, ok := resp["checks"].(map[string]interface{})
	require.True(t, ok)
	articles, ok := checks["articles"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, articles["count"])
	live, ok := checks["websocket"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 0, live["clients"])
	assert.Equal(t, true, live["accepting"])

	require.NoError(t, s.ws.Shutdown(context.Background()))
	rec = get(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shutting_down", resp["status"])
}

func TestServerOptions(t *testing.T) {
	assets := fstest.MapFS{
		"img/badge.svg":  {Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect width="2" height="2"/></svg>`)},
		"img/report.svg": {Data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")},
	}
	docs := fstest.MapFS{
		"only.md": {Data: []byte("---\ntitle: Only Article\n---\nbody")},
	}
	local := fetch.NewFSLoader(assets, 0)
	loads := make(chan string, 4)
	loader := fetch.LoaderFunc(func(ctx context.Context, locator string) (string, error) {
		loads <- locator
		return local.Load(ctx, locator)
	})

	s := newTestServer(t, testConfig(), WithAssets(assets), WithArticles(docs), WithLoader(loader))

	index := document(t, get(t, s, "/"))
	assert.Contains(t, index.Text(), "Only Article")
	assert.Equal(t, http.StatusOK, get(t, s, "/articles/only-article").Code)

	preview := document(t, get(t, s, "/demos/svg-preview?src=/img/badge.svg"))
	assert.Equal(t, 1, preview.Find("div.fragment rect").Length())
	assert.Equal(t, "/img/badge.svg", <-loads)

	rec := get(t, s, "/demos/svg-preview?src=/img/report.svg&mode=raw")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "%PDF-")
	assert.Equal(t, 1, document(t, rec).Find("a.download-preview__link").Length())
	assert.Equal(t, "/img/report.svg", <-loads)

	asset := get(t, s, "/img/report.svg")
	require.Equal(t, http.StatusOK, asset.Code)
	assert.Equal(t, "attachment; filename=report.svg", asset.Header().Get("Content-Disposition"))
	assert.Equal(t, http.StatusNotFound, get(t, s, "/img/sample.pdf").Code)
}

func TestAssets(t *testing.T) {
	s := newTestServer(t, testConfig())

	pdf := get(t, s, "/uploads/sample.pdf")
	require.Equal(t, http.StatusOK, pdf.Code)
	assert.Equal(t, "attachment; filename=sample.pdf", pdf.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(pdf.Body.String(), "%PDF"))

	svg := get(t, s, "/img/xss.svg")
	require.Equal(t, http.StatusOK, svg.Code)
	assert.Empty(t, svg.Header().Get("Content-Disposition"))
	assert.Contains(t, svg.Header().Get("Content-Security-Policy"), "sandbox")

	css := get(t, s, "/static/site.css")
	require.Equal(t, http.StatusOK, css.Code)
	assert.Empty(t, css.Header().Get("Content-Disposition"))

	assert.Equal(t, http.StatusNotFound, get(t, s, "/img/missing.svg").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/img/../uploads/sample.pdf").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/img/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/static/embed.go").Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := get(t, s, "/nowhere")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", strings.TrimSpace(document(t, rec).Find("main h1").Text()))
}

func TestContentChangeBroadcasts(t *testing.T) {
	s := newTestServer(t, testConfig())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", testOrigin)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws",
		&websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.ws.GetConnectedClients() == 1 },
		2*time.Second, 10*time.Millisecond)

	tests := []struct {
		path string
		want string
	}{
		{path: "articles/new.md", want: ws.MessageArticleUpdated},
		{path: "img/logo.svg", want: ws.MessageAssetUpdated},
	}
	for _, tt := range tests {
		err := s.handleContentChange(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: tt.path}})
		require.NoError(t, err)

		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var msg ws.UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, tt.want, msg.Type)
		assert.Equal(t, tt.path, msg.Target)
	}
}

func TestWebSocketLimitFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxWSConnectionsPerIP = 1
	s := newTestServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", testOrigin)
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	first, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer first.Close(websocket.StatusNormalClosure, "")

	_, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: header})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestNewLoaderRestrictsRemoteHosts(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	}))
	defer upstream.Close()

	ctx := context.Background()

	local, err := newLoader(config.FetchConfig{MaxBytes: fetch.DefaultMaxBytes}, web.Assets())
	require.NoError(t, err)
	_, err = local.Load(ctx, upstream.URL+"/a.svg")
	assert.Error(t, err)

	content, err := local.Load(ctx, "/img/safe.svg")
	require.NoError(t, err)
	assert.Contains(t, content, "<svg")

	remote, err := newLoader(config.FetchConfig{BaseURL: upstream.URL, MaxBytes: fetch.DefaultMaxBytes}, web.Assets())
	require.NoError(t, err)

	content, err = remote.Load(ctx, upstream.URL+"/a.svg")
	require.NoError(t, err)
	assert.Contains(t, content, "<svg")

	_, err = remote.Load(ctx, "http://example.com/a.svg")
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), listener) }()

	healthURL := "http://" + listener.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
