package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/safepreview/internal/errors"
)

func newAssetServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/img/safe.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(`<svg><circle r="1"/></svg>`))
	})
	mux.HandleFunc("/big.svg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPLoader(t *testing.T) {
	srv := newAssetServer(t)
	loader, err := NewHTTPLoader(HTTPLoaderConfig{
		BaseURL:   srv.URL,
		MaxBytes:  1024,
		UserAgent: "safepreview-test",
	})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("relative locator resolves against base", func(t *testing.T) {
		got, err := loader.Load(ctx, "/img/safe.svg")
		require.NoError(t, err)
		assert.Equal(t, `<svg><circle r="1"/></svg>`, got)
	})

	t.Run("absolute locator", func(t *testing.T) {
		got, err := loader.Load(ctx, srv.URL+"/img/safe.svg")
		require.NoError(t, err)
		assert.Contains(t, got, "<circle")
	})

	t.Run("user agent", func(t *testing.T) {
		got, err := loader.Load(ctx, "/ua")
		require.NoError(t, err)
		assert.Equal(t, "safepreview-test", got)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		_, err := loader.Load(ctx, "/missing.svg")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeFetchStatus))
		assert.True(t, errors.IsNetworkError(err))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := loader.Load(ctx, "/big.svg")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeFetchTooLarge))
	})

	t.Run("script locator rejected", func(t *testing.T) {
		_, err := loader.Load(ctx, "javascript:alert(1)")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidLocator))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loader.Load(cctx, "/img/safe.svg")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeFetchFailed))
	})
}

func TestHTTPLoaderWithoutBase(t *testing.T) {
	loader, err := NewHTTPLoader(HTTPLoaderConfig{})
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), "/img/safe.svg")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidLocator))
}

func TestNewHTTPLoaderRejectsBadBase(t *testing.T) {
	for _, base := range []string{"/relative", "ftp://example.com", "javascript:alert(1)"} {
		_, err := NewHTTPLoader(HTTPLoaderConfig{BaseURL: base})
		assert.Error(t, err, base)
	}
}

func TestFSLoader(t *testing.T) {
	fsys := fstest.MapFS{
		"img/safe.svg": {Data: []byte("<svg/>")},
		"img/big.svg":  {Data: []byte(strings.Repeat("x", 64))},
	}
	loader := NewFSLoader(fsys, 32)
	ctx := context.Background()

	got, err := loader.Load(ctx, "/img/safe.svg")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", got)

	_, err = loader.Load(ctx, "/img/missing.svg")
	assert.True(t, errors.HasCode(err, errors.ErrCodeFetchStatus))

	_, err = loader.Load(ctx, "/img/big.svg")
	assert.True(t, errors.HasCode(err, errors.ErrCodeFetchTooLarge))

	_, err = loader.Load(ctx, "https://example.com/img/safe.svg")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidLocator))

	_, err = loader.Load(ctx, "/")
	assert.True(t, errors.HasCode(err, errors.ErrCodePathTraversal))
}

func TestAssetName(t *testing.T) {
	name, err := AssetName("/uploads/test.pdf?download=1")
	require.NoError(t, err)
	assert.Equal(t, "uploads/test.pdf", name)

	_, err = AssetName("/img/../../secret")
	assert.Error(t, err)
}

func TestAssetNameRejectsUnlistedTypes(t *testing.T) {
	for _, locator := range []string{"/uploads/.env", "/static/config.yml", "/uploads/run.sh", "/img/noext"} {
		_, err := AssetName(locator)
		require.Error(t, err, locator)
		assert.True(t, errors.IsSecurityError(err), locator)
		assert.True(t, errors.HasCode(err, errors.ErrCodeAssetType), locator)
	}

	name, err := AssetName("/static/site.CSS")
	require.NoError(t, err)
	assert.Equal(t, "static/site.CSS", name)
}

func TestRoutingLoader(t *testing.T) {
	local := LoaderFunc(func(context.Context, string) (string, error) { return "local", nil })
	remote := LoaderFunc(func(context.Context, string) (string, error) { return "remote", nil })
	ctx := context.Background()

	r := RoutingLoader{Local: local, Remote: remote}
	got, _ := r.Load(ctx, "/img/a.svg")
	assert.Equal(t, "local", got)
	got, _ = r.Load(ctx, "https://example.com/a.svg")
	assert.Equal(t, "remote", got)

	_, err := RoutingLoader{Local: local}.Load(ctx, "https://example.com/a.svg")
	assert.Error(t, err)
}
