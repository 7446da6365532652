// Package fetch retrieves fragment text by locator and keeps the latest
// result for one preview instance.
package fetch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/validation"
)

// DefaultMaxBytes caps fetched fragments at 1 MiB.
const DefaultMaxBytes int64 = 1 << 20

// AssetExtensions lists the file types the asset store hands out.
var AssetExtensions = []string{
	".svg", ".html", ".htm", ".pdf",
	".png", ".jpg", ".jpeg", ".gif", ".webp",
	".mp4", ".webm", ".ogg", ".mp3", ".vtt",
	".css", ".js",
}

// Loader resolves a locator to fragment text.
type Loader interface {
	Load(ctx context.Context, locator string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, locator string) (string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, locator string) (string, error) {
	return f(ctx, locator)
}

// HTTPLoaderConfig configures an HTTPLoader.
type HTTPLoaderConfig struct {
	// BaseURL resolves site-relative locators. Without it only absolute
	// http/https locators can be loaded.
	BaseURL   string
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

// HTTPLoader loads fragments over HTTP.
type HTTPLoader struct {
	client    *http.Client
	base      *url.URL
	maxBytes  int64
	userAgent string
}

// NewHTTPLoader validates cfg and builds a loader. No request timeout is
// set; the caller's context bounds each load.
func NewHTTPLoader(cfg HTTPLoaderConfig) (*HTTPLoader, error) {
	l := &HTTPLoader{
		client:    cfg.Client,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
	if l.client == nil {
		l.client = &http.Client{}
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxBytes
	}
	if l.userAgent == "" {
		l.userAgent = "safepreview"
	}

	if cfg.BaseURL != "" {
		if err := validation.ValidateLocator(cfg.BaseURL); err != nil || !validation.IsRemote(cfg.BaseURL) {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"fetch base URL must be an absolute http/https URL: "+cfg.BaseURL)
		}
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
		}
		l.base = base
	}

	return l, nil
}

// Load fetches locator. Non-2xx responses and bodies larger than the
// configured limit are errors.
func (l *HTTPLoader) Load(ctx context.Context, locator string) (string, error) {
	target, err := l.resolve(locator)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchFailed, "building request", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "image/svg+xml, text/html;q=0.9, text/plain;q=0.8")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchFailed, "fetching "+target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.NewNetworkError(errors.ErrCodeFetchStatus,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).
			WithContext("url", target).
			WithContext("status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchFailed, "reading body", err)
	}
	if int64(len(body)) > l.maxBytes {
		return "", errors.NewNetworkError(errors.ErrCodeFetchTooLarge,
			fmt.Sprintf("response exceeds %d bytes", l.maxBytes), nil).
			WithContext("url", target).
			WithContext("elapsed", time.Since(start).String())
	}

	return string(body), nil
}

func (l *HTTPLoader) resolve(locator string) (string, error) {
	if err := validation.ValidateLocator(locator); err != nil {
		return "", err
	}
	if validation.IsRemote(locator) {
		return locator, nil
	}
	if l.base == nil {
		return "", errors.ErrInvalidLocator(locator, fmt.Errorf("no base URL for site-relative locator"))
	}

	ref, err := url.Parse(locator)
	if err != nil {
		return "", errors.ErrInvalidLocator(locator, err)
	}

	return l.base.ResolveReference(ref).String(), nil
}

// FSLoader loads site-relative locators from a filesystem, typically the
// embedded site assets.
type FSLoader struct {
	fsys     fs.FS
	maxBytes int64
}

// NewFSLoader creates a loader over fsys.
func NewFSLoader(fsys fs.FS, maxBytes int64) *FSLoader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &FSLoader{fsys: fsys, maxBytes: maxBytes}
}

// Load reads the file named by locator's path. Remote locators are rejected.
func (l *FSLoader) Load(ctx context.Context, locator string) (string, error) {
	name, err := AssetName(locator)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchFailed, "load cancelled", err)
	}

	info, err := fs.Stat(l.fsys, name)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchStatus, "asset not found: "+locator, err)
	}
	if info.Size() > l.maxBytes {
		return "", errors.NewNetworkError(errors.ErrCodeFetchTooLarge,
			fmt.Sprintf("asset exceeds %d bytes", l.maxBytes), nil).WithContext("locator", locator)
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeFetchFailed, "reading asset "+locator, err)
	}

	return string(data), nil
}

// AssetName converts a site-relative locator into an fs.FS name. Only
// AssetExtensions are accepted.
func AssetName(locator string) (string, error) {
	if err := validation.ValidateLocator(locator); err != nil {
		return "", err
	}
	if validation.IsRemote(locator) {
		return "", errors.ErrInvalidLocator(locator, fmt.Errorf("remote locator given to filesystem loader"))
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", errors.ErrInvalidLocator(locator, err)
	}

	name := strings.TrimPrefix(path.Clean(u.Path), "/")
	if !fs.ValidPath(name) || name == "." {
		return "", errors.ErrPathTraversal(locator)
	}
	if err := validation.ValidateFileExtension(name, AssetExtensions); err != nil {
		return "", errors.WrapSecurity(err, errors.ErrCodeAssetType, "asset type not allowed: "+locator)
	}

	return name, nil
}

// RoutingLoader sends site-relative locators to Local and absolute URLs to
// Remote. A nil Remote rejects absolute URLs.
type RoutingLoader struct {
	Local  Loader
	Remote Loader
}

// Load dispatches locator.
func (r RoutingLoader) Load(ctx context.Context, locator string) (string, error) {
	if validation.IsRemote(locator) {
		if r.Remote == nil {
			return "", errors.ErrInvalidLocator(locator, fmt.Errorf("remote fetching is disabled"))
		}

		return r.Remote.Load(ctx, locator)
	}

	return r.Local.Load(ctx, locator)
}
