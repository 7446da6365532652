package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/safepreview/internal/config"
	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/validation"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CSP                 *CSPConfig
	HSTS                *HSTSConfig
	XFrameOptions       string
	XContentTypeNoSniff bool
	ReferrerPolicy      string
	PermissionsPolicy   *PermissionsPolicyConfig
	AllowedOrigins      []string
	OriginExemptPaths   []string
	BlockedUserAgents   []string
	RateLimiting        *RateLimitConfig
	Logger              logging.Logger
}

// CSPConfig holds Content Security Policy configuration
type CSPConfig struct {
	DefaultSrc              []string
	ScriptSrc               []string
	StyleSrc                []string
	ImgSrc                  []string
	ConnectSrc              []string
	FontSrc                 []string
	ObjectSrc               []string
	MediaSrc                []string
	FrameSrc                []string
	WorkerSrc               []string
	FrameAncestors          []string
	BaseURI                 []string
	FormAction              []string
	ReportURI               string
	UpgradeInsecureRequests bool
}

// HSTSConfig holds HTTP Strict Transport Security configuration
type HSTSConfig struct {
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// PermissionsPolicyConfig holds Permissions Policy configuration
type PermissionsPolicyConfig struct {
	Geolocation []string
	Camera      []string
	Microphone  []string
	Payment     []string
	USB         []string
	Fullscreen  []string
	Autoplay    []string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	Enabled           bool
}

// DefaultSecurityConfig returns a secure default configuration. Embedding
// is refused both ways: object-src and frame-src are 'none' so no page can
// load a PDF or HTML document inline, and frame-ancestors is 'none'.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'"},
			StyleSrc:       []string{"'self'", "'unsafe-inline'"},
			ImgSrc:         []string{"'self'", "data:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:"},
			FontSrc:        []string{"'self'"},
			ObjectSrc:      []string{"'none'"},
			MediaSrc:       []string{"'self'", "blob:"},
			FrameSrc:       []string{"'none'"},
			WorkerSrc:      []string{"'self'"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'self'"},
			FormAction:     []string{"'self'"},
			ReportURI:      cspReportPath,
		},
		HSTS: &HSTSConfig{
			MaxAge:            31536000,
			IncludeSubDomains: true,
		},
		XFrameOptions:       "DENY",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy: &PermissionsPolicyConfig{
			Fullscreen: []string{"self"},
			Autoplay:   []string{"self"},
		},
		AllowedOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
		// Browsers send violation reports without an Origin header.
		OriginExemptPaths: []string{cspReportPath},
		RateLimiting: &RateLimitConfig{
			RequestsPerMinute: 1000,
			BurstSize:         50,
			Enabled:           true,
		},
	}
}

// DevelopmentSecurityConfig lets inline handlers run so the raw-mode demos
// actually execute what they show.
func DevelopmentSecurityConfig() *SecurityConfig {
	config := DefaultSecurityConfig()

	config.CSP.ScriptSrc = append(config.CSP.ScriptSrc, "'unsafe-inline'")
	config.HSTS = nil

	config.RateLimiting.RequestsPerMinute = 5000
	config.RateLimiting.BurstSize = 200

	return config
}

// ProductionSecurityConfig returns a strict config for production
func ProductionSecurityConfig() *SecurityConfig {
	config := DefaultSecurityConfig()

	config.CSP.StyleSrc = []string{"'self'"}
	config.CSP.UpgradeInsecureRequests = true
	config.HSTS.Preload = true

	config.RateLimiting.RequestsPerMinute = 100
	config.RateLimiting.BurstSize = 20

	config.AllowedOrigins = []string{}

	return config
}

// SecurityConfigFromAppConfig picks the base config for the environment and
// applies the configured origins.
func SecurityConfigFromAppConfig(cfg *config.Config, logger logging.Logger) *SecurityConfig {
	var sc *SecurityConfig
	switch cfg.Server.Environment {
	case "production":
		sc = ProductionSecurityConfig()
	case "development":
		sc = DevelopmentSecurityConfig()
	default:
		sc = DefaultSecurityConfig()
	}

	if len(cfg.Server.AllowedOrigins) > 0 {
		sc.AllowedOrigins = append([]string(nil), cfg.Server.AllowedOrigins...)
	}
	sc.Logger = logger

	return sc
}

// SecurityMiddleware creates a security middleware with the given configuration
func SecurityMiddleware(secConfig *SecurityConfig) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = DefaultSecurityConfig()
	}
	logger := secConfig.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applySecurityHeaders(w, r, secConfig)

			if isBlockedUserAgent(r.UserAgent(), secConfig.BlockedUserAgents) {
				logging.LogSecurityEvent(r.Context(), logger, "blocked_user_agent", map[string]interface{}{
					"user_agent": logging.SanitizeForLog(r.UserAgent()),
					"ip":         clientIP(r),
				})
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if !isSafeMethod(r.Method) && !isOriginExempt(r.URL.Path, secConfig.OriginExemptPaths) &&
				!isValidOrigin(r, secConfig.AllowedOrigins) {
				logging.LogSecurityEvent(r.Context(), logger, "invalid_origin", map[string]interface{}{
					"origin":  logging.SanitizeForLog(r.Header.Get("Origin")),
					"referer": logging.SanitizeForLog(r.Header.Get("Referer")),
					"ip":      clientIP(r),
					"path":    r.URL.Path,
				})
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOriginExempt(path string, exempt []string) bool {
	for _, p := range exempt {
		if path == p {
			return true
		}
	}

	return false
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// applySecurityHeaders applies all configured security headers
func applySecurityHeaders(w http.ResponseWriter, r *http.Request, config *SecurityConfig) {
	h := w.Header()

	if config.CSP != nil {
		h.Set("Content-Security-Policy", buildCSPHeader(config.CSP))
	}

	if config.HSTS != nil && r.TLS != nil {
		h.Set("Strict-Transport-Security", buildHSTSHeader(config.HSTS))
	}

	if config.XFrameOptions != "" {
		h.Set("X-Frame-Options", config.XFrameOptions)
	}

	if config.XContentTypeNoSniff {
		h.Set("X-Content-Type-Options", "nosniff")
	}

	if config.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", config.ReferrerPolicy)
	}

	if config.PermissionsPolicy != nil {
		h.Set("Permissions-Policy", buildPermissionsPolicyHeader(config.PermissionsPolicy))
	}

	h.Set("X-Download-Options", "noopen")
	h.Set("X-Permitted-Cross-Domain-Policies", "none")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
}

// buildCSPHeader constructs the Content-Security-Policy header value
func buildCSPHeader(csp *CSPConfig) string {
	var directives []string

	addDirective := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, fmt.Sprintf("%s %s", name, strings.Join(values, " ")))
		}
	}

	addDirective("default-src", csp.DefaultSrc)
	addDirective("script-src", csp.ScriptSrc)
	addDirective("style-src", csp.StyleSrc)
	addDirective("img-src", csp.ImgSrc)
	addDirective("connect-src", csp.ConnectSrc)
	addDirective("font-src", csp.FontSrc)
	addDirective("object-src", csp.ObjectSrc)
	addDirective("media-src", csp.MediaSrc)
	addDirective("frame-src", csp.FrameSrc)
	addDirective("worker-src", csp.WorkerSrc)
	addDirective("frame-ancestors", csp.FrameAncestors)
	addDirective("base-uri", csp.BaseURI)
	addDirective("form-action", csp.FormAction)

	if csp.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}

	if csp.ReportURI != "" {
		directives = append(directives, "report-uri "+csp.ReportURI)
	}

	return strings.Join(directives, "; ")
}

// buildHSTSHeader constructs the Strict-Transport-Security header value
func buildHSTSHeader(hsts *HSTSConfig) string {
	header := fmt.Sprintf("max-age=%d", hsts.MaxAge)

	if hsts.IncludeSubDomains {
		header += "; includeSubDomains"
	}

	if hsts.Preload {
		header += "; preload"
	}

	return header
}

// buildPermissionsPolicyHeader constructs the Permissions-Policy header value
func buildPermissionsPolicyHeader(pp *PermissionsPolicyConfig) string {
	var policies []string

	addPolicy := func(name string, values []string) {
		policies = append(policies, fmt.Sprintf("%s=(%s)", name, strings.Join(values, " ")))
	}

	addPolicy("geolocation", pp.Geolocation)
	addPolicy("camera", pp.Camera)
	addPolicy("microphone", pp.Microphone)
	addPolicy("payment", pp.Payment)
	addPolicy("usb", pp.USB)
	addPolicy("fullscreen", pp.Fullscreen)
	addPolicy("autoplay", pp.Autoplay)

	return strings.Join(policies, ", ")
}

// isBlockedUserAgent checks if the user agent is in the blocked list
func isBlockedUserAgent(userAgent string, blockedAgents []string) bool {
	if userAgent == "" {
		return false
	}

	userAgentLower := strings.ToLower(userAgent)
	for _, blocked := range blockedAgents {
		if strings.Contains(userAgentLower, strings.ToLower(blocked)) {
			return true
		}
	}

	return false
}

// isValidOrigin checks the Origin header, falling back to the Referer's
// origin when a browser omits it.
func isValidOrigin(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		if referer := r.Header.Get("Referer"); referer != "" {
			if refererURL, err := url.Parse(referer); err == nil && refererURL.Host != "" {
				origin = refererURL.Scheme + "://" + refererURL.Host
			}
		}
	}

	return validation.ValidateOrigin(origin, allowedOrigins) == nil
}

const cspReportPath = "/csp-report"

// CSPViolationReport is the body browsers POST to the report-uri.
type CSPViolationReport struct {
	CSPReport struct {
		DocumentURI        string `json:"document-uri"`
		Referrer           string `json:"referrer"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		OriginalPolicy     string `json:"original-policy"`
		BlockedURI         string `json:"blocked-uri"`
		StatusCode         int    `json:"status-code"`
		LineNumber         int    `json:"line-number"`
		ColumnNumber       int    `json:"column-number"`
		SourceFile         string `json:"source-file"`
	} `json:"csp-report"`
}

// CSPViolationHandler logs violation reports. In sanitized mode there
// should be none; raw-mode demos produce them for every blocked handler.
func CSPViolationHandler(logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report CSPViolationReport
		body := http.MaxBytesReader(w, r.Body, 64<<10)
		if err := json.NewDecoder(body).Decode(&report); err != nil {
			logger.Warn(r.Context(),
				errors.NewSecurityError(errors.ErrCodeCSPViolation, "unparseable CSP report"),
				"CSP: failed to parse violation report",
				"error", err.Error(),
				"ip", clientIP(r))
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		logging.LogSecurityEvent(r.Context(), logger, "csp_violation", map[string]interface{}{
			"document_uri":       logging.SanitizeForLog(report.CSPReport.DocumentURI),
			"violated_directive": logging.SanitizeForLog(report.CSPReport.ViolatedDirective),
			"blocked_uri":        logging.SanitizeForLog(report.CSPReport.BlockedURI),
			"line_number":        report.CSPReport.LineNumber,
			"ip":                 clientIP(r),
		})

		w.WriteHeader(http.StatusNoContent)
	}
}

// clientIP uses the socket address; forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// corsMiddleware answers preflight requests and reflects allowed origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && validation.ValidateOrigin(origin, allowedOrigins) == nil {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", int(10*time.Minute/time.Second)))
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
