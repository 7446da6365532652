// Package validation holds the input checks shared by the CLI, the site
// server and the fragment sources: locators, filesystem paths, origins and
// asset names.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conneroisu/safepreview/internal/errors"
)

// ValidatePath validates a content directory or asset path.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return errors.ErrPathTraversal(path)
		}
	}

	restrictedPaths := []string{
		"/etc/",
		"/proc/",
		"/sys/",
		"/dev/",
		"/boot/",
	}

	cleanLower := strings.ToLower(filepath.ToSlash(filepath.Clean(path))) + "/"
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(cleanLower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\x00"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidateOrigin checks a request Origin header against allowedOrigins,
// which may hold full origins ("http://localhost:8080") or bare hosts.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return errors.ErrInvalidOrigin(origin).WithCause(fmt.Errorf("origin header is required"))
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return errors.ErrInvalidOrigin(origin).WithCause(err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return errors.ErrInvalidOrigin(origin).
			WithCause(fmt.Errorf("scheme %q not allowed", originURL.Scheme))
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return errors.ErrInvalidOrigin(origin)
}

// ValidateFileExtension validates a file name against an extension allowlist.
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}
