package validation

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/conneroisu/safepreview/internal/errors"
)

// ValidateURL validates the URL handed to the system browser by serve --open.
// Only http/https with a host are accepted, and shell metacharacters are
// rejected because the URL ends up as a process argument.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	dangerous := []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r", " "}
	for _, char := range dangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %q", char)
		}
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// ValidateLocator checks a fragment source locator. A locator is either a
// site-relative path ("/img/safe.svg") or an absolute http/https URL.
// Anything else, including javascript: and data: URIs, protocol-relative
// URLs and relative paths escaping the root, is rejected.
func ValidateLocator(locator string) error {
	if strings.TrimSpace(locator) == "" {
		return errors.ErrInvalidLocator(locator, fmt.Errorf("locator is empty"))
	}

	for _, r := range locator {
		if r < ' ' || r == 0x7f {
			return errors.ErrInvalidLocator(locator, fmt.Errorf("locator contains control characters"))
		}
	}

	if strings.HasPrefix(locator, "//") || strings.HasPrefix(locator, `\\`) {
		return errors.ErrInvalidLocator(locator, fmt.Errorf("protocol-relative locators are not allowed"))
	}

	parsed, err := url.Parse(locator)
	if err != nil {
		return errors.ErrInvalidLocator(locator, err)
	}

	switch parsed.Scheme {
	case "":
		if !strings.HasPrefix(parsed.Path, "/") {
			return errors.ErrInvalidLocator(locator, fmt.Errorf("relative locators must start with /"))
		}
		if strings.Contains(parsed.Path, "..") && path.Clean(parsed.Path) != parsed.Path {
			return errors.ErrPathTraversal(locator)
		}
	case "http", "https":
		if parsed.Host == "" {
			return errors.ErrInvalidLocator(locator, fmt.Errorf("URL must have a host"))
		}
		if parsed.User != nil {
			return errors.ErrInvalidLocator(locator, fmt.Errorf("credentials in URL are not allowed"))
		}
	default:
		return errors.ErrInvalidLocator(locator,
			fmt.Errorf("scheme %q not allowed (only http/https and site paths)", parsed.Scheme))
	}

	return nil
}

// IsRemote reports whether an already validated locator points off-site.
func IsRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}
