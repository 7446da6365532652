// Package internal holds the safepreview implementation.
//
//   - sanitizer: bluemonday profiles behind a single Sanitize call
//   - fragment: the only place untrusted markup becomes trusted HTML
//   - fetch: locator loading with stale-result suppression
//   - download: format classification and the download-only fallback
//   - inspect: read-only scan for executable constructs
//   - video: the custom player widget
//   - articles: markdown articles with front matter
//   - server: routes, security headers, rate limiting and live reload
package internal
