package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateServerConfig_Security tests server configuration security validation
func TestValidateServerConfig_Security(t *testing.T) {
	tests := []struct {
		name        string
		config      ServerConfig
		expectError bool
		errorType   string
	}{
		{
			name:   "valid server config",
			config: ServerConfig{Port: 8080, Host: "localhost"},
		},
		{
			name:   "valid port range maximum",
			config: ServerConfig{Port: 65535, Host: "0.0.0.0"},
		},
		{
			name:   "system assigned port",
			config: ServerConfig{Port: 0, Host: "localhost"},
		},
		{
			name:        "invalid negative port",
			config:      ServerConfig{Port: -1, Host: "localhost"},
			expectError: true,
			errorType:   "not in valid range",
		},
		{
			name:        "invalid port too high",
			config:      ServerConfig{Port: 65536, Host: "localhost"},
			expectError: true,
			errorType:   "not in valid range",
		},
		{
			name:        "command injection in host",
			config:      ServerConfig{Port: 8080, Host: "localhost; rm -rf /"},
			expectError: true,
			errorType:   "dangerous character",
		},
		{
			name:        "backtick injection in host",
			config:      ServerConfig{Port: 8080, Host: "localhost`whoami`"},
			expectError: true,
			errorType:   "dangerous character",
		},
		{
			name:        "newline in host",
			config:      ServerConfig{Port: 8080, Host: "localhost\nevil"},
			expectError: true,
			errorType:   "control character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerConfig(&tt.config)

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorType != "" {
					assert.Contains(t, strings.ToLower(err.Error()), tt.errorType)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateContentConfig_Security tests content directory validation
func TestValidateContentConfig_Security(t *testing.T) {
	tests := []struct {
		name        string
		config      ContentConfig
		expectError bool
	}{
		{"embedded content", ContentConfig{}, false},
		{"relative dirs", ContentConfig{ArticlesDir: "./articles", AssetsDir: "public"}, false},
		{"traversal", ContentConfig{ArticlesDir: "../../secrets"}, true},
		{"system dir", ContentConfig{AssetsDir: "/etc/ssl"}, true},
		{"shell metacharacter", ContentConfig{ArticlesDir: "articles;rm -rf /"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContentConfig(&tt.config)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateFetchConfig_Security tests the remote fragment settings
func TestValidateFetchConfig_Security(t *testing.T) {
	tests := []struct {
		name        string
		config      FetchConfig
		expectError bool
	}{
		{"no base", FetchConfig{MaxBytes: 1024}, false},
		{"https base", FetchConfig{BaseURL: "https://cdn.example.com/"}, false},
		{"javascript base", FetchConfig{BaseURL: "javascript:alert(1)"}, true},
		{"credentials in base", FetchConfig{BaseURL: "https://user:pw@cdn.example.com/"}, true},
		{"site relative base", FetchConfig{BaseURL: "/fragments"}, true},
		{"negative limit", FetchConfig{MaxBytes: -1}, true},
		{"header injection", FetchConfig{UserAgent: "bot\r\nX-Evil: 1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFetchConfig(&tt.config)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestSecurityRegression_RenderConfig guards the render defaults against
// values that would silently disable sanitization.
func TestSecurityRegression_RenderConfig(t *testing.T) {
	for _, mode := range []string{"unsafe", "none", "raw;", "<script>"} {
		err := validateRenderConfig(&RenderConfig{DefaultMode: mode, DefaultProfile: "svg-profile"})
		assert.Error(t, err, "mode %q", mode)
	}

	for _, profile := range []string{"", "all", "../svg-profile"} {
		err := validateRenderConfig(&RenderConfig{DefaultMode: "sanitized", DefaultProfile: profile})
		assert.Error(t, err, "profile %q", profile)
	}
}
