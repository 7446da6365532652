package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartError(t *testing.T) {
	suggestions := ServerStartError(errors.New("listen tcp :8080: bind: address already in use"), 8080)
	assert.Len(t, suggestions, 2)
	assert.Equal(t, "safepreview serve --port 8081", suggestions[1].Command)

	suggestions = ServerStartError(errors.New("listen tcp :80: bind: permission denied"), 80)
	assert.Equal(t, "Use unprivileged port", suggestions[len(suggestions)-1].Title)

	assert.Empty(t, ServerStartError(errors.New("other"), 8080))
}

func TestConfigurationError(t *testing.T) {
	suggestions := ConfigurationError("yaml: unmarshal errors", ".safepreview.yml")
	assert.Len(t, suggestions, 2)
	assert.Equal(t, "cat .safepreview.yml", suggestions[0].Command)

	suggestions = ConfigurationError("unknown sanitization profile: loose", ".safepreview.yml")
	assert.Equal(t, "safepreview profiles", suggestions[len(suggestions)-1].Command)
}

func TestFetchError(t *testing.T) {
	err := NewNetworkError(ErrCodeFetchStatus, "unexpected status 404", nil)
	suggestions := FetchError(err, "https://example.com/a.svg")
	assert.Len(t, suggestions, 1)
	assert.Equal(t, "curl -I https://example.com/a.svg", suggestions[0].Command)

	assert.Len(t, FetchError(ErrInvalidLocator("javascript:x", nil), "javascript:x"), 1)
	assert.Empty(t, FetchError(errors.New("plain"), "/img/a.svg"))

	refused := NewNetworkError(ErrCodeFetchFailed, "fetching https://example.com/a.svg",
		fmt.Errorf("dial: %w", errors.New("connection refused")))
	suggestions = FetchError(refused, "https://example.com/a.svg")
	require.Len(t, suggestions, 1)
	assert.Equal(t, "connection refused", suggestions[0].Description)

	blocked := WrapSecurity(errors.New("file extension '.sh' is not allowed"), ErrCodeAssetType, "asset type not allowed")
	suggestions = FetchError(blocked, "/uploads/run.sh")
	require.Len(t, suggestions, 1)
	assert.Equal(t, "/uploads/sample.pdf", suggestions[0].Example)
}

func TestEnhancedError(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := NewEnhancedError("Failed to start server", cause, ServerStartError(cause, 8080))

	assert.True(t, errors.Is(err, cause))
	msg := FormatError(err)
	assert.Contains(t, msg, "Failed to start server: bind: address already in use")
	assert.Contains(t, msg, "Suggestions:")
	assert.Contains(t, msg, "  1. Port already in use")
	assert.Contains(t, msg, "Run: lsof -i :8080")
}

func TestFormatSuggestionsEmpty(t *testing.T) {
	assert.Equal(t, "title", FormatSuggestions("title", nil))
}
