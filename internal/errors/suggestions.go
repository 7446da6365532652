package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ServerStartError generates suggestions for server startup failures
func ServerStartError(err error, port int) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}

	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") || strings.Contains(errStr, "bind") {
		suggestions = append(suggestions,
			ErrorSuggestion{
				Title:       "Port already in use",
				Description: fmt.Sprintf("Port %d is already being used by another process", port),
				Command:     fmt.Sprintf("lsof -i :%d", port),
			},
			ErrorSuggestion{
				Title:       "Use a different port",
				Description: "Start the server on a different port",
				Command:     fmt.Sprintf("safepreview serve --port %d", port+1),
			},
		)
	}

	if strings.Contains(errStr, "permission denied") && port < 1024 {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use unprivileged port",
			Description: "Ports below 1024 require root privileges",
			Command:     "safepreview serve --port 8080",
		})
	}

	return suggestions
}

// ConfigurationError generates suggestions for configuration issues
func ConfigurationError(configError string, configPath string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check configuration file",
			Description: "Verify your .safepreview.yml file exists and has valid syntax",
			Command:     "cat " + configPath,
		},
	}

	if strings.Contains(configError, "yaml") || strings.Contains(configError, "unmarshal") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix YAML syntax",
			Description: "There's a syntax error in your YAML configuration",
			Example:     "Use proper indentation and avoid tabs",
		})
	}

	if strings.Contains(configError, "profile") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "List sanitizer profiles",
			Description: "render.default_profile must name a known profile",
			Command:     "safepreview profiles",
		})
	}

	if strings.Contains(configError, "mode") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use a known render mode",
			Description: "render.default_mode is either sanitized or raw",
			Example:     "render:\n  default_mode: sanitized",
		})
	}

	return suggestions
}

// FetchError generates suggestions for a fragment that could not be loaded.
func FetchError(err error, locator string) []ErrorSuggestion {
	var suggestions []ErrorSuggestion

	switch {
	case HasCode(err, ErrCodeInvalidLocator):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use a site path or http(s) URL",
			Description: "Locators are relative asset paths or http/https URLs",
			Example:     "/img/safe.svg",
		})
	case HasCode(err, ErrCodeFetchTooLarge):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Raise the size limit",
			Description: fmt.Sprintf("%s exceeds fetch.max_bytes", locator),
			Example:     "fetch:\n  max_bytes: 4194304",
		})
	case HasCode(err, ErrCodeFetchStatus):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check the locator",
			Description: "The server answered with a non-success status",
			Command:     "curl -I " + locator,
		})
	case HasCode(err, ErrCodeAssetType):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Preview a supported asset",
			Description: "Only SVG, HTML, PDF, images and media are served from the asset store",
			Example:     "/uploads/sample.pdf",
		})
	case IsNetworkError(err):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check that the source is reachable",
			Description: GetRootCause(err).Error(),
			Command:     "curl -I " + locator,
		})
	}

	return suggestions
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	title := e.Title
	if e.OriginalError != nil {
		title += ": " + e.OriginalError.Error()
	}

	return FormatSuggestions(title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
