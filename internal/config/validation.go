package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/conneroisu/safepreview/internal/fragment"
)

// ValidationError represents a configuration validation issue with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(b *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(b, "  - %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(b, "      hint: %s\n", suggestion)
		}
	}
}

// ValidateConfigWithDetails runs the hard checks Load performs plus a set of
// advisory checks, returning both as a report.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	if err := validateConfig(config); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "config",
			Message: err.Error(),
		})
	}

	validateServerConfigDetails(&config.Server, result)
	validateRenderConfigDetails(config, result)
	validateFetchConfigDetails(&config.Fetch, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port > 0 && config.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: "port below 1024 requires elevated privileges",
			Suggestions: []string{
				"Consider using a port above 1024 for development",
			},
		})
	}

	if ip := net.ParseIP(config.Host); ip != nil && ip.IsUnspecified() {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.host",
			Value:   config.Host,
			Message: "server listens on all interfaces",
			Suggestions: []string{
				"Use 'localhost' unless the demos must be reachable from other machines",
			},
		})
	}

	validEnvs := []string{"development", "production", "testing"}
	if config.Environment != "" && !contains(validEnvs, config.Environment) {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.environment",
			Value:   config.Environment,
			Message: "unknown environment type",
			Suggestions: []string{
				"Available environments: " + strings.Join(validEnvs, ", "),
			},
		})
	}
}

func validateRenderConfigDetails(config *Config, result *ValidationResult) {
	if config.Render.AllowRaw && config.Server.Environment == "production" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "render.allow_raw",
			Value:   true,
			Message: "raw rendering inserts untrusted markup without sanitization",
			Suggestions: []string{
				"Set render.allow_raw to false outside local demos",
			},
		})
	}

	if config.Mode() == fragment.ModeRaw {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "render.default_mode",
			Value:   config.Render.DefaultMode,
			Message: "fragments render unsanitized unless a request asks otherwise",
			Suggestions: []string{
				"Use 'sanitized' as the default mode",
			},
		})
	}
}

func validateFetchConfigDetails(config *FetchConfig, result *ValidationResult) {
	if strings.HasPrefix(config.BaseURL, "http://") {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "fetch.base_url",
			Value:   config.BaseURL,
			Message: "remote fragments are fetched over plain http",
		})
	}

	if config.MaxBytes > 16<<20 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "fetch.max_bytes",
			Value:   config.MaxBytes,
			Message: "fragments larger than 16MiB are held in memory while sanitizing",
		})
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}
