//go:build property
// +build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validBase(port int, host string) *Config {
	return &Config{
		Server:  ServerConfig{Port: port, Host: host},
		Render:  RenderConfig{DefaultMode: "sanitized", DefaultProfile: "svg-profile"},
		Video:   VideoConfig{Src: DefaultVideoSrc, Fit: "contain", Orientation: "any"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// TestConfigurationProperties tests configuration validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid config passes validation", prop.ForAll(
		func(port int, host string) bool {
			return validateConfig(validBase(port, host)) == nil
		},
		gen.IntRange(0, 65535),
		gen.RegexMatch(`^[a-zA-Z0-9.-]+$`),
	))

	properties.Property("out of range ports are rejected", prop.ForAll(
		func(port int) bool {
			return validateConfig(validBase(port, "localhost")) != nil
		},
		gen.OneGenOf(gen.IntRange(-100000, -1), gen.IntRange(65536, 200000)),
	))

	properties.Property("every known mode and profile validates", prop.ForAll(
		func(mode, profile string) bool {
			cfg := validBase(8080, "localhost")
			cfg.Render.DefaultMode = mode
			cfg.Render.DefaultProfile = profile

			return validateConfig(cfg) == nil
		},
		gen.OneConstOf("sanitized", "safe", "raw", "direct", "SANITIZED"),
		gen.OneConstOf("svg-profile", "html-profile", "strict-profile"),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(host string) bool {
			cfg := validBase(8080, host)
			first := validateConfig(cfg) == nil
			second := validateConfig(cfg) == nil

			return first == second
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
