// Package config loads safepreview settings with Viper from the
// .safepreview.yml file, SAFEPREVIEW_ environment variables and command-line
// flags.
//
// Load applies defaults for anything left unset and validates every section
// through the parsers owned by the packages that consume the values, so an
// unknown render mode or sanitizer profile fails at startup rather than at
// the first request.
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
	"github.com/conneroisu/safepreview/internal/validation"
	"github.com/conneroisu/safepreview/internal/version"
	"github.com/conneroisu/safepreview/internal/video"
	"github.com/conneroisu/safepreview/internal/websocket"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Content ContentConfig `mapstructure:"content" yaml:"content"`
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Fetch   FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Video   VideoConfig   `mapstructure:"video" yaml:"video"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	NoOpen         bool     `mapstructure:"no-open" yaml:"no-open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment"`

	MaxWSConnectionsPerIP int `mapstructure:"max_ws_connections_per_ip" yaml:"max_ws_connections_per_ip"`
}

// ContentConfig points at on-disk content. Empty directories mean the
// embedded sample content is served instead.
type ContentConfig struct {
	ArticlesDir string `mapstructure:"articles_dir" yaml:"articles_dir"`
	AssetsDir   string `mapstructure:"assets_dir" yaml:"assets_dir"`
	Watch       bool   `mapstructure:"watch" yaml:"watch"`
	ShowDrafts  bool   `mapstructure:"show_drafts" yaml:"show_drafts"`
}

type RenderConfig struct {
	DefaultMode    string `mapstructure:"default_mode" yaml:"default_mode"`
	DefaultProfile string `mapstructure:"default_profile" yaml:"default_profile"`
	AllowRaw       bool   `mapstructure:"allow_raw" yaml:"allow_raw"`
	MinifySVG      bool   `mapstructure:"minify_svg" yaml:"minify_svg"`
}

type FetchConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	MaxBytes  int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

type VideoConfig struct {
	Src             string `mapstructure:"src" yaml:"src"`
	Poster          string `mapstructure:"poster" yaml:"poster"`
	Autoplay        bool   `mapstructure:"autoplay" yaml:"autoplay"`
	Muted           bool   `mapstructure:"muted" yaml:"muted"`
	Loop            bool   `mapstructure:"loop" yaml:"loop"`
	ShowPlayButton  bool   `mapstructure:"show_play_button" yaml:"show_play_button"`
	ShowSkipButton  bool   `mapstructure:"show_skip_button" yaml:"show_skip_button"`
	AutoCloseOnEnd  bool   `mapstructure:"auto_close_on_end" yaml:"auto_close_on_end"`
	CanvasMirroring bool   `mapstructure:"canvas_mirroring" yaml:"canvas_mirroring"`
	Fit             string `mapstructure:"fit" yaml:"fit"`
	Orientation     string `mapstructure:"orientation" yaml:"orientation"`
	AllowRotate     bool   `mapstructure:"allow_rotate" yaml:"allow_rotate"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	DefaultPort     = 8080
	DefaultHost     = "localhost"
	DefaultVideoSrc = "/media/demo.mp4")

// SetDefaults registers every configuration key with its default on v.
// Viper only maps SAFEPREVIEW_ environment variables onto keys it knows
// about, so each key is listed here even when its default is the zero value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.open", false)
	v.SetDefault("server.no-open", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_ws_connections_per_ip", websocket.DefaultMaxConnectionsPerIP)

	v.SetDefault("content.articles_dir", "")
	v.SetDefault("content.assets_dir", "")
	v.SetDefault("content.watch", true)
	v.SetDefault("content.show_drafts", false)

	v.SetDefault("render.default_mode", fragment.ModeSanitized.String())
	v.SetDefault("render.default_profile", string(sanitizer.ProfileSVG))
	v.SetDefault("render.allow_raw", true)
	v.SetDefault("render.minify_svg", false)

	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.max_bytes", fetch.DefaultMaxBytes)
	v.SetDefault("fetch.user_agent", version.UserAgent())

	v.SetDefault("video.src", DefaultVideoSrc)
	v.SetDefault("video.poster", "")
	v.SetDefault("video.autoplay", false)
	v.SetDefault("video.muted", false)
	v.SetDefault("video.loop", false)
	v.SetDefault("video.show_play_button", true)
	v.SetDefault("video.show_skip_button", false)
	v.SetDefault("video.auto_close_on_end", false)
	v.SetDefault("video.canvas_mirroring", false)
	v.SetDefault("video.fit", video.FitContain.String())
	v.SetDefault("video.orientation", video.OrientationAny.String())
	v.SetDefault("video.allow_rotate", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads the global viper instance into a validated Config.
func Load() (*Config, error) {
	SetDefaults(viper.GetViper())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = defaultOrigins(config.Server.Host, config.Server.Port)
	}

	// Override open if no-open was passed on the command line
	if config.Server.NoOpen {
		config.Server.Open = false
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration").WithCause(err)
	}

	return &config, nil
}

func defaultOrigins(host string, port int) []string {
	return []string{
		fmt.Sprintf("http://%s:%d", host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateContentConfig(&config.Content); err != nil {
		return fmt.Errorf("content config: %w", err)
	}
	if err := validateRenderConfig(&config.Render); err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if err := validateFetchConfig(&config.Fetch); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	if _, err := config.Video.PlayerConfig(); err != nil {
		return fmt.Errorf("video config: %w", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system assign one, which the tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.MaxWSConnectionsPerIP < 0 {
		return fmt.Errorf("max_ws_connections_per_ip must not be negative: %d", config.MaxWSConnectionsPerIP)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return err
		}
	}

	return nil
}

func validateContentConfig(config *ContentConfig) error {
	for name, dir := range map[string]string{
		"articles_dir": config.ArticlesDir,
		"assets_dir":   config.AssetsDir,
	} {
		if dir == "" {
			continue
		}
		if err := validation.ValidatePath(filepath.Clean(dir)); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, dir, err)
		}
	}

	return nil
}

func validateRenderConfig(config *RenderConfig) error {
	if _, err := fragment.ParseMode(config.DefaultMode); err != nil {
		return err
	}
	if _, err := sanitizer.ParseProfile(config.DefaultProfile); err != nil {
		return err
	}

	return nil
}

func validateFetchConfig(config *FetchConfig) error {
	if config.MaxBytes < 0 {
		return fmt.Errorf("max_bytes must not be negative: %d", config.MaxBytes)
	}
	if config.BaseURL != "" {
		if err := validation.ValidateLocator(config.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
		if !validation.IsRemote(config.BaseURL) {
			return fmt.Errorf("base_url must be an http or https URL: %s", config.BaseURL)
		}
	}
	if strings.ContainsAny(config.UserAgent, "\r\n") {
		return fmt.Errorf("user_agent must be a single line")
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", config.Format)
	}
}

// validateHostname rejects shell metacharacters, whitespace and control
// characters.
func validateHostname(host string) error {
	for _, r := range host {
		if r < ' ' || r == 0x7f {
			return fmt.Errorf("host contains control character: %q", r)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}

	return nil
}

// Mode returns the parsed default render mode.
func (c *Config) Mode() fragment.Mode {
	mode, _ := fragment.ParseMode(c.Render.DefaultMode)

	return mode
}

// Profile returns the parsed default sanitizer profile, falling back to the
// svg profile when the configured name is unknown.
func (c *Config) Profile() sanitizer.Profile {
	profile, err := sanitizer.ParseProfile(c.Render.DefaultProfile)
	if err != nil {
		return sanitizer.ProfileSVG
	}

	return profile
}

// Address returns host:port for the listener.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PlayerConfig converts the video section into a player configuration.
func (v VideoConfig) PlayerConfig() (video.Config, error) {
	cfg := video.DefaultConfig(v.Src)
	cfg.Poster = v.Poster
	cfg.Autoplay = v.Autoplay
	cfg.Muted = v.Muted
	cfg.Loop = v.Loop
	cfg.ShowPlayButton = v.ShowPlayButton
	cfg.ShowSkipButton = v.ShowSkipButton
	cfg.AutoCloseOnEnd = v.AutoCloseOnEnd
	cfg.CanvasMirroring = v.CanvasMirroring
	cfg.AllowRotate = v.AllowRotate

	fit, err := video.ParseFit(v.Fit)
	if err != nil {
		return video.Config{}, err
	}
	cfg.Fit = fit

	orientation, err := video.ParseOrientation(v.Orientation)
	if err != nil {
		return video.Config{}, err
	}
	cfg.Orientation = orientation

	if err := cfg.Validate(); err != nil {
		return video.Config{}, err
	}

	return cfg, nil
}

// LoggerConfig builds the logger configuration writing to out.
func (l LoggingConfig) LoggerConfig(out io.Writer) *logging.LoggerConfig {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	return &logging.LoggerConfig{
		Level:  level,
		Format: l.Format,
		Output: out,
	}
}
