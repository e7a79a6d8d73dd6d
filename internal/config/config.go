package config

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigPath is the path to the documented example configuration.
const DefaultConfigPath = "config/car-data.example.json"

// EnvPrefix is prepended to every environment override, e.g. CARDATA_OUTPUT_DIR
// or CARDATA_STREAM_POOL_SIZE.
const EnvPrefix = "CARDATA"

// Frame id sources.
const (
	FrameIDFromContext  = "context"
	FrameIDFromSequence = "sequence"
)

// Stream sources.
const (
	StreamSourcePlaceholder = "placeholder"
	StreamSourceRecording   = "recording"
)

// Config is the static configuration shared by the pipeline, exporters and the
// stream service. It is loaded once at startup and passed into each component.
type Config struct {
	// Input recording
	InputPath        string `mapstructure:"input_path" json:"input_path"`
	InputCompression string `mapstructure:"input_compression" json:"input_compression"` // "", "gzip" or "zlib"
	VerifyChecksums  bool   `mapstructure:"verify_checksums" json:"verify_checksums"`

	// Frame sampling
	FrameIDSource string `mapstructure:"frame_id_source" json:"frame_id_source"`
	MaxFrames     int    `mapstructure:"max_frames" json:"max_frames"` // 0 = no limit
	SkipFrames    int    `mapstructure:"skip_frames" json:"skip_frames"`

	// Projection
	PixelPose bool `mapstructure:"pixel_pose" json:"pixel_pose"`

	// Export
	OutputDir           string        `mapstructure:"output_dir" json:"output_dir"`
	PointCloudColor     string        `mapstructure:"point_cloud_color" json:"point_cloud_color"` // "#RRGGBB"
	PerFramePointClouds bool          `mapstructure:"per_frame_point_clouds" json:"per_frame_point_clouds"`
	ExportReturns       []int         `mapstructure:"export_returns" json:"export_returns"`
	Preview             PreviewConfig `mapstructure:"preview" json:"preview"`
	Report              ReportConfig  `mapstructure:"report" json:"report"`

	Stream StreamConfig `mapstructure:"stream" json:"stream"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
}

// PreviewConfig controls the top-down PNG preview.
type PreviewConfig struct {
	Enabled   bool `mapstructure:"enabled" json:"enabled"`
	MaxPoints int  `mapstructure:"max_points" json:"max_points"`
}

// ReportConfig controls the per-frame HTML report.
type ReportConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// StreamConfig holds the frame stream service settings.
type StreamConfig struct {
	ListenAddr        string `mapstructure:"listen_addr" json:"listen_addr"`
	PoolSize          int    `mapstructure:"pool_size" json:"pool_size"`
	PlaceholderFrames int    `mapstructure:"placeholder_frames" json:"placeholder_frames"`
	Source            string `mapstructure:"source" json:"source"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level   string `mapstructure:"level" json:"level"`
	Console bool   `mapstructure:"console" json:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input_path", "./data/frames")
	v.SetDefault("input_compression", "")
	v.SetDefault("verify_checksums", true)

	v.SetDefault("frame_id_source", FrameIDFromContext)
	v.SetDefault("max_frames", 1)
	v.SetDefault("skip_frames", 0)

	v.SetDefault("pixel_pose", true)

	v.SetDefault("output_dir", "./output")
	v.SetDefault("point_cloud_color", "#FFFFFF")
	v.SetDefault("per_frame_point_clouds", false)
	v.SetDefault("export_returns", []int{0})
	v.SetDefault("preview.enabled", false)
	v.SetDefault("preview.max_points", 50000)
	v.SetDefault("report.enabled", false)

	v.SetDefault("stream.listen_addr", "[::]:50051")
	v.SetDefault("stream.pool_size", 10)
	v.SetDefault("stream.placeholder_frames", 10)
	v.SetDefault("stream.source", StreamSourcePlaceholder)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration with every key at its default value.
// Environment overrides are applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults are compile-time constants; a failure here is a programming error.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Load reads a configuration file (JSON, YAML or TOML, chosen by extension) on top
// of the defaults and applies CARDATA_* environment overrides. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		cleanPath := filepath.Clean(path)
		switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			return nil, fmt.Errorf("config file must be .json, .yaml or .toml, got %q", ext)
		}
		v.SetConfigFile(cleanPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	switch c.InputCompression {
	case "", "gzip", "zlib":
	default:
		return fmt.Errorf("input_compression must be empty, gzip or zlib, got %q", c.InputCompression)
	}

	switch c.FrameIDSource {
	case FrameIDFromContext, FrameIDFromSequence:
	default:
		return fmt.Errorf("frame_id_source must be %q or %q, got %q", FrameIDFromContext, FrameIDFromSequence, c.FrameIDSource)
	}

	if c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be non-negative, got %d", c.MaxFrames)
	}
	if c.SkipFrames < 0 {
		return fmt.Errorf("skip_frames must be non-negative, got %d", c.SkipFrames)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if _, err := ParseColor(c.PointCloudColor); err != nil {
		return fmt.Errorf("invalid point_cloud_color: %w", err)
	}
	if len(c.ExportReturns) == 0 {
		return fmt.Errorf("export_returns must name at least one return index")
	}
	seen := make(map[int]bool, len(c.ExportReturns))
	for _, r := range c.ExportReturns {
		if r != 0 && r != 1 {
			return fmt.Errorf("export_returns entries must be 0 or 1, got %d", r)
		}
		if seen[r] {
			return fmt.Errorf("export_returns lists return %d twice", r)
		}
		seen[r] = true
	}
	if c.Preview.MaxPoints < 0 {
		return fmt.Errorf("preview.max_points must be non-negative, got %d", c.Preview.MaxPoints)
	}

	if c.Stream.PoolSize < 1 {
		return fmt.Errorf("stream.pool_size must be at least 1, got %d", c.Stream.PoolSize)
	}
	if c.Stream.PlaceholderFrames < 0 {
		return fmt.Errorf("stream.placeholder_frames must be non-negative, got %d", c.Stream.PlaceholderFrames)
	}
	switch c.Stream.Source {
	case StreamSourcePlaceholder, StreamSourceRecording:
	default:
		return fmt.Errorf("stream.source must be %q or %q, got %q", StreamSourcePlaceholder, StreamSourceRecording, c.Stream.Source)
	}
	if c.Stream.Source == StreamSourceRecording && c.InputPath == "" {
		return fmt.Errorf("stream.source=recording requires input_path")
	}

	return nil
}

// GetPointCloudColor returns the uniform point colour, white when unset or invalid.
func (c *Config) GetPointCloudColor() color.RGBA {
	rgba, err := ParseColor(c.PointCloudColor)
	if err != nil {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return rgba
}

// ParseColor parses a "#RRGGBB" hex colour. The leading '#' is optional.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("colour %q must have the form #RRGGBB", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
