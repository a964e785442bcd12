package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Device names accepted by RenderConfig.Device
const (
	DeviceSoftware = "software"
	DeviceWebGPU   = "webgpu"
)

// Defaults applied by Resolve
const (
	DefaultWidth  = 800
	DefaultHeight = 450
	DefaultFrames = 100
	DefaultDevice = DeviceSoftware
)

// ErrInvalidSettings is returned for out-of-range render settings.
var ErrInvalidSettings = errors.New("config: invalid settings")

// ErrUnknownDevice is returned when the device name is not recognised.
var ErrUnknownDevice = errors.New("config: unknown device")

// Settings are the per-dispatch render settings that can be reloaded while rendering.
type Settings struct {
	Samples int32 `json:"samples"` // samples per pixel per dispatch
	Depth   int32 `json:"depth"`   // maximum bounces per path
}

// DefaultSettings returns one sample per dispatch and eight bounces
func DefaultSettings() Settings {
	return Settings{Samples: 1, Depth: 8}
}

// Validate checks that both settings are at least one
func (s Settings) Validate() error {
	if s.Samples < 1 {
		return fmt.Errorf("%w: samples must be at least 1, got %d", ErrInvalidSettings, s.Samples)
	}
	if s.Depth < 1 {
		return fmt.Errorf("%w: depth must be at least 1, got %d", ErrInvalidSettings, s.Depth)
	}
	return nil
}

// LoadSettings reads a JSON settings file. Missing fields keep their defaults.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings as indented JSON
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// RenderConfig holds everything needed to start a render.
type RenderConfig struct {
	Scene        string   `json:"scene"`
	Width        uint32   `json:"width"`
	Height       uint32   `json:"height"`
	Frames       int      `json:"frames"`
	Output       string   `json:"output"`
	Device       string   `json:"device"`
	Seed         int64    `json:"seed"`
	SettingsPath string   `json:"settings_path"`
	Settings     Settings `json:"settings"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Scene    string
	Width    uint
	Height   uint
	Frames   int
	Output   string
	Device   string
	Seed     int64
	Settings string
}

// now is replaced in tests
var now = time.Now

// Load reads a JSON config file.
// Fields not set in the file keep their zero values.
func Load(path string) (RenderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RenderConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg RenderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RenderConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve applies CLI flags over the file values, then fills defaults.
// A settings file, if named, replaces the inline settings.
func (c *RenderConfig) Resolve(flags Flags) error {
	// CLI flags override config file
	if flags.Scene != "" {
		c.Scene = flags.Scene
	}
	if flags.Width > 0 {
		c.Width = uint32(flags.Width)
	}
	if flags.Height > 0 {
		c.Height = uint32(flags.Height)
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.Device != "" {
		c.Device = flags.Device
	}
	if flags.Seed != 0 {
		c.Seed = flags.Seed
	}
	if flags.Settings != "" {
		c.SettingsPath = flags.Settings
	}

	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.Frames <= 0 {
		c.Frames = DefaultFrames
	}
	if c.Output == "" {
		c.Output = filepath.Join("output", fmt.Sprintf("render_%s.png", now().Format("20060102_150405")))
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.Device != DeviceSoftware && c.Device != DeviceWebGPU {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, c.Device)
	}

	if c.SettingsPath != "" {
		settings, err := LoadSettings(c.SettingsPath)
		if err != nil {
			return err
		}
		c.Settings = settings
	}
	defaults := DefaultSettings()
	if c.Settings.Samples == 0 {
		c.Settings.Samples = defaults.Samples
	}
	if c.Settings.Depth == 0 {
		c.Settings.Depth = defaults.Depth
	}
	return c.Settings.Validate()
}
