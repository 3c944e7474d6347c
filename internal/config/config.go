package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-deck-export/export"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the optional config file looked up in the working directory.
const DefaultFile = "deckpdf.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DECKPDF_"

// Config holds deckpdf settings.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Browser BrowserConfig `yaml:"browser"`
	History HistoryConfig `yaml:"history"`
	Serve   ServeConfig   `yaml:"serve"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

// ExportConfig holds the export request settings.
type ExportConfig struct {
	Source               string        `yaml:"source"`
	Output               string        `yaml:"output"`
	Geometry             string        `yaml:"geometry"`
	SlideSelector        string        `yaml:"slide_selector"`
	NavigationTimeout    time.Duration `yaml:"navigation_timeout"`
	IdleWindow           time.Duration `yaml:"idle_window"`
	ExternalAssets       string        `yaml:"external_assets"`
	PrintBackground      bool          `yaml:"print_background"`
	PreferCSSPageSize    bool          `yaml:"prefer_css_page_size"`
	Verify               bool          `yaml:"verify"`
	RemoveStaleOnFailure bool          `yaml:"remove_stale_on_failure"`
}

// BrowserConfig selects and configures the rendering engine.
type BrowserConfig struct {
	Engine   string   `yaml:"engine"`
	Path     string   `yaml:"path"`
	Headless bool     `yaml:"headless"`
	Args     []string `yaml:"args"`
}

// HistoryConfig configures the run history database. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ServeConfig holds presentation server settings.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the configuration of the fixed invocation.
func Defaults() Config {
	return Config{
		Export: ExportConfig{
			Source:            export.DefaultSource,
			Output:            export.DefaultOutput,
			Geometry:          export.DefaultGeometry.String(),
			SlideSelector:     export.DefaultSlideSelector,
			NavigationTimeout: export.DefaultNavigationTimeout,
			IdleWindow:        export.DefaultIdleWindow,
			ExternalAssets:    string(export.AssetsAllow),
			PrintBackground:   true,
			PreferCSSPageSize: true,
			Verify:            true,
		},
		Browser: BrowserConfig{
			Engine:   "chromium",
			Headless: true,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8080",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load returns defaults merged with the file at path. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// LoadFile returns defaults merged with the file at path.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, export.NewError(export.KindValidation, fmt.Sprintf("read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, export.NewError(export.KindValidation, fmt.Sprintf("parse config %s", path), err)
	}
	return cfg, nil
}

// ApplyEnv applies DECKPDF_* overrides using lookup (usually os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	get := func(name string) (string, bool) {
		value, ok := lookup(EnvPrefix + name)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	if value, ok := get("SOURCE"); ok {
		c.Export.Source = value
	}
	if value, ok := get("OUTPUT"); ok {
		c.Export.Output = value
	}
	if value, ok := get("GEOMETRY"); ok {
		c.Export.Geometry = value
	}
	if value, ok := get("SLIDE_SELECTOR"); ok {
		c.Export.SlideSelector = value
	}
	if value, ok := get("EXTERNAL_ASSETS"); ok {
		c.Export.ExternalAssets = value
	}
	if value, ok := get("ENGINE"); ok {
		c.Browser.Engine = value
	}
	if value, ok := get("BROWSER_PATH"); ok {
		c.Browser.Path = value
	}
	if value, ok := get("BROWSER_ARGS"); ok {
		c.Browser.Args = strings.Fields(value)
	}
	if value, ok := get("HISTORY_PATH"); ok {
		c.History.Path = value
	}
	if value, ok := get("ADDR"); ok {
		c.Serve.Addr = value
	}
	if value, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = value
	}

	durations := map[string]*time.Duration{
		"NAVIGATION_TIMEOUT": &c.Export.NavigationTimeout,
		"IDLE_WINDOW":        &c.Export.IdleWindow,
		"WATCH_DEBOUNCE":     &c.Watch.Debounce,
	}
	for name, target := range durations {
		value, ok := get(name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return export.NewError(export.KindValidation, fmt.Sprintf("invalid %s%s: %s", EnvPrefix, name, value), err)
		}
		*target = parsed
	}

	flags := map[string]*bool{
		"VERIFY":                  &c.Export.Verify,
		"PRINT_BACKGROUND":        &c.Export.PrintBackground,
		"PREFER_CSS_PAGE_SIZE":    &c.Export.PreferCSSPageSize,
		"REMOVE_STALE_ON_FAILURE": &c.Export.RemoveStaleOnFailure,
		"HEADLESS":                &c.Browser.Headless,
	}
	for name, target := range flags {
		value, ok := get(name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return export.NewError(export.KindValidation, fmt.Sprintf("invalid %s%s: %s", EnvPrefix, name, value), err)
		}
		*target = parsed
	}
	return nil
}

// Validate checks values that are not covered by export request normalization.
func (c Config) Validate() error {
	switch c.Browser.Engine {
	case "chromium", "rod":
	default:
		return export.NewError(export.KindValidation, fmt.Sprintf("unknown engine %q", c.Browser.Engine), nil)
	}
	if c.Watch.Debounce < 0 {
		return export.NewError(export.KindValidation, "watch debounce must not be negative", nil)
	}
	_, err := c.Request()
	return err
}

// Request builds the export request described by the config.
func (c Config) Request() (export.Request, error) {
	geometry := export.Geometry{}
	if strings.TrimSpace(c.Export.Geometry) != "" {
		parsed, err := export.ParseGeometry(c.Export.Geometry)
		if err != nil {
			return export.Request{}, err
		}
		geometry = parsed
	}
	printBackground := c.Export.PrintBackground
	preferCSSPageSize := c.Export.PreferCSSPageSize
	return export.Request{
		Source:            c.Export.Source,
		Output:            c.Export.Output,
		Geometry:          geometry,
		SlideSelector:     c.Export.SlideSelector,
		NavigationTimeout: c.Export.NavigationTimeout,
		IdleWindow:        c.Export.IdleWindow,
		PrintBackground:   &printBackground,
		PreferCSSPageSize: &preferCSSPageSize,
		ExternalAssets:    export.AssetPolicy(c.Export.ExternalAssets),
		Verify:            c.Export.Verify,
	}, nil
}
