package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"kavitanotes/internal/document"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/logger"
)

type (
	KavitaConfig struct {
		Url               string        `yaml:"url"`
		ApiKey            string        `yaml:"api_key"`
		PluginName        string        `yaml:"plugin_name"`
		Timeout           time.Duration `yaml:"timeout"`
		PageSize          int           `yaml:"page_size"`
		Retries           int           `yaml:"retries"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Concurrency       int           `yaml:"concurrency"`
	}

	OutputConfig struct {
		Path string `yaml:"path"`
	}

	FormatConfig struct {
		IncludeComments  bool   `yaml:"include_comments"`
		IncludeSpoilers  bool   `yaml:"include_spoilers"`
		IncludeTags      bool   `yaml:"include_tags"`
		TagPrefix        string `yaml:"tag_prefix"`
		IncludeWikilinks bool   `yaml:"include_wikilinks"`
		// SeriesMetadataFallback enables the legacy OPDS series lookups for
		// chapters Kavita has no book info for.
		SeriesMetadataFallback bool `yaml:"series_metadata_fallback"`
	}

	StorageConfig struct {
		DatabaseUrl string `yaml:"database_url"`
	}

	LoggingConfig struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	ServerConfig struct {
		BindAddr string `yaml:"bind_addr"`
	}

	Config struct {
		Kavita  KavitaConfig  `yaml:"kavita"`
		Output  OutputConfig  `yaml:"output"`
		Format  FormatConfig  `yaml:"format"`
		Storage StorageConfig `yaml:"storage"`
		Logging LoggingConfig `yaml:"logging"`
		Server  ServerConfig  `yaml:"server"`
	}
)

const DefaultOutputPath = "Kavita Annotations.md"

func Default() *Config {
	return &Config{
		Kavita: KavitaConfig{
			PluginName:  kavita.DefaultPluginName,
			Timeout:     30 * time.Second,
			PageSize:    kavita.DefaultPageSize,
			Retries:     kavita.DefaultRetries,
			Concurrency: kavita.DefaultConcurrency,
		},
		Output: OutputConfig{Path: DefaultOutputPath},
		Format: FormatConfig{
			IncludeComments:  true,
			IncludeTags:      true,
			IncludeWikilinks: true,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{BindAddr: ":8080"},
	}
}

// Load superimposes the yaml file at path (optional) and then the environment
// on top of the defaults. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	// only fields we defined are accepted, typos must not pass silently
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func (c *Config) applyEnv() {
	c.Kavita.Url = getEnvOrDefault("KAVITA_URL", c.Kavita.Url)
	c.Kavita.ApiKey = getEnvOrDefault("KAVITA_API_KEY", c.Kavita.ApiKey)
	c.Kavita.PluginName = getEnvOrDefault("KAVITA_PLUGIN_NAME", c.Kavita.PluginName)
	c.Output.Path = getEnvOrDefault("OUTPUT_PATH", c.Output.Path)
	c.Storage.DatabaseUrl = getEnvOrDefault("DATABASE_URL", c.Storage.DatabaseUrl)
	c.Logging.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.Logging.Level))
	c.Logging.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", c.Logging.Format))
	c.Server.BindAddr = getEnvOrDefault("BIND_ADDR", c.Server.BindAddr)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error

	if c.Kavita.Url == "" {
		err = multierr.Append(err, errors.New("kavita.url (KAVITA_URL) is required"))
	} else if u, perr := url.Parse(c.Kavita.Url); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("kavita.url must be an http(s) url, got %q", c.Kavita.Url))
	}
	if c.Kavita.ApiKey == "" {
		err = multierr.Append(err, errors.New("kavita.api_key (KAVITA_API_KEY) is required"))
	}
	if c.Kavita.Timeout < 0 {
		err = multierr.Append(err, errors.New("kavita.timeout must not be negative"))
	}
	if c.Kavita.PageSize <= 0 {
		err = multierr.Append(err, errors.New("kavita.page_size must be positive"))
	}
	if c.Kavita.Retries < 0 {
		err = multierr.Append(err, errors.New("kavita.retries must not be negative"))
	}
	if c.Kavita.RequestsPerSecond < 0 {
		err = multierr.Append(err, errors.New("kavita.requests_per_second must not be negative"))
	}
	if c.Kavita.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("kavita.concurrency must be positive"))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		err = multierr.Append(err, errors.New("output.path (OUTPUT_PATH) is required"))
	}
	if _, lerr := logger.ParseLevel(c.Logging.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		err = multierr.Append(err, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	return err
}

func (c *Config) KavitaOptions() kavita.Options {
	return kavita.Options{
		BaseUrl:           c.Kavita.Url,
		ApiKey:            c.Kavita.ApiKey,
		PluginName:        c.Kavita.PluginName,
		Timeout:           c.Kavita.Timeout,
		PageSize:          c.Kavita.PageSize,
		Retries:           c.Kavita.Retries,
		RequestsPerSecond: c.Kavita.RequestsPerSecond,
		Concurrency:       c.Kavita.Concurrency,
	}
}

func (c *Config) DocumentOptions() document.Options {
	return document.Options{
		IncludeComments:  c.Format.IncludeComments,
		IncludeSpoilers:  c.Format.IncludeSpoilers,
		IncludeTags:      c.Format.IncludeTags,
		TagPrefix:        c.Format.TagPrefix,
		IncludeWikilinks: c.Format.IncludeWikilinks,
	}
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
