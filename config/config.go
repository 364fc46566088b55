// Package config loads pasteboard settings with viper.
//
// Precedence (lowest → highest): defaults → config file → PASTEBOARD_* env vars
//
// Config file search order when no explicit path is given (first found wins):
//
//	/etc/pasteboard/pasteboard.toml
//	$HOME/.config/pasteboard/pasteboard.toml
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"go.klb.dev/pasteboard"
	"go.klb.dev/pasteboard/internal/logging"
)

// Keys understood by Load. Env vars use the PASTEBOARD_ prefix with dashes
// replaced by underscores, e.g. PASTEBOARD_ITEM_CLASS.
const (
	KeyPasteboardClass = "pasteboard-class"
	KeyItemClass       = "item-class"
	KeyArrayClass      = "array-class"
	KeyCacheItemClass  = "cache-item-class"
	KeyLogFormat       = "log-format"
	KeyLogLevel        = "log-level"
)

// Config holds the settings for a pasteboard.Context and its logger.
type Config struct {
	PasteboardClass string
	ItemClass       string
	ArrayClass      string
	CacheItemClass  bool
	LogFormat       logging.Format
	LogLevel        slog.Level
}

// Load reads configuration into v and returns the resolved Config. If path
// is non-empty it names the config file and must exist; otherwise the
// standard locations are searched and a missing file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	v.SetDefault(KeyPasteboardClass, pasteboard.DefaultPasteboardClass)
	v.SetDefault(KeyItemClass, pasteboard.DefaultItemClass)
	v.SetDefault(KeyArrayClass, pasteboard.DefaultArrayClass)
	v.SetDefault(KeyCacheItemClass, false)
	v.SetDefault(KeyLogFormat, string(logging.FormatAuto))
	v.SetDefault(KeyLogLevel, "info")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pasteboard")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/pasteboard/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pasteboard"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("PASTEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		PasteboardClass: v.GetString(KeyPasteboardClass),
		ItemClass:       v.GetString(KeyItemClass),
		ArrayClass:      v.GetString(KeyArrayClass),
		CacheItemClass:  v.GetBool(KeyCacheItemClass),
	}
	var err error
	if cfg.LogFormat, err = logging.ParseFormat(v.GetString(KeyLogFormat)); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", KeyLogFormat, err)
	}
	if cfg.LogLevel, err = logging.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	for key, name := range map[string]string{
		KeyPasteboardClass: cfg.PasteboardClass,
		KeyItemClass:       cfg.ItemClass,
		KeyArrayClass:      cfg.ArrayClass,
	} {
		if strings.TrimSpace(name) == "" {
			return Config{}, fmt.Errorf("config: %s must not be empty", key)
		}
	}
	return cfg, nil
}

// Logger returns a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return logging.New(w, c.LogFormat, c.LogLevel)
}

// SetDefault installs c.Logger(w) as the slog default and returns it.
// Contexts built without WithLogger log through the default.
func (c Config) SetDefault(w io.Writer) *slog.Logger {
	l := c.Logger(w)
	slog.SetDefault(l)
	return l
}

// Options converts c into pasteboard options, logging to w.
func (c Config) Options(w io.Writer) []pasteboard.Option {
	return []pasteboard.Option{
		pasteboard.WithClassNames(c.PasteboardClass, c.ItemClass, c.ArrayClass),
		pasteboard.WithItemClassCache(c.CacheItemClass),
		pasteboard.WithLogger(c.Logger(w)),
	}
}
