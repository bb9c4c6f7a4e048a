// Package config loads the settings of the aqua command from .aqua.yaml,
// AQUA_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	aqua "github.com/baccigalupi/aqua-sub000"
)

// Config holds the runtime configuration of the aqua command.
type Config struct {
	Path        string `mapstructure:"path"`
	LogLevel    string `mapstructure:"log_level"`
	Verbose     bool   `mapstructure:"verbose"`
	Encoding    string `mapstructure:"encoding"`
	Compression string `mapstructure:"compression"`
	IDs         string `mapstructure:"ids"`
	MmapSize    int    `mapstructure:"mmap_size"`
}

// Load reads configuration from v, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load(v *viper.Viper) (Config, error) {
	v.SetDefault("path", "aqua.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("verbose", false)
	v.SetDefault("encoding", "json")
	v.SetDefault("compression", "none")
	v.SetDefault("ids", "uuid")
	v.SetDefault("mmap_size", 0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Setup points v at the config file (explicit, or .aqua.yaml in the working
// or home directory) and the AQUA_ environment. A missing default config file
// is not an error.
func Setup(v *viper.Viper, file string, searchPaths ...string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".aqua")
		v.SetConfigType("yaml")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}
	v.SetEnvPrefix("AQUA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// BindFlags binds every flag of fs to the config key of the same name, with
// dashes turned into underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level: %q", c.LogLevel)
	}
}

// Options converts the config into database options.
func (c Config) Options(logger *slog.Logger) (aqua.Options, error) {
	enc, err := aqua.ParseEncoding(c.Encoding)
	if err != nil {
		return aqua.Options{}, fmt.Errorf("config: %w", err)
	}
	comp, err := aqua.ParseCompressionTag(strings.ToLower(c.Compression))
	if err != nil {
		return aqua.Options{}, fmt.Errorf("config: %w", err)
	}
	ids, err := aqua.ParseIDScheme(c.IDs)
	if err != nil {
		return aqua.Options{}, fmt.Errorf("config: %w", err)
	}
	return aqua.Options{
		Logger:      logger,
		Verbose:     c.Verbose,
		MmapSize:    c.MmapSize,
		Encoding:    enc,
		Compression: comp,
		IDs:         ids,
	}, nil
}
