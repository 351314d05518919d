package main

import (
	"flag"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/anirudhraja/protokit/message"
)

// config holds the settings shared by every subcommand.
type config struct {
	Schema         string
	Format         string
	LogLevel       string
	DiscardUnknown bool
	AllowPartial   bool
	MaxDepth       int
	StrictImports  bool
}

type fileConfig struct {
	Schema         string `toml:"schema"`
	Format         string `toml:"format"`
	LogLevel       string `toml:"log_level"`
	DiscardUnknown bool   `toml:"discard_unknown"`
	AllowPartial   bool   `toml:"allow_partial"`
	MaxDepth       int    `toml:"max_depth"`
	StrictImports  bool   `toml:"strict_imports"`
}

func defaultConfig() config {
	return config{
		Format:   "json",
		LogLevel: "warn",
		MaxDepth: message.DefaultMaxDepth,
	}
}

// loadConfig reads a TOML file over the defaults. Keys absent from the file
// keep their default.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load protokit config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, errors.Errorf("load protokit config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("schema") {
		cfg.Schema = strings.TrimSpace(raw.Schema)
	}
	if meta.IsDefined("format") {
		cfg.Format = strings.ToLower(strings.TrimSpace(raw.Format))
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("discard_unknown") {
		cfg.DiscardUnknown = raw.DiscardUnknown
	}
	if meta.IsDefined("allow_partial") {
		cfg.AllowPartial = raw.AllowPartial
	}
	if meta.IsDefined("max_depth") {
		if raw.MaxDepth <= 0 {
			return config{}, errors.Errorf("load protokit config: max_depth must be positive, got %d", raw.MaxDepth)
		}
		cfg.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("strict_imports") {
		cfg.StrictImports = raw.StrictImports
	}

	return cfg, nil
}

// commonFlags are the flags every subcommand accepts. Flags given on the
// command line override the config file.
type commonFlags struct {
	configPath     string
	schema         string
	format         string
	logLevel       string
	discardUnknown bool
	allowPartial   bool
	maxDepth       int
	strictImports  bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "TOML config file")
	fs.StringVar(&c.schema, "schema", "", ".proto file or directory of .proto files")
	fs.StringVar(&c.format, "format", "", "data format: json, yaml or text")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVar(&c.discardUnknown, "discard-unknown", false, "drop fields the schema does not define when decoding")
	fs.BoolVar(&c.allowPartial, "allow-partial", false, "skip the required field check")
	fs.IntVar(&c.maxDepth, "max-depth", 0, "maximum message nesting depth when decoding")
	fs.BoolVar(&c.strictImports, "strict-imports", false, "reject schemas with import statements")
	return c
}

// resolve loads the config file, if any, and applies the flags that were set.
func (c *commonFlags) resolve(fs *flag.FlagSet) (config, error) {
	cfg := defaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = loadConfig(c.configPath); err != nil {
			return config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "schema":
			cfg.Schema = c.schema
		case "format":
			cfg.Format = strings.ToLower(c.format)
		case "log-level":
			cfg.LogLevel = c.logLevel
		case "discard-unknown":
			cfg.DiscardUnknown = c.discardUnknown
		case "allow-partial":
			cfg.AllowPartial = c.allowPartial
		case "max-depth":
			cfg.MaxDepth = c.maxDepth
		case "strict-imports":
			cfg.StrictImports = c.strictImports
		}
	})

	if cfg.Schema == "" {
		return config{}, errors.Wrap(errUsage, "no schema given, use -schema or the schema key of -config")
	}
	switch cfg.Format {
	case formatJSON, formatYAML, formatText:
	default:
		return config{}, errors.Wrapf(errUsage, "unknown format %q", cfg.Format)
	}
	if cfg.MaxDepth <= 0 {
		return config{}, errors.Wrapf(errUsage, "max depth must be positive, got %d", cfg.MaxDepth)
	}
	return cfg, nil
}
