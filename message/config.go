package message

import (
	"os"
	"strconv"
	"sync/atomic"
)

// Config controls package-wide defaults for decoding and encoding. Per-call
// option structs override it.
type Config struct {
	// DiscardUnknown: when true, fields the descriptor does not define are
	// skipped on decode instead of being retained for re-encoding. Default
	// false keeps them, so a decode/encode round trip is lossless.
	DiscardUnknown bool

	// MaxDepth bounds the nesting of decoded messages. Zero means
	// DefaultMaxDepth.
	MaxDepth int

	// AllowPartial: when true, missing required fields are not reported by
	// Marshal and Unmarshal. Default false enforces them.
	AllowPartial bool
}

// DefaultMaxDepth is the nesting limit used when none is configured.
const DefaultMaxDepth = 100

var config atomic.Pointer[Config]

// SetConfig sets the package configuration. It may be called while other
// goroutines encode and decode; calls already running keep the configuration
// they started with.
func SetConfig(c Config) { config.Store(&c) }

// CurrentConfig returns the package configuration.
func CurrentConfig() Config { return *config.Load() }

func init() {
	SetConfig(configFromEnv(os.Getenv))
}

// configFromEnv reads the PROTOKIT_* toggles; unset ones keep the zero value.
func configFromEnv(getenv func(string) string) Config {
	var c Config
	if v := getenv("PROTOKIT_DISCARD_UNKNOWN"); v == "1" || v == "true" {
		c.DiscardUnknown = true
	}
	if v := getenv("PROTOKIT_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxDepth = n
		}
	}
	if v := getenv("PROTOKIT_ALLOW_PARTIAL"); v == "1" || v == "true" {
		c.AllowPartial = true
	}
	return c
}

// UnmarshalOptions configures decoding.
type UnmarshalOptions struct {
	DiscardUnknown bool
	MaxDepth       int
	AllowPartial   bool
	// Merge decodes into the target without resetting it first.
	Merge bool
}

// MarshalOptions configures encoding.
type MarshalOptions struct {
	AllowPartial bool
}

func defaultUnmarshalOptions() UnmarshalOptions {
	c := CurrentConfig()
	return UnmarshalOptions{
		DiscardUnknown: c.DiscardUnknown,
		MaxDepth:       c.MaxDepth,
		AllowPartial:   c.AllowPartial,
	}
}

func (o UnmarshalOptions) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}
