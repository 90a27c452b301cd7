package am

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/teranos/cystub/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Tools.Python) == "" {
		return errors.WithHint(errors.New("tools.python cannot be empty"),
			"set it to an interpreter with Cython and mypy installed, e.g. \"python3\"")
	}

	// Timeout: 0 = no limit, negative = invalid
	if c.Tools.TimeoutSeconds < 0 {
		return errors.Newf("tools.timeout_seconds must be >= 0, got %d", c.Tools.TimeoutSeconds)
	}

	if len(c.Discovery.Extensions) == 0 {
		return errors.New("discovery.extensions cannot be empty")
	}
	for _, ext := range c.Discovery.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return errors.Newf("discovery.extensions entries must start with a dot, got %q", ext)
		}
		if ext == ".pyi" {
			return errors.New("discovery.extensions cannot contain .pyi (stubs are outputs)")
		}
	}

	for _, pattern := range c.Discovery.Include {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Newf("discovery.include has an invalid pattern %q", pattern)
		}
	}
	for _, pattern := range c.Discovery.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Newf("discovery.exclude has an invalid pattern %q", pattern)
		}
	}

	switch c.Log.Theme {
	case "", "everforest", "gruvbox":
	default:
		return errors.Newf("log.theme must be everforest or gruvbox, got %q", c.Log.Theme)
	}

	return nil
}
