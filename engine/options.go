package engine

// ============================================================================
// MELT OPTIONS — Functional options for Melt()
// ============================================================================

// MeltOption configures melt behavior via functional options pattern.
type MeltOption func(*meltConfig)

type meltConfig struct {
	Strict bool
}

// WithStrictLabels makes Melt fail with a *ConfigError when the label map
// and the wide table's bracket columns do not correspond exactly, instead of
// silently dropping the mismatched keys.
func WithStrictLabels() MeltOption {
	return func(c *meltConfig) {
		c.Strict = true
	}
}

// applyMeltOptions creates a meltConfig from functional options.
func applyMeltOptions(opts []MeltOption) *meltConfig {
	cfg := &meltConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
