package provider

import "log/slog"

type config struct {
	prefix  string // empty means discover from the entry listing
	noCache bool
	log     *slog.Logger
}

// Option configures a ZipChunkProvider at construction.
type Option func(*config)

// WithPrefix pins the region folder to a known archive path instead of
// discovering it from the entry listing.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithoutCache disables the decompressed-region cache: every load reads and
// decompresses its region entry from the archive again.
func WithoutCache() Option {
	return func(c *config) {
		c.noCache = true
	}
}

// WithLogger sets the logger for debug output. The default discards
// everything.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}
