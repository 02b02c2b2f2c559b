package restore

import (
	"flag"
	"fmt"
	"time"
)

// Config holds the reader's tunables. CLI wiring and the rest of the owning
// service's configuration are out of scope for this library;
// RegisterFlagsAndApplyDefaults exists so an embedding service can fold these into its own flag set the
// way the rest of the stack registers component config.
type Config struct {
	// PollTimeout bounds the single poll performed per Restore call.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// MetadataTimeout bounds the list-topics and end-offsets calls made
	// during the initialize phase.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
}

// RegisterFlagsAndApplyDefaults registers this Config's flags under prefix
// and fills in defaults.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.PollTimeout = 10 * time.Millisecond
	c.MetadataTimeout = 5 * time.Second

	f.DurationVar(&c.PollTimeout, prefix+".poll-timeout", c.PollTimeout, "Bounded poll duration per Restore call.")
	f.DurationVar(&c.MetadataTimeout, prefix+".metadata-timeout", c.MetadataTimeout, "Timeout for list-topics and end-offsets calls during initialization.")
}

// Validate rejects configurations that would make no forward progress.
func (c *Config) Validate() error {
	if c.PollTimeout <= 0 {
		return fmt.Errorf("restore: poll timeout must be positive, got %s", c.PollTimeout)
	}
	if c.MetadataTimeout <= 0 {
		return fmt.Errorf("restore: metadata timeout must be positive, got %s", c.MetadataTimeout)
	}
	return nil
}
