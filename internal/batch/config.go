package batch

// DefaultMaxWorkers is the number of merge requests fetched concurrently
// when nothing else is configured.
const DefaultMaxWorkers = 32

// Config holds configuration for the fetch pool
type Config struct {
	MaxWorkers int `koanf:"pool_size"`
}

// DefaultConfig returns a default configuration for the fetch pool
func DefaultConfig() Config {
	return Config{MaxWorkers: DefaultMaxWorkers}
}

// ConfigurePool creates a Pool based on Config
func ConfigurePool(config Config) *Pool {
	if config.MaxWorkers <= 0 {
		config = DefaultConfig()
	}
	return NewPool(config.MaxWorkers)
}
