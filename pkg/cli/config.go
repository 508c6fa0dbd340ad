package cli

// Config holds the command-line settings that exist before the tool
// configuration is loaded
type Config struct {
	ConfigFile string
	Verbosity  string
	LogFile    string
	Version    string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Verbosity: "info",
		Version:   "dev",
	}
}
