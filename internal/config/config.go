package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Task     TaskConfig     `mapstructure:"task"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// RaiseOnFault disables the dispatcher's outermost panic recovery so
	// unexpected faults surface directly. Only for non-production use.
	RaiseOnFault bool `mapstructure:"raise_on_fault"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains the settings for the token whitelist: the HMAC signing
// secret, token lifetime, and the fixed claim constants embedded in every
// issued token.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	Subject              string `mapstructure:"subject"                validate:"required"`
	Audience             string `mapstructure:"audience"               validate:"required"`
	Issuer               string `mapstructure:"issuer"                 validate:"required"`
}

// TaskConfig contains settings for background maintenance sweeps.
type TaskConfig struct {
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
	LogRetentionDays     int `mapstructure:"log_retention_days"`
}
