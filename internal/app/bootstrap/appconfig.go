// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (ports, TLS, log level); AppConfig is
// everything specific to this application.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // secret for signing session cookies (must be strong in production)
	SessionName   string // cookie name
	SessionDomain string // cookie domain (blank means current host)

	// Admin bootstrap: if both are set, Startup guarantees an admin
	// account with these credentials exists.
	AdminEmail    string
	AdminPassword string

	// Audit logging settings ("all", "db", "log", or "off")
	AuditLogAuth  string
	AuditLogAdmin string

	// AuditRetentionDays controls how long audit events are kept before
	// the retention worker prunes them. 0 disables pruning.
	AuditRetentionDays int

	// Bulk operation tuning
	BulkConcurrency int
}
