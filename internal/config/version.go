package config

// Version is the auditscope binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/auditscope/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
