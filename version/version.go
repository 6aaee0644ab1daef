package version

// Version holds the firmware version string.
// This is set at build time with -ldflags "-X sensornode-go/version.Version=...".
var Version = "dev"

// Build identifies the build (commit or date).
// This is set at build time.
var Build = "not set"
