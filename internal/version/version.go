// Package version holds the application version.
package version

// Version is the application version, overridden at build time via ldflags.
var Version = "1.0.0"
