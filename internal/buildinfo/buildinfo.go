// Package buildinfo carries build-time identification, stamped via -ldflags.
package buildinfo

var (
	// Version is the semantic version or git describe output.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuiltAt is the RFC3339 build timestamp.
	BuiltAt = ""
)
