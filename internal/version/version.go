// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package version holds build information set through -ldflags -X.
package version

var (
	// Version is the release tag.
	Version = "v0.1.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the build information for --version output and logs.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
