// Package version reports which vdo build is running.
//
// Release builds link the values in with
//
//	-ldflags "-X github.com/dendrascience/vdo-manager/version.Version=v1.0.0 -X github.com/dendrascience/vdo-manager/version.Commit=abc123"
//
// Without them the module build info is used, falling back to "development"
// and "unknown". GetFullVersion feeds --version; GetInfo is attached to the
// log sink of every invocation as a single structured field.
package version
