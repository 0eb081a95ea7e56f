// Package buildconfig exposes the version stamped in at link time:
//
//	go build -ldflags "-X github.com/Harshitk-cp/cogserver/internal/buildconfig.version=v0.3.0"
package buildconfig

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// String is the one-line form answered by the version command.
func String() string {
	return fmt.Sprintf("cogserver %s (commit %s)", version, commit)
}

// VersionInfo is the form embedded in health responses.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
