// Package buildinfo carries version stamps set with -ldflags -X.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the stamps, falling back to VCS data embedded by the Go
// toolchain when Commit was not set.
func Info() map[string]string {
	commit, builtAt := Commit, BuiltAt
	if bi, ok := debug.ReadBuildInfo(); ok && commit == "" {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				commit = s.Value
			case "vcs.time":
				if builtAt == "" {
					builtAt = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": builtAt,
	}
}
