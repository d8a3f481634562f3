// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/lessonbot-go/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/lessonbot-go/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/lessonbot-go/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Info is the JSON shape reported by the liveness endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build info with "dev"/"unknown" placeholders.
func Get() Info {
	return Info{
		Version:   orDefault(Version, "dev"),
		Commit:    orDefault(Commit, "unknown"),
		BuildDate: orDefault(BuildDate, "unknown"),
	}
}

// Release is the identifier reported to error tracking.
func Release() string {
	if Version == "" {
		return "lessonbot@dev"
	}
	return "lessonbot@" + Version
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
