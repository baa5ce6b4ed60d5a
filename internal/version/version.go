package version

import "runtime"

// Set at build time via -ldflags "-X ...".
var (
	Version   = "dev"     // git tag or semantic version
	Commit    = "unknown" // git commit SHA
	BuildTime = "unknown" // ISO 8601 build timestamp
)

// Info is the build identification reported by the liveness endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
