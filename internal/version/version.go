// Package version carries build metadata set with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/autoaim/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info is the JSON view of the build metadata.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Current returns the build metadata.
func Current() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

func (i Info) String() string {
	sha := i.GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("autoaim %s (%s, built %s)", i.Version, sha, i.BuildTime)
}
