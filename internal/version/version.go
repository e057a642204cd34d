package version

// Version is the version of the robots binary, set at build time:
// -ldflags "-X github.com/rxtech-lab/argo-robots/internal/version.Version=1.2.3"
// "main" marks a development build.
var Version = "main"

// GetVersion returns the binary version.
func GetVersion() string {
	return Version
}
