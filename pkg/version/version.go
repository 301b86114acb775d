package version

// Version is set at build time via
// -ldflags "-X github.com/cloudseal/secallow/pkg/version.Version=x.y.z"
var Version = "dev"
