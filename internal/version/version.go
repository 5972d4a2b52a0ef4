package version

// Version is set during build via ldflags:
//
//	go build -ldflags "-X crosspost-connect/internal/version.Version=v1.2.0"
var Version = "dev"
