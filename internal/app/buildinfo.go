package app

// Set at link time:
//
//	go build -ldflags "-X github.com/hyperifyio/gosift/internal/app.version=v1.2.0 -X github.com/hyperifyio/gosift/internal/app.commit=$(git rev-parse --short HEAD)"
var (
	version = "0.0.0-dev"
	commit  = "unknown"
)

// Version identifies the binary in logs and manifests.
func Version() string {
	return version + " (" + commit + ")"
}
