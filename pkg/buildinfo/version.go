// Package buildinfo holds the version stamped into deploader binaries.
//
// Release builds set the variables with the linker:
//
//	go build -ldflags "-X github.com/matzehuels/deploader/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/deploader/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/deploader/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/deploader
package buildinfo

import "fmt"

const homepage = "https://github.com/matzehuels/deploader"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent is sent with every repository request.
func UserAgent() string {
	return fmt.Sprintf("deploader/%s Internet Connector (%s)", Version, homepage)
}

// Template is the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}
