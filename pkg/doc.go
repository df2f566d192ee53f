// Package pkg provides the libraries behind deploader, the dependency
// loader for 1.7.10 mod installations.
//
// # Overview
//
// Mods declare the libraries and other mods they need in JSON manifests
// under META-INF. At startup every archive on the classpath and in the mods
// folder is scanned, the declarations are resolved to one version per
// artifact, and whatever is missing is fetched from embedded or remote
// Maven repositories. Fetched artifacts may declare further dependencies,
// so the process repeats until nothing new applies.
//
// # Architecture
//
//	classpath + mods folder
//	         ↓
//	    [scan] (manifests, embedded repositories, mcmod.info)
//	         ↓
//	    [deps] (flatten manifests into tasks, pick winners)
//	         ↓
//	    [fetch] (registry → embedded repo → disk → remote repo)
//	         ↓
//	    classpath sink / mods folder
//
// [loader] drives the loop and owns the shared state.
//
// # Main Packages
//
// [version] - Semantic and raw versions, ranges with a preferred version.
//
// [manifest] - The dependency manifest format and mcmod.info.
//
// [deps] - Artifact identities, requests, scopes, aggregation and
// conflict resolution.
//
// [registry] - What is already loaded, plus insertion-ordered sets.
//
// [repo] - Maven-layout repositories over HTTP, archives and directories.
//
// [scan] - Finds manifests and embedded repositories, with a negative
// [cache] of archives that carry neither.
//
// [checksum] - Digest types and sidecar files.
//
// [fetch] - Makes one request available on disk.
//
// [httputil] - HTTP client with DNS caching, retries and per-host circuit
// breakers.
//
// [config] - Early configuration file and directory layout.
//
// [errors] - Coded errors shared by every package.
//
// [observability] - Hooks for scan, fetch, cache and HTTP events.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/fetch/...              # Specific package
//
// [version]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/version
// [manifest]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/manifest
// [deps]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/deps
// [registry]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/registry
// [repo]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/repo
// [scan]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/scan
// [cache]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/cache
// [checksum]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/checksum
// [fetch]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/fetch
// [httputil]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/httputil
// [config]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/observability
// [loader]: https://pkg.go.dev/github.com/matzehuels/deploader/pkg/loader
package pkg
